// Package sqlite provides the public constructor for the SQLite Store.
// Implementation details stay in internal/sqlite.
package sqlite

import (
	"github.com/mesh-intelligence/pantry/internal/sqlite"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// New validates cfg and returns a Store. No file is touched until the first
// operation, which opens the database and brings its schema up to
// cfg.Version.
//
// Example:
//
//	store, err := sqlite.New(types.Config{
//	    Name:    "app.db",
//	    Version: 2,
//	    OnUpgrade: func(ctx context.Context, m types.Migrator, from, to int) error {
//	        return m.ExecBatch(ctx, `CREATE TABLE IF NOT EXISTS items (id INTEGER PRIMARY KEY, label TEXT)`)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func New(cfg types.Config) (types.Store, error) {
	s, err := sqlite.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
