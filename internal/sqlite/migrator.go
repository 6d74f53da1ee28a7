package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// migrator is the connection view handed to an UpgradeFunc. It talks to the
// connection directly and never goes through Store, so an upgrade cannot
// reopen the store or take its lock.
type migrator struct {
	conn txBeginner
	done bool
}

// valid reports ErrClosed once the upgrade that received m has returned.
func (m *migrator) valid() error {
	if m.done {
		return fmt.Errorf("%w: migrator used after upgrade returned", types.ErrClosed)
	}
	return nil
}

var _ types.Migrator = (*migrator)(nil)

func (m *migrator) Exec(ctx context.Context, query string, args ...types.Value) error {
	if err := m.valid(); err != nil {
		return err
	}
	_, err := execOnce(ctx, m.conn, query, args)
	return err
}

func (m *migrator) ExecBatch(ctx context.Context, statements ...string) error {
	if err := m.valid(); err != nil {
		return err
	}
	return execBatch(ctx, m.conn, statements)
}

func (m *migrator) Query(ctx context.Context, query string, args ...types.Value) ([]types.Row, error) {
	if err := m.valid(); err != nil {
		return nil, err
	}
	return queryRows(ctx, m.conn, query, args)
}

func (m *migrator) InsertBatch(ctx context.Context, table string, columns []string, rows [][]types.Value, replace bool) error {
	if err := m.valid(); err != nil {
		return err
	}
	return insertBatch(ctx, m.conn, table, columns, rows, replace)
}
