// Package sqlite implements the single-connection SQLite store behind
// pkg/sqlite. A Store opens its connection on first use, creates the schema
// version ledger on a brand-new file, and runs the caller's upgrade when the
// recorded version is behind the declared one.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/mesh-intelligence/pantry/internal/paths"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

const (
	driverName = "sqlite"

	// dsnPragmas are applied to the connection when it is opened.
	dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
)

// defaultDataDir resolves the directory used when Config.DataDir is empty.
// Tests replace it.
var defaultDataDir = paths.DefaultDataDir

// Store implements types.Store over exactly one SQLite connection. The
// mutex serializes every call that touches the connection.
type Store struct {
	mu     sync.Mutex
	config types.Config
	id     string
	log    lgr.L
	dir    string
	path   string
	now    func() time.Time
	db     *sql.DB
	conn   *sql.Conn
	closed bool
}

var _ types.Store = (*Store)(nil)

// NewStore validates cfg and returns a Store that is not yet connected; the
// connection opens on the first operation.
func NewStore(cfg types.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		config: cfg,
		id:     newInstanceID(),
		log:    cfg.Logger,
		now:    time.Now,
	}
	if s.log == nil {
		s.log = lgr.NoOp
	}

	if cfg.InMemory() {
		s.path = types.MemoryName
		return s, nil
	}
	s.dir = cfg.DataDir
	if s.dir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
		s.dir = dir
	}
	s.path = filepath.Join(s.dir, cfg.Name)
	return s, nil
}

// newInstanceID returns a UUID v7 identifying the store in log lines.
func newInstanceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Path returns the database file path, or MemoryName.
func (s *Store) Path() string {
	return s.path
}

// withConn runs fn under the store lock with an open connection.
func (s *Store) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ErrClosed
	}
	conn, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	return fn(conn)
}

// ensureOpen returns the cached connection, opening it first if needed.
// The caller must hold s.mu.
func (s *Store) ensureOpen(ctx context.Context) (*sql.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	fresh := s.config.InMemory()
	dsn := s.path
	if !fresh {
		dir, err := paths.EnsureDir(s.dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrOpen, err)
		}
		s.dir = dir
		s.path = filepath.Join(dir, s.config.Name)
		dsn = s.path

		_, err = os.Stat(s.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			fresh = true
		case err != nil:
			return nil, fmt.Errorf("%w: stat %s: %w", types.ErrOpen, s.path, err)
		}
	}
	s.log.Logf("[DEBUG] store %s: opening %s, new=%t", s.id, s.path, fresh)

	db, err := sql.Open(driverName, dsn+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrOpen, s.path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err == nil {
		err = conn.PingContext(ctx)
	}
	if err != nil {
		return nil, joinErrors(fmt.Errorf("%w: %s: %w", types.ErrOpen, s.path, err), closeAll(conn, db))
	}

	if fresh {
		if err := (ledger{p: conn}).create(ctx); err != nil {
			return nil, joinErrors(err, closeAll(conn, db))
		}
	}
	if err := s.migrate(ctx, conn); err != nil {
		return nil, joinErrors(err, closeAll(conn, db))
	}

	s.db, s.conn = db, conn
	s.log.Logf("[INFO] store %s: opened %s at schema version %d", s.id, s.path, s.config.Version)
	return conn, nil
}

// migrate compares the recorded version with the declared one and runs the
// upgrade when the database is behind. Upgrade and version record are two
// separate steps; a crash between them reruns the upgrade on next open.
func (s *Store) migrate(ctx context.Context, conn *sql.Conn) error {
	l := ledger{p: conn}
	current, err := l.current(ctx)
	if err != nil {
		s.log.Logf("[DEBUG] store %s: no schema version yet: %v", s.id, err)
		current = types.NoVersion
	}

	target := s.config.Version
	if current >= target {
		return nil
	}

	if s.config.OnUpgrade != nil {
		s.log.Logf("[INFO] store %s: upgrading schema from %s to %d", s.id, versionString(current), target)
		m := &migrator{conn: conn}
		err := s.config.OnUpgrade(ctx, m, current, target)
		m.done = true
		if err != nil {
			return fmt.Errorf("%w: from %s to %d: %w", types.ErrUpgrade, versionString(current), target, err)
		}
	}
	return l.record(ctx, target, s.now())
}

func closeAll(conn *sql.Conn, db *sql.DB) error {
	var errs []error
	if conn != nil {
		errs = append(errs, conn.Close())
	}
	if db != nil {
		errs = append(errs, db.Close())
	}
	return joinErrors(errs...)
}

// Close releases the connection. It is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := closeAll(s.conn, s.db)
	s.conn, s.db = nil, nil
	if err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	s.log.Logf("[DEBUG] store %s: closed %s", s.id, s.path)
	return nil
}

// Exec runs one statement to completion.
func (s *Store) Exec(ctx context.Context, query string, args ...types.Value) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := execOnce(ctx, conn, query, args)
		return err
	})
}

// ExecBatch runs statements in order and stops at the first failure.
func (s *Store) ExecBatch(ctx context.Context, statements ...string) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		return execBatch(ctx, conn, statements)
	})
}

// Query runs query and returns every row.
func (s *Store) Query(ctx context.Context, query string, args ...types.Value) ([]types.Row, error) {
	var rows []types.Row
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		rows, err = queryRows(ctx, conn, query, args)
		return err
	})
	return rows, err
}

// QueryCursor runs query and hands fn a cursor that is closed when fn returns.
func (s *Store) QueryCursor(ctx context.Context, query string, args []types.Value, fn func(types.Cursor) error) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		c, err := openCursor(ctx, conn, query, args)
		if err != nil {
			return err
		}
		return joinErrors(fn(c), c.Close())
	})
}

// Select builds q and returns every row.
func (s *Store) Select(ctx context.Context, q types.Select) ([]types.Row, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, query, args...)
}

// SelectCursor builds q and streams its rows to fn.
func (s *Store) SelectCursor(ctx context.Context, q types.Select, fn func(types.Cursor) error) error {
	query, args, err := buildSelect(q)
	if err != nil {
		return err
	}
	return s.QueryCursor(ctx, query, args, fn)
}

// InsertRow inserts one row and returns its rowid.
func (s *Store) InsertRow(ctx context.Context, table string, columns []string, values []types.Value, replace bool) (int64, error) {
	var id int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		id, err = insertRow(ctx, conn, table, columns, values, replace)
		return err
	})
	return id, err
}

// InsertBatch inserts rows in one transaction, rolling back on any failure.
func (s *Store) InsertBatch(ctx context.Context, table string, columns []string, rows [][]types.Value, replace bool) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		if err := insertBatch(ctx, conn, table, columns, rows, replace); err != nil {
			return err
		}
		s.log.Logf("[DEBUG] store %s: inserted %d rows into %s", s.id, len(rows), table)
		return nil
	})
}

// Delete removes the rows matching where and returns how many went.
func (s *Store) Delete(ctx context.Context, table, where string, whereArgs ...types.Value) (int64, error) {
	query, err := buildDelete(table, where, whereArgs)
	if err != nil {
		return 0, err
	}
	var affected int64
	err = s.withConn(ctx, func(conn *sql.Conn) error {
		res, err := execOnce(ctx, conn, query, whereArgs)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: %q: rows affected: %w", types.ErrExec, query, err)
		}
		return nil
	})
	return affected, err
}

// Count returns the number of rows matching where.
func (s *Store) Count(ctx context.Context, table, where string, whereArgs ...types.Value) (int64, error) {
	rows, err := s.Select(ctx, types.Select{
		Table:     table,
		Columns:   []string{"COUNT(*)"},
		Where:     where,
		WhereArgs: whereArgs,
	})
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("%w: count from %s returned %d rows", types.ErrStep, table, len(rows))
	}
	n, _ := rows[0][0].AsInt()
	return n, nil
}

// Version returns the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v int
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		v, err = ledger{p: conn}.current(ctx)
		return err
	})
	return v, err
}

// Versions returns the schema version history, oldest first.
func (s *Store) Versions(ctx context.Context) ([]types.SchemaVersion, error) {
	var out []types.SchemaVersion
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		out, err = ledger{p: conn}.history(ctx)
		return err
	})
	return out, err
}

// Raw runs fn with the connection while holding the store lock. fn must not
// call back into the Store.
func (s *Store) Raw(ctx context.Context, fn func(conn *sql.Conn) error) error {
	return s.withConn(ctx, fn)
}
