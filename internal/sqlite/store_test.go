package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

const createItems = `CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)`

// upgradeCall records one invocation of an UpgradeFunc.
type upgradeCall struct {
	from, to int
}

// recorder returns an UpgradeFunc that creates the items table and appends
// every call to calls.
func recorder(calls *[]upgradeCall) types.UpgradeFunc {
	return func(ctx context.Context, m types.Migrator, from, to int) error {
		*calls = append(*calls, upgradeCall{from: from, to: to})
		return m.Exec(ctx, `CREATE TABLE IF NOT EXISTS items (id INTEGER PRIMARY KEY, label TEXT)`)
	}
}

// newTestStore creates a Store in a temporary directory and closes it when
// the test ends.
func newTestStore(t *testing.T, cfg types.Config) *Store {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test.db"
	}
	if cfg.DataDir == "" && !cfg.InMemory() {
		cfg.DataDir = t.TempDir()
	}
	s, err := NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// reopen closes s and returns a new Store on the same file.
func reopen(t *testing.T, s *Store, version int, fn types.UpgradeFunc) *Store {
	t.Helper()
	require.NoError(t, s.Close())
	return newTestStore(t, types.Config{
		Name:      s.config.Name,
		DataDir:   s.config.DataDir,
		Version:   version,
		OnUpgrade: fn,
	})
}

func TestNewStore_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.Config
		want error
	}{
		{name: "empty name", cfg: types.Config{Version: 1}, want: types.ErrNameEmpty},
		{name: "name with separator", cfg: types.Config{Name: "a/b.db", Version: 1}, want: types.ErrNameInvalid},
		{name: "negative version", cfg: types.Config{Name: "a.db", Version: -1}, want: types.ErrVersionInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewStore_IsLazy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := newTestStore(t, types.Config{Name: "lazy.db", DataDir: dir, Version: 1})

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "data dir must not exist before the first operation")

	_, err = s.Version(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "lazy.db"))
}

func TestNewStore_DefaultDataDir(t *testing.T) {
	dir := t.TempDir()
	orig := defaultDataDir
	defaultDataDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { defaultDataDir = orig })

	s, err := NewStore(types.Config{Name: "default.db", Version: 1})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, filepath.Join(dir, "default.db"), s.Path())
}

func TestStore_FreshDatabase(t *testing.T) {
	ctx := context.Background()
	var calls []upgradeCall
	s := newTestStore(t, types.Config{Version: 1, OnUpgrade: recorder(&calls)})

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.Len(t, calls, 1)
	assert.Equal(t, upgradeCall{from: types.NoVersion, to: 1}, calls[0])

	rows, err := s.Query(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, types.Text("schema_versions"))
	require.NoError(t, err)
	assert.Len(t, rows, 1, "ledger table must exist")
}

func TestStore_OpensOnce(t *testing.T) {
	ctx := context.Background()
	var calls []upgradeCall
	s := newTestStore(t, types.Config{Version: 1, OnUpgrade: recorder(&calls)})

	for i := 0; i < 3; i++ {
		_, err := s.Count(ctx, "items", "")
		require.NoError(t, err)
	}
	assert.Len(t, calls, 1)
}

func TestStore_ExistingUpToDate(t *testing.T) {
	ctx := context.Background()
	var calls []upgradeCall
	s := newTestStore(t, types.Config{Version: 2, OnUpgrade: recorder(&calls)})
	_, err := s.Version(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)

	for _, declared := range []int{2, 1, 0} {
		s = reopen(t, s, declared, recorder(&calls))
		v, err := s.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, v, "declared %d must not change the ledger", declared)
	}
	assert.Len(t, calls, 1, "upgrade must not run when the stored version is current")
}

func TestStore_ExistingBehind(t *testing.T) {
	ctx := context.Background()
	var calls []upgradeCall
	s := newTestStore(t, types.Config{Version: 1, OnUpgrade: recorder(&calls)})
	_, err := s.Version(ctx)
	require.NoError(t, err)

	s = reopen(t, s, 3, recorder(&calls))
	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	require.Len(t, calls, 2)
	assert.Equal(t, upgradeCall{from: 1, to: 3}, calls[1])

	history, err := s.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, 3, history[1].Version)
	assert.False(t, history[1].AppliedAt.IsZero())
}

func TestStore_NoUpgradeFuncRecordsVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, types.Config{Version: 4})

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestStore_UpgradeFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	fn := func(ctx context.Context, m types.Migrator, from, to int) error {
		attempts++
		if attempts == 1 {
			return errors.New("boom")
		}
		return m.Exec(ctx, createItems)
	}
	s := newTestStore(t, types.Config{Version: 1, OnUpgrade: fn})

	_, err := s.Version(ctx)
	require.ErrorIs(t, err, types.ErrUpgrade)

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, attempts)
}

func TestStore_MigratorExpiresAfterUpgrade(t *testing.T) {
	ctx := context.Background()
	var kept types.Migrator
	s := newTestStore(t, types.Config{Version: 1, OnUpgrade: func(ctx context.Context, m types.Migrator, from, to int) error {
		kept = m
		return m.ExecBatch(ctx, createItems)
	}})
	_, err := s.Version(ctx)
	require.NoError(t, err)
	require.NotNil(t, kept)

	err = kept.Exec(ctx, `DROP TABLE items`)
	assert.ErrorIs(t, err, types.ErrClosed)
}

func TestStore_MigratorInsertBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, types.Config{Version: 1, OnUpgrade: func(ctx context.Context, m types.Migrator, from, to int) error {
		if err := m.Exec(ctx, createItems); err != nil {
			return err
		}
		return m.InsertBatch(ctx, "items", []string{"id", "label"}, [][]types.Value{
			{types.Int(1), types.Text("seed")},
		}, false)
	}})

	n, err := s.Count(ctx, "items", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_Close(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, types.Config{Version: 1})
	_, err := s.Version(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close must be idempotent")

	_, err = s.Version(ctx)
	assert.ErrorIs(t, err, types.ErrClosed)
}

func TestStore_CloseBeforeOpen(t *testing.T) {
	s := newTestStore(t, types.Config{Version: 1})
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Exec(context.Background(), `SELECT 1`), types.ErrClosed)
}

func TestStore_InMemory(t *testing.T) {
	ctx := context.Background()
	var calls []upgradeCall
	s := newTestStore(t, types.Config{Name: types.MemoryName, Version: 1, OnUpgrade: recorder(&calls)})

	_, err := s.InsertRow(ctx, "items", []string{"id", "label"}, []types.Value{types.Int(7), types.Text("mem")}, false)
	require.NoError(t, err)
	assert.Equal(t, types.MemoryName, s.Path())
	assert.Len(t, calls, 1)

	rows, err := s.Query(ctx, `SELECT label FROM items WHERE id = ?`, types.Int(7))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Text("mem"), rows[0][0])
}

func TestStore_Raw(t *testing.T) {
	ctx := context.Background()
	var calls []upgradeCall
	s := newTestStore(t, types.Config{Version: 1, OnUpgrade: recorder(&calls)})

	err := s.Raw(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `INSERT INTO items (id, label) VALUES (1, 'raw')`)
		return err
	})
	require.NoError(t, err)

	n, err := s.Count(ctx, "items", "label = ?", types.Text("raw"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_SerializesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	var calls []upgradeCall
	s := newTestStore(t, types.Config{Version: 1, OnUpgrade: recorder(&calls)})

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := int64(w*perWorker + i + 1)
				if _, err := s.InsertRow(ctx, "items", []string{"id", "label"}, []types.Value{types.Int(id), types.Text("x")}, false); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := s.Count(ctx, "items", "")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), n)
	assert.Len(t, calls, 1)
}

func TestStore_ExecErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, types.Config{Version: 1})

	t.Run("prepare failure names the statement", func(t *testing.T) {
		_, err := s.Query(ctx, `SELECT nope FROM missing`)
		require.ErrorIs(t, err, types.ErrPrepare)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("exec failure", func(t *testing.T) {
		require.NoError(t, s.Exec(ctx, createItems))
		require.NoError(t, s.Exec(ctx, `INSERT INTO items (id, label) VALUES (?, ?)`, types.Int(1), types.Text("a")))
		err := s.Exec(ctx, `INSERT INTO items (id, label) VALUES (?, ?)`, types.Int(1), types.Text("dup"))
		assert.ErrorIs(t, err, types.ErrExec)
	})
}

func TestStore_ExecBatchStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, types.Config{Version: 1})

	err := s.ExecBatch(ctx,
		`CREATE TABLE first (id INTEGER)`,
		`CREATE TABLE broken (`,
		`CREATE TABLE third (id INTEGER)`,
	)
	require.ErrorIs(t, err, types.ErrPrepare)
	assert.Contains(t, err.Error(), "statement 2 of 3")

	n, err := s.Count(ctx, "sqlite_master", "type = 'table' AND name IN (?, ?)", types.Text("first"), types.Text("third"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "first stays applied, third never runs")
}
