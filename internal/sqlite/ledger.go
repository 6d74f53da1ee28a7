package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Schema version ledger DDL and queries. One row per applied upgrade; the
// highest id is the version the schema satisfies.
const (
	createLedger  = `CREATE TABLE schema_versions (id INTEGER PRIMARY KEY, date TEXT)`
	selectVersion = `SELECT MAX(id) FROM schema_versions`
	insertVersion = `INSERT INTO schema_versions (id, date) VALUES (?, ?)`
	selectHistory = `SELECT id, date FROM schema_versions ORDER BY id`
)

// ledger reads and appends schema versions. It has no update or delete path.
type ledger struct {
	p preparer
}

// create makes the ledger table. It runs once, on a brand-new database.
func (l ledger) create(ctx context.Context) error {
	if err := runOne(ctx, l.p, createLedger); err != nil {
		return fmt.Errorf("%w: create ledger: %w", types.ErrLedgerWrite, err)
	}
	return nil
}

// current returns the highest recorded version, or NoVersion when the
// ledger is empty.
func (l ledger) current(ctx context.Context) (int, error) {
	rows, err := queryRows(ctx, l.p, selectVersion, nil)
	if err != nil {
		return types.NoVersion, fmt.Errorf("%w: %w", types.ErrLedgerRead, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return types.NoVersion, fmt.Errorf("%w: no result row", types.ErrLedgerRead)
	}
	v := rows[0][0]
	if v.IsNull() {
		return types.NoVersion, nil
	}
	n, ok := v.AsInt()
	if !ok {
		return types.NoVersion, fmt.Errorf("%w: unexpected %s value", types.ErrLedgerRead, v.Kind())
	}
	return int(n), nil
}

// record appends version v applied at the given time.
func (l ledger) record(ctx context.Context, v int, at time.Time) error {
	args := []types.Value{types.Int(int64(v)), types.Text(at.UTC().Format(time.RFC3339))}
	if _, err := execOnce(ctx, l.p, insertVersion, args); err != nil {
		return fmt.Errorf("%w: version %d: %w", types.ErrLedgerWrite, v, err)
	}
	return nil
}

// history returns every ledger row in ascending version order. Rows whose
// date does not parse keep a zero AppliedAt.
func (l ledger) history(ctx context.Context) ([]types.SchemaVersion, error) {
	rows, err := queryRows(ctx, l.p, selectHistory, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrLedgerRead, err)
	}
	out := make([]types.SchemaVersion, 0, len(rows))
	for _, r := range rows {
		id, _ := r[0].AsInt()
		sv := types.SchemaVersion{Version: int(id)}
		if date, ok := r[1].AsText(); ok {
			if t, err := time.Parse(time.RFC3339, date); err == nil {
				sv.AppliedAt = t
			}
		}
		out = append(out, sv)
	}
	return out, nil
}

// versionString formats v for log lines.
func versionString(v int) string {
	if v == types.NoVersion {
		return "none"
	}
	return fmt.Sprintf("%d", v)
}
