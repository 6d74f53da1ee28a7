package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// txBeginner is satisfied by *sql.Conn.
type txBeginner interface {
	preparer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// insertRow inserts one row and returns its rowid.
func insertRow(ctx context.Context, p preparer, table string, columns []string, values []types.Value, replace bool) (int64, error) {
	query, err := buildInsert(table, columns, replace)
	if err != nil {
		return 0, err
	}
	if len(values) != len(columns) {
		return 0, fmt.Errorf("%w: insert into %s: %d columns but %d values", types.ErrInvalidQuery, table, len(columns), len(values))
	}
	res, err := execOnce(ctx, p, query, values)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %q: last insert id: %w", types.ErrExec, query, err)
	}
	return id, nil
}

// insertBatch prepares one INSERT and runs it once per row inside a single
// transaction. Bindings are cleared between rows. On any failure the
// transaction is rolled back.
func insertBatch(ctx context.Context, b txBeginner, table string, columns []string, rows [][]types.Value, replace bool) (err error) {
	query, err := buildInsert(table, columns, replace)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: insert into %s: row %d has %d values for %d columns", types.ErrInvalidQuery, table, i, len(row), len(columns))
		}
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin batch into %s: %w", types.ErrExec, table, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = joinErrors(err, fmt.Errorf("rollback batch into %s: %w", table, rbErr))
		}
	}()

	st, err := prepare(ctx, tx, query)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if err := st.bind(row); err != nil {
			return joinErrors(fmt.Errorf("row %d: %w", i, err), st.finalize())
		}
		if _, err := st.run(ctx); err != nil {
			return joinErrors(fmt.Errorf("row %d: %w", i, err), st.finalize())
		}
		st.clearBindings()
	}
	if err := st.finalize(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit batch into %s: %w", types.ErrExec, table, err)
	}
	return nil
}
