package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// preparer is satisfied by *sql.Conn and *sql.Tx.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// statement is a prepared statement plus its bound arguments. It must be
// finalized exactly once.
type statement struct {
	query     string
	stmt      *sql.Stmt
	args      []any
	finalized bool
}

// prepare compiles query on p.
func prepare(ctx context.Context, p preparer, query string) (*statement, error) {
	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", types.ErrPrepare, query, err)
	}
	return &statement{query: query, stmt: stmt}, nil
}

// bind sets the arguments for the placeholders 1..len(args). Supplying the
// number of arguments the statement expects is the caller's job.
func (s *statement) bind(args []types.Value) error {
	enc, err := encodeArgs(args)
	if err != nil {
		return fmt.Errorf("%q: %w", s.query, err)
	}
	s.args = enc
	return nil
}

// clearBindings drops the bound arguments so the statement can be reused.
func (s *statement) clearBindings() {
	s.args = nil
}

// run steps the statement to completion and discards any rows.
func (s *statement) run(ctx context.Context) (sql.Result, error) {
	res, err := s.stmt.ExecContext(ctx, s.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", types.ErrStep, s.query, err)
	}
	return res, nil
}

// rows starts stepping the statement and returns the result set.
func (s *statement) rows(ctx context.Context) (*sql.Rows, error) {
	rows, err := s.stmt.QueryContext(ctx, s.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", types.ErrStep, s.query, err)
	}
	return rows, nil
}

// finalize releases the statement. Further calls are no-ops.
func (s *statement) finalize() error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	if err := s.stmt.Close(); err != nil {
		return fmt.Errorf("finalize %q: %w", s.query, err)
	}
	return nil
}

// execOnce prepares, binds and runs one statement.
func execOnce(ctx context.Context, p preparer, query string, args []types.Value) (res sql.Result, err error) {
	st, err := prepare(ctx, p, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = joinErrors(err, st.finalize())
	}()

	if err := st.bind(args); err != nil {
		return nil, err
	}
	res, err = st.stmt.ExecContext(ctx, st.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", types.ErrExec, query, err)
	}
	return res, nil
}

// execBatch runs each statement to completion in order and stops at the
// first failure. Nothing is rolled back.
func execBatch(ctx context.Context, p preparer, statements []string) error {
	for i, query := range statements {
		if err := runOne(ctx, p, query); err != nil {
			return fmt.Errorf("statement %d of %d: %w", i+1, len(statements), err)
		}
	}
	return nil
}

func runOne(ctx context.Context, p preparer, query string) (err error) {
	st, err := prepare(ctx, p, query)
	if err != nil {
		return err
	}
	defer func() {
		err = joinErrors(err, st.finalize())
	}()
	_, err = st.run(ctx)
	return err
}

// queryRows runs query and materializes every row.
func queryRows(ctx context.Context, p preparer, query string, args []types.Value) (out []types.Row, err error) {
	c, err := openCursor(ctx, p, query, args)
	if err != nil {
		return nil, err
	}
	for c.Next() {
		out = append(out, c.Row())
	}
	if err := c.Err(); err != nil {
		return nil, joinErrors(err, c.release())
	}
	if err := c.Close(); err != nil {
		return nil, err
	}
	return out, nil
}
