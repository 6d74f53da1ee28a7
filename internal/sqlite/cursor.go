package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// stepStatus is the outcome of the most recent advance.
type stepStatus int

const (
	statusUnset stepStatus = iota
	statusRow
	statusDone
	statusError
)

// cursor implements types.Cursor over one prepared statement.
type cursor struct {
	stmt    *statement
	rows    *sql.Rows
	columns []string
	raw     []any
	dest    []any
	current types.Row
	status  stepStatus
	err     error
	closed  bool
}

var _ types.Cursor = (*cursor)(nil)

// openCursor prepares query, binds args and starts stepping it. On failure
// the statement is already finalized.
func openCursor(ctx context.Context, p preparer, query string, args []types.Value) (*cursor, error) {
	st, err := prepare(ctx, p, query)
	if err != nil {
		return nil, err
	}
	if err := st.bind(args); err != nil {
		return nil, joinErrors(err, st.finalize())
	}
	rows, err := st.rows(ctx)
	if err != nil {
		return nil, joinErrors(err, st.finalize())
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, joinErrors(fmt.Errorf("%w: %q: columns: %w", types.ErrStep, query, err), rows.Close(), st.finalize())
	}

	c := &cursor{
		stmt:    st,
		rows:    rows,
		columns: columns,
		raw:     make([]any, len(columns)),
		dest:    make([]any, len(columns)),
	}
	for i := range c.raw {
		c.dest[i] = &c.raw[i]
	}
	return c, nil
}

// Next steps the statement and reports whether a row is current.
func (c *cursor) Next() bool {
	if c.closed || c.status == statusDone || c.status == statusError {
		return false
	}
	c.current = nil

	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			c.fail(fmt.Errorf("%w: %q: %w", types.ErrStep, c.stmt.query, err))
			return false
		}
		c.status = statusDone
		return false
	}

	if err := c.rows.Scan(c.dest...); err != nil {
		c.fail(fmt.Errorf("%w: %q: %w", types.ErrStep, c.stmt.query, err))
		return false
	}
	row := make(types.Row, len(c.raw))
	for i, raw := range c.raw {
		v, err := decodeValue(raw, i)
		if err != nil {
			c.fail(fmt.Errorf("%q: %w", c.stmt.query, err))
			return false
		}
		row[i] = v
	}
	c.current = row
	c.status = statusRow
	return true
}

func (c *cursor) fail(err error) {
	c.status = statusError
	c.err = err
	c.current = nil
}

// Row returns the current row.
func (c *cursor) Row() types.Row {
	return c.current
}

// Columns returns the result column names.
func (c *cursor) Columns() []string {
	return c.columns
}

// Value returns column col of the current row, or NULL when out of range.
func (c *cursor) Value(col int) types.Value {
	if col < 0 || col >= len(c.current) {
		return types.Null()
	}
	return c.current[col]
}

// Int returns column col as an integer, or 0.
func (c *cursor) Int(col int) int64 {
	n, _ := c.Value(col).AsInt()
	return n
}

// Text returns column col as text, or "".
func (c *cursor) Text(col int) string {
	s, _ := c.Value(col).AsText()
	return s
}

// Blob returns column col as bytes, or nil.
func (c *cursor) Blob(col int) []byte {
	b, _ := c.Value(col).AsBlob()
	return b
}

// NullInt returns column col as an integer and false when it is NULL.
func (c *cursor) NullInt(col int) (int64, bool) {
	v := c.Value(col)
	if v.IsNull() {
		return 0, false
	}
	return v.AsInt()
}

// NullText returns column col as text and false when it is NULL.
func (c *cursor) NullText(col int) (string, bool) {
	v := c.Value(col)
	if v.IsNull() {
		return "", false
	}
	return v.AsText()
}

// NullBlob returns column col as bytes and false when it is NULL.
func (c *cursor) NullBlob(col int) ([]byte, bool) {
	v := c.Value(col)
	if v.IsNull() {
		return nil, false
	}
	return v.AsBlob()
}

// Decode unmarshals the JSON held in column col into out.
func (c *cursor) Decode(col int, out any) bool {
	return c.Value(col).Decode(out)
}

// Err returns the error that stopped iteration, if any.
func (c *cursor) Err() error {
	return c.err
}

// Close finalizes the statement, then reports how iteration ended. Only a
// cursor that reached the end of its rows closes cleanly.
func (c *cursor) Close() error {
	if c.closed {
		return nil
	}

	var misuse error
	switch c.status {
	case statusDone:
	case statusUnset:
		misuse = fmt.Errorf("%w: %w: %q", types.ErrCursorMisuse, types.ErrCursorNotAdvanced, c.stmt.query)
	case statusRow:
		misuse = fmt.Errorf("%w: %w: %q", types.ErrCursorMisuse, types.ErrCursorAbandoned, c.stmt.query)
	case statusError:
		misuse = fmt.Errorf("%w: %w: %w", types.ErrCursorMisuse, types.ErrCursorStep, c.err)
	}

	return joinErrors(misuse, c.release())
}

// release closes the rows and finalizes the statement without judging how
// iteration ended. Later calls to Close return nil.
func (c *cursor) release() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.current = nil

	var closeErr error
	if err := c.rows.Close(); err != nil {
		closeErr = fmt.Errorf("close rows %q: %w", c.stmt.query, err)
	}
	return joinErrors(closeErr, c.stmt.finalize())
}
