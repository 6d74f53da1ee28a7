package types

import (
	"context"
	"database/sql"
	"math"
	"time"
)

// NoVersion is reported when the ledger holds no version yet. It is lower
// than any version a caller can declare.
const NoVersion = math.MinInt

// SchemaVersion is one row of the schema version ledger.
type SchemaVersion struct {
	Version   int       `json:"version"`
	AppliedAt time.Time `json:"applied_at"`
}

// Store is a single-connection database. All methods are safe for
// concurrent use; calls are executed one at a time.
type Store interface {
	// Exec runs one statement to completion.
	Exec(ctx context.Context, query string, args ...Value) error

	// ExecBatch runs each statement in order. The first failure stops the
	// batch; statements already run are not rolled back.
	ExecBatch(ctx context.Context, statements ...string) error

	// Query runs a statement and returns every row it produces.
	Query(ctx context.Context, query string, args ...Value) ([]Row, error)

	// QueryCursor runs a statement and passes a cursor over its rows to fn.
	// The cursor is closed when fn returns; a cursor that was not read to
	// the end is reported as ErrCursorMisuse. fn runs under the store lock
	// and must not call back into the Store.
	QueryCursor(ctx context.Context, query string, args []Value, fn func(Cursor) error) error

	// Select builds and runs a SELECT statement.
	Select(ctx context.Context, q Select) ([]Row, error)

	// SelectCursor builds a SELECT statement and iterates it like QueryCursor.
	SelectCursor(ctx context.Context, q Select, fn func(Cursor) error) error

	// InsertRow inserts one row and returns its rowid. With replace set,
	// a row with a conflicting key is replaced.
	InsertRow(ctx context.Context, table string, columns []string, values []Value, replace bool) (int64, error)

	// InsertBatch inserts rows inside one transaction using a single
	// prepared statement. Any failure rolls the whole batch back.
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]Value, replace bool) error

	// Delete removes rows matching where (all rows when where is empty) and
	// returns how many were removed.
	Delete(ctx context.Context, table, where string, whereArgs ...Value) (int64, error)

	// Count returns the number of rows matching where.
	Count(ctx context.Context, table, where string, whereArgs ...Value) (int64, error)

	// Version returns the highest version recorded in the ledger.
	Version(ctx context.Context) (int, error)

	// Versions returns the ledger history in ascending order.
	Versions(ctx context.Context) ([]SchemaVersion, error)

	// Raw runs fn with exclusive access to the underlying connection.
	Raw(ctx context.Context, fn func(conn *sql.Conn) error) error

	// Path returns the database file path, or MemoryName.
	Path() string

	// Close releases the connection. Close is idempotent; afterwards every
	// operation returns ErrClosed.
	Close() error
}

// Migrator is the restricted view of the connection handed to an
// UpgradeFunc. It cannot reopen the store or run another upgrade.
type Migrator interface {
	Exec(ctx context.Context, query string, args ...Value) error
	ExecBatch(ctx context.Context, statements ...string) error
	Query(ctx context.Context, query string, args ...Value) ([]Row, error)
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]Value, replace bool) error
}

// Cursor is a forward-only iterator over the rows of one statement.
//
// Column accessors are valid between a Next call that returned true and the
// following Next or Close. Out-of-range columns read as NULL.
type Cursor interface {
	// Next advances to the next row. It returns false when the rows are
	// exhausted or a step error occurred; Err and Close report the latter.
	Next() bool

	// Columns returns the result column names.
	Columns() []string

	Value(col int) Value
	Int(col int) int64
	Text(col int) string
	Blob(col int) []byte

	// The Null variants report ok=false when the column is NULL or holds
	// another storage class.
	NullInt(col int) (int64, bool)
	NullText(col int) (string, bool)
	NullBlob(col int) ([]byte, bool)

	// Decode parses the column as a JSON payload into out. It returns false
	// when the column is NULL or does not parse.
	Decode(col int, out any) bool

	// Err returns the step error that stopped iteration, if any.
	Err() error

	// Close finalizes the statement. It is idempotent. Closing before Next
	// was called, after a step error, or before the rows were exhausted
	// returns an error wrapping ErrCursorMisuse.
	Close() error
}
