package types

import "errors"

// Statement and connection errors. Errors returned by a Store wrap one of
// these together with the driver error and name the SQL text involved.
var (
	ErrOpen    = errors.New("open database failed")
	ErrPrepare = errors.New("prepare statement failed")
	ErrStep    = errors.New("step statement failed")
	ErrBind    = errors.New("bind argument failed")
	ErrExec    = errors.New("exec statement failed")
	ErrDecode  = errors.New("decode column failed")
	ErrClosed  = errors.New("store is closed")
)

// Cursor lifecycle errors. Each specific error also wraps ErrCursorMisuse.
var (
	ErrCursorMisuse      = errors.New("cursor misuse")
	ErrCursorNotAdvanced = errors.New("cursor closed before it was advanced")
	ErrCursorAbandoned   = errors.New("cursor closed before its rows were consumed")
	ErrCursorStep        = errors.New("cursor stopped on a step error")
)

// Schema version ledger errors.
var (
	ErrLedgerRead  = errors.New("read schema version failed")
	ErrLedgerWrite = errors.New("record schema version failed")
	ErrUpgrade     = errors.New("schema upgrade failed")
)

// Value and query construction errors.
var (
	ErrUnsupportedValue = errors.New("unsupported value type")
	ErrInvalidQuery     = errors.New("invalid query")
)
