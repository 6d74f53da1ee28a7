package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// SQLite's canonical date and time text layouts. Fractional seconds are
// written only when present.
const (
	sqliteTime     = "2006-01-02 15:04:05.999999999"
	sqliteTimeZone = "2006-01-02 15:04:05.999999999-07:00"
)

// encodeValue converts a Value into the driver representation for its
// storage class.
func encodeValue(v types.Value) (any, error) {
	switch v.Kind() {
	case types.KindNull:
		return nil, nil
	case types.KindInt:
		n, _ := v.AsInt()
		return n, nil
	case types.KindText:
		s, _ := v.AsText()
		return s, nil
	case types.KindBlob:
		b, _ := v.AsBlob()
		return b, nil
	default:
		return nil, fmt.Errorf("%w: kind %s", types.ErrUnsupportedValue, v.Kind())
	}
}

// encodeArgs binds args to positions 1..N. The error names the position.
func encodeArgs(args []types.Value) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		enc, err := encodeValue(a)
		if err != nil {
			return nil, fmt.Errorf("%w: position %d: %w", types.ErrBind, i+1, err)
		}
		out[i] = enc
	}
	return out, nil
}

// decodeValue maps a scanned driver value to a Value by its Go type, which
// modernc.org/sqlite derives from the column's storage class. Blob bytes are
// copied because the driver may reuse them on the next step.
func decodeValue(raw any, col int) (types.Value, error) {
	switch x := raw.(type) {
	case nil:
		return types.Null(), nil
	case int64:
		return types.Int(x), nil
	case string:
		return types.Text(x), nil
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		return types.Blob(b), nil
	case time.Time:
		return types.Text(formatTime(x)), nil
	default:
		return types.Value{}, fmt.Errorf("%w: column %d: unsupported type %T", types.ErrDecode, col, raw)
	}
}

// formatTime renders a time the driver parsed out of a TEXT value in a
// DATE, DATETIME or TIMESTAMP column. Text already in the canonical layout
// comes back unchanged; other layouts the driver accepts come back in the
// canonical one.
func formatTime(t time.Time) string {
	if t.Location() == time.UTC {
		return t.Format(sqliteTime)
	}
	return t.Format(sqliteTimeZone)
}
