package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the storage class of a Value.
type Kind int

// Value kinds. The set is closed: every column value read from or bound to
// the database is one of these.
const (
	KindNull Kind = iota
	KindInt
	KindText
	KindBlob
)

// String returns the SQLite storage class name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INTEGER"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single bound argument or decoded column value.
// The zero Value is NULL.
type Value struct {
	kind Kind
	i    int64
	s    string
	b    []byte
}

// Row is one decoded result row, one Value per selected column.
type Row []Value

// Null returns the NULL value.
func Null() Value { return Value{} }

// Int returns an INTEGER value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Text returns a TEXT value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Blob returns a BLOB value. A nil slice is stored as an empty blob, not NULL.
func Blob(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: KindBlob, b: b}
}

// JSON marshals v and returns it as a BLOB value. Use Value.Decode to read
// it back.
func JSON(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("%w: marshal structured payload: %w", ErrUnsupportedValue, err)
	}
	return Blob(data), nil
}

// ValueOf converts a host value into a Value. It accepts nil, Value, the Go
// integer kinds, bool (stored as 0 or 1), string, []byte and json.RawMessage.
// Any other type is rejected with ErrUnsupportedValue.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint:
		if uint64(x) > 1<<63-1 {
			return Value{}, fmt.Errorf("%w: %d overflows INTEGER", ErrUnsupportedValue, x)
		}
		return Int(int64(x)), nil
	case uint64:
		if x > 1<<63-1 {
			return Value{}, fmt.Errorf("%w: %d overflows INTEGER", ErrUnsupportedValue, x)
		}
		return Int(int64(x)), nil
	case bool:
		if x {
			return Int(1), nil
		}
		return Int(0), nil
	case string:
		return Text(x), nil
	case json.RawMessage:
		return Blob([]byte(x)), nil
	case []byte:
		return Blob(x), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Values converts each host value with ValueOf. The error names the first
// position that could not be converted.
func Values(args ...any) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := ValueOf(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// Kind returns the storage class of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the integer held by v. ok is false unless v is an INTEGER.
func (v Value) AsInt() (n int64, ok bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsText returns the text held by v. ok is false unless v is TEXT.
func (v Value) AsText() (s string, ok bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.s, true
}

// AsBlob returns the bytes held by v. ok is false unless v is a BLOB.
func (v Value) AsBlob() (b []byte, ok bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return v.b, true
}

// Decode parses a BLOB or TEXT value as JSON into out. It returns false
// when v holds no payload or the payload does not parse; it never fails
// louder than that.
func (v Value) Decode(out any) bool {
	var data []byte
	switch v.kind {
	case KindBlob:
		data = v.b
	case KindText:
		data = []byte(v.s)
	default:
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Equal reports whether v and o have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindText:
		return v.s == o.s
	case KindBlob:
		return string(v.b) == string(o.b)
	default:
		return true
	}
}

// String formats v for display. Blobs are rendered as x'hex' literals.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return v.s
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.b)
	default:
		return "NULL"
	}
}

// MarshalJSON encodes NULL as null, INTEGER as a number, TEXT as a string
// and BLOB as a base64 string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindText:
		return json.Marshal(v.s)
	case KindBlob:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.b))
	default:
		return []byte("null"), nil
	}
}
