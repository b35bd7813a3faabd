package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ValueType tags the variant held by a Value.
type ValueType uint8

const (
	TypeNull ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeObject
	TypeArray
)

func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is one decoded webhook field.
// The zero Value is null. Every accessor is total: asking a value for
// something it does not hold yields a null Value or ok=false, never a panic.
type Value struct {
	typ ValueType
	b   bool
	i   int64
	f   float64
	s   string
	obj map[string]Value
	arr []Value
}

// Null is the absent value.
var Null = Value{}

func BoolValue(b bool) Value     { return Value{typ: TypeBool, b: b} }
func IntValue(i int64) Value     { return Value{typ: TypeInt, i: i} }
func FloatValue(f float64) Value { return Value{typ: TypeFloat, f: f} }
func StringValue(s string) Value { return Value{typ: TypeString, s: s} }

func ObjectValue(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{typ: TypeObject, obj: m}
}

func ArrayValue(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{typ: TypeArray, arr: items}
}

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsNull() bool    { return v.typ == TypeNull }
func (v Value) IsString() bool  { return v.typ == TypeString }
func (v Value) IsObject() bool  { return v.typ == TypeObject }

// Get walks object keys. Any miss along the path yields Null.
func (v Value) Get(path ...string) Value {
	cur := v
	for _, k := range path {
		if cur.typ != TypeObject {
			return Null
		}
		next, ok := cur.obj[k]
		if !ok {
			return Null
		}
		cur = next
	}
	return cur
}

// Index returns the i-th array element, or Null.
func (v Value) Index(i int) Value {
	if v.typ != TypeArray || i < 0 || i >= len(v.arr) {
		return Null
	}
	return v.arr[i]
}

func (v Value) Len() int {
	switch v.typ {
	case TypeObject:
		return len(v.obj)
	case TypeArray:
		return len(v.arr)
	default:
		return 0
	}
}

// Str returns the string only when the value is a string.
func (v Value) Str() (string, bool) {
	if v.typ != TypeString {
		return "", false
	}
	return v.s, true
}

// Bool returns the boolean only when the value is a bool.
func (v Value) Bool() (bool, bool) {
	if v.typ != TypeBool {
		return false, false
	}
	return v.b, true
}

// Int64 converts ints, integral floats and decimal strings.
func (v Value) Int64() (int64, bool) {
	switch v.typ {
	case TypeInt:
		return v.i, true
	case TypeFloat:
		if v.f == float64(int64(v.f)) {
			return int64(v.f), true
		}
		return 0, false
	case TypeString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Text renders scalars as text. Null, objects and arrays are not text.
func (v Value) Text() (string, bool) {
	switch v.typ {
	case TypeString:
		return v.s, true
	case TypeInt:
		return strconv.FormatInt(v.i, 10), true
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64), true
	case TypeBool:
		return strconv.FormatBool(v.b), true
	default:
		return "", false
	}
}

// Interface converts the value back to plain Go values (for logging and JSON).
func (v Value) Interface() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	case TypeString:
		return v.s
	case TypeObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Interface()
		}
		return out
	case TypeArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

var errTrailingData = errors.New("trailing data after json value")

// parseJSONValue decodes exactly one JSON document, keeping integers exact.
func parseJSONValue(s string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Null, errTrailingData
	}
	return fromJSON(raw), nil
}

func fromJSON(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null
	case bool:
		return BoolValue(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return IntValue(n)
		}
		if f, err := t.Float64(); err == nil {
			return FloatValue(f)
		}
		return StringValue(t.String())
	case string:
		return StringValue(t)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = fromJSON(e)
		}
		return ObjectValue(m)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = fromJSON(e)
		}
		return ArrayValue(items)
	default:
		return Null
	}
}

// Flat is the single-level map produced by Decode, keyed by short key.
type Flat map[string]Value

// Get looks up a short key and walks the rest of the path inside it.
func (f Flat) Get(key string, path ...string) Value {
	v, ok := f[key]
	if !ok {
		return Null
	}
	return v.Get(path...)
}

func (f Flat) Has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f Flat) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(f))
	for k, v := range f {
		m[k] = v.Interface()
	}
	return json.Marshal(m)
}
