package record

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
)

// Value is one element of a field's value list.
type Value interface {
	// String returns the textual form used by accessors and notation.
	// Structured values render as compact JSON.
	String() string
	isValue()
}

// Structured is a Value with named members.
type Structured interface {
	Value
	// Property returns the named member and whether it exists.
	Property(name string) (string, bool)
	// PropertyNames lists the members Property accepts.
	PropertyNames() []string
}

// Text is a plain string value.
type Text string

func (t Text) String() string { return string(t) }
func (Text) isValue()         {}

// Number is a numeric value, kept in its JSON text form so that
// millisecond timestamps survive a round trip unchanged.
type Number json.Number

func (n Number) String() string { return string(n) }
func (Number) isValue()         {}

// MarshalJSON writes the number unquoted.
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	return []byte(n), nil
}

// Int returns the number as an int64.
func (n Number) Int() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Bool is a checkbox value.
type Bool bool

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (Bool) isValue()         {}

// Raw holds a value element that is neither scalar nor object.
type Raw json.RawMessage

func (r Raw) String() string { return string(r) }
func (Raw) isValue()         {}

// MarshalJSON writes the stored bytes as-is.
func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// Object is a structured value of a field type without a dedicated Go type.
type Object map[string]any

func (o Object) String() string { return compactJSON(o) }
func (Object) isValue()         {}

// Property returns the member rendered as text. Nested values render as JSON.
func (o Object) Property(name string) (string, bool) {
	v, ok := o[name]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return compactJSON(v), true
}

// PropertyNames returns the object's keys in sorted order.
func (o Object) PropertyNames() []string {
	return slices.Sorted(maps.Keys(o))
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
