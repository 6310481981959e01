package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrIndexOutOfBounds is returned when a value index is outside the value list.
var ErrIndexOutOfBounds = errors.New("value index out of bounds")

// ErrUnsupportedProperty is returned when a property is requested from a
// plain value or the structured type has no such member.
var ErrUnsupportedProperty = errors.New("unsupported property access")

type kind int

const (
	kindInferred kind = iota
	kindText
	kindNumber
	kindBool
	kindName
	kindPhone
	kindHost
	kindSecurityQuestion
	kindAddress
	kindPaymentCard
	kindBankAccount
	kindKeyPair
)

// fieldKinds is the closed table of field types with a known value shape.
var fieldKinds = map[string]kind{
	"login":            kindText,
	"password":         kindText,
	"url":              kindText,
	"text":             kindText,
	"multiline":        kindText,
	"email":            kindText,
	"secret":           kindText,
	"note":             kindText,
	"oneTimeCode":      kindText,
	"otp":              kindText,
	"pinCode":          kindText,
	"accountNumber":    kindText,
	"licenseNumber":    kindText,
	"fileRef":          kindText,
	"cardRef":          kindText,
	"addressRef":       kindText,
	"date":             kindNumber,
	"birthDate":        kindNumber,
	"expirationDate":   kindNumber,
	"checkbox":         kindBool,
	"name":             kindName,
	"phone":            kindPhone,
	"host":             kindHost,
	"securityQuestion": kindSecurityQuestion,
	"address":          kindAddress,
	"paymentCard":      kindPaymentCard,
	"bankAccount":      kindBankAccount,
	"keyPair":          kindKeyPair,
}

// PropertiesOf returns the property names accepted by values of fieldType,
// or nil when the type holds plain scalars or has no fixed shape.
func PropertiesOf(fieldType string) []string {
	switch fieldKinds[fieldType] {
	case kindName:
		return nameAccessors.names()
	case kindPhone:
		return phoneAccessors.names()
	case kindHost:
		return hostAccessors.names()
	case kindSecurityQuestion:
		return securityQuestionAccessors.names()
	case kindAddress:
		return addressAccessors.names()
	case kindPaymentCard:
		return paymentCardAccessors.names()
	case kindBankAccount:
		return bankAccountAccessors.names()
	case kindKeyPair:
		return keyPairAccessors.names()
	}
	return nil
}

func decodeAs[T Value](raw json.RawMessage) (Value, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeValue(k kind, raw json.RawMessage) Value {
	var (
		v   Value
		err error
	)
	switch k {
	case kindText:
		v, err = decodeAs[Text](raw)
	case kindNumber:
		v, err = decodeNumber(raw)
	case kindBool:
		v, err = decodeAs[Bool](raw)
	case kindName:
		v, err = decodeAs[Name](raw)
	case kindPhone:
		v, err = decodeAs[Phone](raw)
	case kindHost:
		v, err = decodeAs[Host](raw)
	case kindSecurityQuestion:
		v, err = decodeAs[SecurityQuestion](raw)
	case kindAddress:
		v, err = decodeAs[Address](raw)
	case kindPaymentCard:
		v, err = decodeAs[PaymentCard](raw)
	case kindBankAccount:
		v, err = decodeAs[BankAccount](raw)
	case kindKeyPair:
		v, err = decodeAs[KeyPair](raw)
	default:
		err = errors.New("inferred")
	}
	if err == nil {
		return v
	}
	return inferValue(raw)
}

func decodeNumber(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return nil, err
	}
	return Number(n), nil
}

// inferValue decodes by JSON shape when the field type does not decide it.
func inferValue(raw json.RawMessage) Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Raw(raw)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if json.Unmarshal(trimmed, &s) == nil {
			return Text(s)
		}
	case 't', 'f':
		var b bool
		if json.Unmarshal(trimmed, &b) == nil {
			return Bool(b)
		}
	case '{':
		var o map[string]any
		if json.Unmarshal(trimmed, &o) == nil {
			return Object(o)
		}
	default:
		if v, err := decodeNumber(trimmed); err == nil {
			return v
		}
	}
	return Raw(slices.Clone(trimmed))
}

// Field is one typed field of a record.
type Field struct {
	Type  string
	Label string
	Value []Value

	// extra keeps attributes this package does not interpret
	// (required, privacyScreen, complexity, ...) for lossless updates.
	extra map[string]json.RawMessage
}

// NewField creates a field of the given type.
func NewField(fieldType, label string, values ...Value) *Field {
	if values == nil {
		values = []Value{}
	}
	return &Field{Type: fieldType, Label: label, Value: values}
}

// UnmarshalJSON decodes value elements according to the field type.
func (f *Field) UnmarshalJSON(data []byte) error {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(data, &attrs); err != nil {
		return err
	}

	var out Field
	if raw, ok := attrs["type"]; ok {
		if err := json.Unmarshal(raw, &out.Type); err != nil {
			return fmt.Errorf("field type: %w", err)
		}
		delete(attrs, "type")
	}
	if raw, ok := attrs["label"]; ok {
		if err := json.Unmarshal(raw, &out.Label); err != nil {
			return fmt.Errorf("field label: %w", err)
		}
		delete(attrs, "label")
	}

	out.Value = []Value{}
	if raw, ok := attrs["value"]; ok {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return fmt.Errorf("field %q value is not a list: %w", out.Type, err)
		}
		k := fieldKinds[out.Type]
		for _, elem := range elems {
			out.Value = append(out.Value, decodeValue(k, elem))
		}
		delete(attrs, "value")
	}

	if len(attrs) > 0 {
		out.extra = attrs
	}
	*f = out
	return nil
}

// MarshalJSON encodes the field with its preserved attributes.
func (f *Field) MarshalJSON() ([]byte, error) {
	attrs := make(map[string]any, len(f.extra)+3)
	for k, v := range f.extra {
		attrs[k] = v
	}
	attrs["type"] = f.Type
	if f.Label != "" {
		attrs["label"] = f.Label
	}
	values := f.Value
	if values == nil {
		values = []Value{}
	}
	attrs["value"] = values
	return json.Marshal(attrs)
}

// Matches reports whether key equals the field's type or label.
func (f *Field) Matches(key string) bool {
	return f.Type == key || (f.Label != "" && f.Label == key)
}

// Strings renders every value element as text.
func (f *Field) Strings() []string {
	out := make([]string, len(f.Value))
	for i, v := range f.Value {
		out[i] = v.String()
	}
	return out
}

// ValueAt returns value element idx.
func (f *Field) ValueAt(idx int) (Value, error) {
	if idx < 0 || idx >= len(f.Value) {
		return nil, fmt.Errorf("%w: field %q has %d value(s), index %d", ErrIndexOutOfBounds, f.Type, len(f.Value), idx)
	}
	return f.Value[idx], nil
}

// StringAt renders value element idx as text.
func (f *Field) StringAt(idx int) (string, error) {
	v, err := f.ValueAt(idx)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// PropertyAt returns property name of value element idx.
func (f *Field) PropertyAt(idx int, name string) (string, error) {
	v, err := f.ValueAt(idx)
	if err != nil {
		return "", err
	}
	return Property(v, name, f.Type)
}

// Property extracts a named member from a structured value.
func Property(v Value, name, fieldType string) (string, error) {
	s, ok := v.(Structured)
	if !ok {
		return "", fmt.Errorf("%w: field type %q holds plain values, cannot read %q", ErrUnsupportedProperty, fieldType, name)
	}
	p, ok := s.Property(name)
	if !ok {
		return "", fmt.Errorf("%w: field type %q has no property %q (have %v)", ErrUnsupportedProperty, fieldType, name, s.PropertyNames())
	}
	return p, nil
}
