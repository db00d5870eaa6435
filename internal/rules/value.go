package rules

import (
	"strconv"
	"strings"
	"time"
)

// Kind is the runtime kind of a Value.
type Kind uint8

const (
	// KindUnknown means the lookup failed. Rules skip unknown operands.
	KindUnknown Kind = iota
	// KindNull means the source confirmed there is no value.
	KindNull
	KindNumber
	KindDate
	KindText
	KindBool
	KindList
)

var kindNames = [...]string{"unknown", "null", "number", "date", "text", "bool", "list"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is an operand resolved for one item.
type Value struct {
	kind Kind
	num  float64
	date time.Time
	text string
	b    bool
	list []string
}

// Unknown returns the "lookup failed" value.
func Unknown() Value { return Value{} }

// Null returns the "confirmed absent" value.
func Null() Value { return Value{kind: KindNull} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Int returns a numeric value from an int.
func Int(n int) Value { return Number(float64(n)) }

// Date returns a date value.
func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }

// DateOrNull returns Null for the zero time.
func DateOrNull(t time.Time) Value {
	if t.IsZero() {
		return Null()
	}
	return Date(t)
}

// DatePtr returns Null for a nil or zero time.
func DatePtr(t *time.Time) Value {
	if t == nil {
		return Null()
	}
	return DateOrNull(*t)
}

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a text list value. A nil slice is an empty list.
func List(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{kind: KindList, list: items}
}

// Kind returns the runtime kind.
func (v Value) Kind() Kind { return v.kind }

// IsUnknown reports whether the lookup failed.
func (v Value) IsUnknown() bool { return v.kind == KindUnknown }

// IsNull reports whether the value is confirmed absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Num returns the numeric payload.
func (v Value) Num() float64 { return v.num }

// Time returns the date payload.
func (v Value) Time() time.Time { return v.date }

// Str returns the text payload.
func (v Value) Str() string { return v.text }

// Truth returns the boolean payload.
func (v Value) Truth() bool { return v.b }

// Items returns the list payload. Scalars are returned as a one-element
// list so list operators can treat both alike.
func (v Value) Items() []string {
	switch v.kind {
	case KindList:
		return v.list
	case KindUnknown, KindNull:
		return nil
	default:
		return []string{v.String()}
	}
}

// Any returns the payload as a plain Go value for display and JSON output.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindDate:
		return v.date
	case KindText:
		return v.text
	case KindBool:
		return v.b
	case KindList:
		return v.list
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		return v.date.Format(time.RFC3339)
	case KindText:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		return "[" + strings.Join(v.list, ", ") + "]"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}
