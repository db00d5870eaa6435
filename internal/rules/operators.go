package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// dateLayouts are tried in order when a custom value holds a date.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func (o Operator) isCount() bool {
	switch o {
	case OpCountEquals, OpCountNotEquals, OpCountBigger, OpCountSmaller:
		return true
	}
	return false
}

// Compare applies op to two resolved operands. Callers must skip unknown
// operands before calling; an unknown operand compares false.
func Compare(first, second Value, op Operator, now time.Time) bool {
	if first.IsUnknown() {
		return false
	}
	switch op {
	case OpIsNull:
		return first.IsNull()
	case OpIsNotNull:
		return !first.IsNull()
	}
	if second.IsUnknown() {
		return false
	}

	switch op {
	case OpBigger:
		return order(first, second) > 0
	case OpSmaller:
		return order(first, second) < 0
	case OpEquals:
		return equals(first, second)
	case OpNotEquals:
		return !equals(first, second)
	case OpContains:
		return contains(first, second)
	case OpNotContains:
		return !contains(first, second)
	case OpContainsPartial:
		return containsPartial(first, second)
	case OpNotContainsPartial:
		return !containsPartial(first, second)
	case OpContainsAll:
		return containsAll(first, second)
	case OpNotContainsAll:
		return !containsAll(first, second)
	case OpBefore:
		return bothDates(first, second) && first.date.Before(second.date)
	case OpAfter:
		return bothDates(first, second) && first.date.After(second.date)
	case OpInLast:
		return bothDates(first, second) && !first.date.Before(second.date) && !first.date.After(now)
	case OpInNext:
		return bothDates(first, second) && !first.date.After(second.date) && !first.date.Before(now)
	case OpCountEquals, OpCountNotEquals, OpCountBigger, OpCountSmaller:
		return compareCount(first, second, op)
	}
	return false
}

func bothDates(a, b Value) bool {
	return a.kind == KindDate && b.kind == KindDate
}

// order returns -1, 0 or 1 for comparable numbers or dates and 0 otherwise.
func order(a, b Value) int {
	switch {
	case a.kind == KindNumber && b.kind == KindNumber:
		switch {
		case a.num > b.num:
			return 1
		case a.num < b.num:
			return -1
		}
	case bothDates(a, b):
		return a.date.Compare(b.date)
	}
	return 0
}

func equals(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.kind == KindList || b.kind == KindList {
		return sameSet(a.Items(), b.Items())
	}
	switch {
	case a.kind == KindNumber && b.kind == KindNumber:
		return a.num == b.num
	case bothDates(a, b):
		ay, am, ad := a.date.UTC().Date()
		by, bm, bd := b.date.UTC().Date()
		return ay == by && am == bm && ad == bd
	case a.kind == KindBool && b.kind == KindBool:
		return a.b == b.b
	}
	return strings.EqualFold(a.String(), b.String())
}

// sameSet reports case-insensitive set equality of equally sized lists.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range b {
		if !member(a, x) {
			return false
		}
	}
	for _, x := range a {
		if !member(b, x) {
			return false
		}
	}
	return true
}

func member(list []string, x string) bool {
	for _, y := range list {
		if strings.EqualFold(x, y) {
			return true
		}
	}
	return false
}

func substr(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// contains is list membership for list operands and substring search for
// scalar text.
func contains(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}
	for _, x := range b.Items() {
		if a.kind == KindList {
			if member(a.list, x) {
				return true
			}
		} else if substr(a.String(), x) {
			return true
		}
	}
	return false
}

func containsPartial(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}
	for _, x := range b.Items() {
		for _, y := range a.Items() {
			if substr(y, x) {
				return true
			}
		}
	}
	return false
}

// containsAll reports whether a is a superset of b.
func containsAll(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}
	for _, x := range b.Items() {
		if a.kind == KindList {
			if !member(a.list, x) {
				return false
			}
		} else if !substr(a.String(), x) {
			return false
		}
	}
	return true
}

func compareCount(a, b Value, op Operator) bool {
	var want float64
	switch b.kind {
	case KindNumber:
		want = b.num
	case KindText:
		n, err := strconv.ParseFloat(strings.TrimSpace(b.text), 64)
		if err != nil {
			return false
		}
		want = n
	default:
		return false
	}
	n := float64(len(a.Items()))

	switch op {
	case OpCountEquals:
		return n == want
	case OpCountNotEquals:
		return n != want
	case OpCountBigger:
		return n > want
	case OpCountSmaller:
		return n < want
	}
	return false
}

// Coerce converts a custom value to the runtime kind of the first operand.
// When the first operand is null the declared type is used. A value that
// cannot be converted is Unknown.
func Coerce(cv CustomValue, first Value, op Operator, now time.Time) Value {
	raw := strings.TrimSpace(cv.Value)
	if op.isCount() {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Unknown()
		}
		return Number(n)
	}

	target := first.Kind()
	if target == KindNull || target == KindUnknown {
		target = kindOf(cv.Type)
	}

	switch target {
	case KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Unknown()
		}
		return Number(n)
	case KindDate:
		return coerceDate(raw, op, now)
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Unknown()
		}
		return Bool(b)
	default:
		if strings.HasPrefix(raw, "[") {
			if list, err := parseList(raw); err == nil {
				return List(list)
			}
		}
		return Text(cv.Value)
	}
}

func kindOf(t ValueType) Kind {
	switch t {
	case TypeNumber:
		return KindNumber
	case TypeDate:
		return KindDate
	case TypeBool:
		return KindBool
	case TypeTextList:
		return KindList
	default:
		return KindText
	}
}

// coerceDate treats a number as an offset in seconds from now, subtracted
// for IN_LAST and BEFORE and added otherwise, and anything else as a date.
func coerceDate(raw string, op Operator, now time.Time) Value {
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		offset := time.Duration(secs * float64(time.Second))
		if op == OpInLast || op == OpBefore {
			return Date(now.Add(-offset))
		}
		return Date(now.Add(offset))
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Date(t)
		}
	}
	return Unknown()
}

func parseList(raw string) ([]string, error) {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(v))
		default:
			return nil, fmt.Errorf("unsupported list element %T", it)
		}
	}
	return out, nil
}
