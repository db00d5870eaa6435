package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestCompare_Lists(t *testing.T) {
	tests := []struct {
		name   string
		first  Value
		second Value
		op     Operator
		want   bool
	}{
		{"equals ignores order and case", List([]string{"a", "b"}), List([]string{"B", "A"}), OpEquals, true},
		{"equals needs same size", List([]string{"a", "b"}), List([]string{"a"}), OpEquals, false},
		{"not equals", List([]string{"a", "b"}), List([]string{"a"}), OpNotEquals, true},
		{"contains any overlap", List([]string{"alice", "bob"}), List([]string{"carol", "BOB"}), OpContains, true},
		{"contains scalar", List([]string{"alice", "bob"}), Text("alice"), OpContains, true},
		{"contains no overlap", List([]string{"alice"}), List([]string{"bob"}), OpContains, false},
		{"not contains", List([]string{"alice"}), List([]string{"bob"}), OpNotContains, true},
		{"contains all superset", List([]string{"a", "b", "c"}), List([]string{"a", "b"}), OpContainsAll, true},
		{"contains all subset", List([]string{"a", "b"}), List([]string{"a", "b", "c"}), OpContainsAll, false},
		{"not contains all", List([]string{"a", "b"}), List([]string{"a", "b", "c"}), OpNotContainsAll, true},
		{"contains partial", List([]string{"Science Fiction"}), Text("fiction"), OpContainsPartial, true},
		{"not contains partial", List([]string{"Drama"}), Text("fiction"), OpNotContainsPartial, true},
		{"count equals", List([]string{"a", "b"}), Number(2), OpCountEquals, true},
		{"count bigger", List([]string{"a", "b"}), Number(1), OpCountBigger, true},
		{"count smaller", List([]string{"a", "b"}), Number(2), OpCountSmaller, false},
		{"count not equals", List(nil), Number(1), OpCountNotEquals, true},
		{"count of null is zero", Null(), Number(0), OpCountEquals, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.first, tt.second, tt.op, now))
		})
	}
}

func TestCompare_Scalars(t *testing.T) {
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	tests := []struct {
		name   string
		first  Value
		second Value
		op     Operator
		want   bool
	}{
		{"bigger", Number(5), Number(3), OpBigger, true},
		{"smaller", Number(5), Number(3), OpSmaller, false},
		{"bigger text is false", Text("5"), Number(3), OpBigger, false},
		{"equals number", Number(2), Number(2), OpEquals, true},
		{"equals text case-insensitive", Text("Ended"), Text("ended"), OpEquals, true},
		{"equals dates by day", Date(now), Date(now.Add(-time.Hour)), OpEquals, true},
		{"equals bool", Bool(true), Bool(false), OpEquals, false},
		{"equals null null", Null(), Null(), OpEquals, true},
		{"equals null value", Null(), Number(0), OpEquals, false},
		{"not equals null value", Null(), Number(0), OpNotEquals, true},
		{"text contains substring", Text("The Office (US)"), Text("office"), OpContains, true},
		{"before", Date(yesterday), Date(now), OpBefore, true},
		{"before null is false", Null(), Date(now), OpBefore, false},
		{"after", Date(tomorrow), Date(now), OpAfter, true},
		{"in last", Date(yesterday), Date(now.Add(-48 * time.Hour)), OpInLast, true},
		{"in last excludes future", Date(tomorrow), Date(now.Add(-48 * time.Hour)), OpInLast, false},
		{"in next", Date(tomorrow), Date(now.Add(48 * time.Hour)), OpInNext, true},
		{"in next excludes past", Date(yesterday), Date(now.Add(48 * time.Hour)), OpInNext, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.first, tt.second, tt.op, now))
		})
	}
}

func TestCompare_NullChecks(t *testing.T) {
	assert.True(t, Compare(Null(), Unknown(), OpIsNull, now))
	assert.False(t, Compare(Unknown(), Unknown(), OpIsNull, now))
	assert.False(t, Compare(Text(""), Unknown(), OpIsNull, now))
	assert.False(t, Compare(Number(0), Unknown(), OpIsNull, now))
	assert.False(t, Compare(Bool(false), Unknown(), OpIsNull, now))
	assert.True(t, Compare(Number(0), Unknown(), OpIsNotNull, now))
	assert.False(t, Compare(Null(), Unknown(), OpIsNotNull, now))
}

func TestCoerce(t *testing.T) {
	month := CustomValue{Type: TypeDate, Value: "2592000"}

	v := Coerce(month, Date(now), OpInLast, now)
	assert.Equal(t, now.Add(-30*24*time.Hour), v.Time())

	v = Coerce(month, Date(now), OpBefore, now)
	assert.Equal(t, now.Add(-30*24*time.Hour), v.Time())

	v = Coerce(month, Date(now), OpInNext, now)
	assert.Equal(t, now.Add(30*24*time.Hour), v.Time())

	v = Coerce(CustomValue{Type: TypeDate, Value: "2024-01-02"}, Date(now), OpAfter, now)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), v.Time())

	v = Coerce(CustomValue{Type: TypeText, Value: `["a","b"]`}, List([]string{"a"}), OpContains, now)
	assert.Equal(t, KindList, v.Kind())
	assert.Equal(t, []string{"a", "b"}, v.Items())

	v = Coerce(CustomValue{Type: TypeText, Value: "[not json"}, Text("x"), OpContains, now)
	assert.Equal(t, KindText, v.Kind())

	v = Coerce(CustomValue{Type: TypeText, Value: "12"}, Number(1), OpBigger, now)
	assert.Equal(t, KindNumber, v.Kind(), "runtime kind of the first operand wins")

	v = Coerce(CustomValue{Type: TypeNumber, Value: "abc"}, Number(1), OpBigger, now)
	assert.True(t, v.IsUnknown())

	v = Coerce(CustomValue{Type: TypeBool, Value: "true"}, Null(), OpEquals, now)
	assert.Equal(t, KindBool, v.Kind(), "null first operand falls back to the declared type")

	v = Coerce(CustomValue{Type: TypeText, Value: "3"}, List(nil), OpCountBigger, now)
	assert.Equal(t, Number(3), v)
}
