// Package rules holds the rule model, the property catalog and the
// comparator that evaluates rule groups against library items.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/curatarr/curatarr/internal/plex"
)

// Application identifies the service a property is read from.
type Application int

const (
	AppPlex Application = iota
	AppRadarr
	AppSonarr
	AppOverseerr
	AppTautulli
	AppJellyseerr
)

var applicationNames = map[Application]string{
	AppPlex:       "Plex",
	AppRadarr:     "Radarr",
	AppSonarr:     "Sonarr",
	AppOverseerr:  "Overseerr",
	AppTautulli:   "Tautulli",
	AppJellyseerr: "Jellyseerr",
}

func (a Application) String() string {
	if n, ok := applicationNames[a]; ok {
		return n
	}
	return "Application(" + strconv.Itoa(int(a)) + ")"
}

// ParseApplication is the inverse of Application.String, case-insensitive.
func ParseApplication(s string) (Application, error) {
	for a, n := range applicationNames {
		if strings.EqualFold(n, s) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown application %q", s)
}

// Operator is a comparison between two operands.
type Operator int

const (
	OpBigger Operator = iota
	OpSmaller
	OpEquals
	OpNotEquals
	OpContains
	OpBefore
	OpAfter
	OpInLast
	OpInNext
	OpNotContains
	OpContainsPartial
	OpNotContainsPartial
	OpContainsAll
	OpNotContainsAll
	OpCountEquals
	OpCountNotEquals
	OpCountBigger
	OpCountSmaller
	OpIsNull
	OpIsNotNull
)

var operatorNames = []string{
	OpBigger:             "BIGGER",
	OpSmaller:            "SMALLER",
	OpEquals:             "EQUALS",
	OpNotEquals:          "NOT_EQUALS",
	OpContains:           "CONTAINS",
	OpBefore:             "BEFORE",
	OpAfter:              "AFTER",
	OpInLast:             "IN_LAST",
	OpInNext:             "IN_NEXT",
	OpNotContains:        "NOT_CONTAINS",
	OpContainsPartial:    "CONTAINS_PARTIAL",
	OpNotContainsPartial: "NOT_CONTAINS_PARTIAL",
	OpContainsAll:        "CONTAINS_ALL",
	OpNotContainsAll:     "NOT_CONTAINS_ALL",
	OpCountEquals:        "COUNT_EQUALS",
	OpCountNotEquals:     "COUNT_NOT_EQUALS",
	OpCountBigger:        "COUNT_BIGGER",
	OpCountSmaller:       "COUNT_SMALLER",
	OpIsNull:             "IS_NULL",
	OpIsNotNull:          "IS_NOT_NULL",
}

func (o Operator) String() string {
	if o >= 0 && int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "Operator(" + strconv.Itoa(int(o)) + ")"
}

// ParseOperator is the inverse of Operator.String.
func ParseOperator(s string) (Operator, error) {
	for i, n := range operatorNames {
		if strings.EqualFold(n, s) {
			return Operator(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// Unary reports whether the operator ignores the second operand.
func (o Operator) Unary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Combinator joins a rule to the ones before it.
type Combinator int

const (
	And Combinator = iota
	Or
)

func (c Combinator) String() string {
	if c == And {
		return "AND"
	}
	return "OR"
}

// ValueType is the declared type of a property or custom value.
type ValueType int

const (
	TypeNumber ValueType = iota
	TypeDate
	TypeText
	TypeBool
	TypeTextList
)

var valueTypeNames = []string{"number", "date", "text", "bool", "text_list"}

func (t ValueType) String() string {
	if t >= 0 && int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return "ValueType(" + strconv.Itoa(int(t)) + ")"
}

// ParseValueType is the inverse of ValueType.String.
func ParseValueType(s string) (ValueType, error) {
	for i, n := range valueTypeNames {
		if strings.EqualFold(n, s) {
			return ValueType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// Location addresses a property of an application. It is encoded as a
// two-element array [application, property].
type Location struct {
	App      Application
	Property int
}

// MarshalJSON encodes the location as [app, property].
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{int(l.App), l.Property})
}

// UnmarshalJSON accepts [app, property] with numbers or numeric strings.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("location: want 2 elements, got %d", len(raw))
	}
	app, err := toInt(raw[0])
	if err != nil {
		return fmt.Errorf("location application: %w", err)
	}
	prop, err := toInt(raw[1])
	if err != nil {
		return fmt.Errorf("location property: %w", err)
	}
	l.App = Application(app)
	l.Property = prop
	return nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

// CustomValue is a literal second operand.
type CustomValue struct {
	Type  ValueType `json:"ruleTypeId"`
	Value string    `json:"value"`
}

// Rule compares a property against another property or a literal.
type Rule struct {
	// Operator is nil only for the first rule of a group.
	Operator  *Combinator  `json:"operator"`
	Action    Operator     `json:"action"`
	FirstVal  Location     `json:"firstVal"`
	LastVal   *Location    `json:"lastVal,omitempty"`
	CustomVal *CustomValue `json:"customVal,omitempty"`
	Section   int          `json:"section"`
}

// combinator returns the rule's combinator, treating nil as OR.
func (r Rule) combinator() Combinator {
	if r.Operator == nil {
		return Or
	}
	return *r.Operator
}

// RuleGroup is a named, sectioned list of rules that feeds one collection.
type RuleGroup struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	LibraryID    string         `json:"libraryId"`
	DataType     plex.MediaType `json:"dataType"`
	IsActive     bool           `json:"isActive"`
	UseRules     bool           `json:"useRules"`
	CollectionID int64          `json:"collectionId"`
	Rules        []Rule         `json:"rules"`
}

// Ptr returns a pointer to c, for building rules in code.
func Ptr(c Combinator) *Combinator {
	return &c
}
