package rules

import (
	"errors"
	"fmt"

	"github.com/curatarr/curatarr/internal/plex"
)

// ErrValidation is wrapped by every rule group validation failure.
var ErrValidation = errors.New("invalid rule group")

// ValidationError points at the offending rule. Index is -1 for errors in
// the group itself.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return e.Reason
	}
	return fmt.Sprintf("rule %d: %s", e.Index+1, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(i int, format string, args ...any) error {
	return &ValidationError{Index: i, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a rule group before it is saved.
func Validate(g *RuleGroup) error {
	if g.Name == "" {
		return invalid(-1, "name is required")
	}
	if g.LibraryID == "" {
		return invalid(-1, "library is required")
	}
	if g.DataType.TypeNumber() == 0 {
		return invalid(-1, "unknown data type %q", g.DataType)
	}
	if !g.UseRules {
		return nil
	}
	if len(g.Rules) == 0 {
		return invalid(-1, "at least one rule is required")
	}

	for i, r := range g.Rules {
		if err := validateRule(i, r, g.DataType); err != nil {
			return err
		}
		if i > 0 && r.Section < g.Rules[i-1].Section {
			return invalid(i, "sections must not decrease")
		}
	}
	return nil
}

func validateRule(i int, r Rule, dt plex.MediaType) error {
	if i == 0 && r.Operator != nil {
		return invalid(i, "the first rule cannot have an AND/OR operator")
	}
	if i > 0 && r.Operator == nil {
		return invalid(i, "an AND/OR operator is required")
	}

	first, ok := LookupProperty(r.FirstVal)
	if !ok {
		return invalid(i, "unknown property %v", r.FirstVal)
	}
	if !first.AllowsDataType(dt) {
		return invalid(i, "%s is not available for %s items", first.Key(), dt)
	}
	if !first.Supports(r.Action) {
		return invalid(i, "%s does not support %s", first.Key(), r.Action)
	}

	if r.Action.Unary() {
		return nil
	}
	switch {
	case r.LastVal != nil && r.CustomVal != nil:
		return invalid(i, "second operand must be a property or a custom value, not both")
	case r.LastVal != nil:
		second, ok := LookupProperty(*r.LastVal)
		if !ok {
			return invalid(i, "unknown property %v", *r.LastVal)
		}
		if !second.AllowsDataType(dt) {
			return invalid(i, "%s is not available for %s items", second.Key(), dt)
		}
		if second.Type != first.Type {
			return invalid(i, "%s (%s) cannot be compared with %s (%s)", first.Key(), first.Type, second.Key(), second.Type)
		}
	case r.CustomVal != nil:
		if !customTypeAllowed(first.Type, r.CustomVal.Type, r.Action) {
			return invalid(i, "a %s value cannot be compared with %s (%s)", r.CustomVal.Type, first.Key(), first.Type)
		}
	default:
		return invalid(i, "a second operand is required for %s", r.Action)
	}
	return nil
}

// customTypeAllowed lists the custom value types accepted per property
// type. Dates accept a number of seconds relative to now.
func customTypeAllowed(prop, custom ValueType, op Operator) bool {
	if op.isCount() {
		return custom == TypeNumber
	}
	if prop == custom {
		return true
	}
	switch prop {
	case TypeDate:
		return custom == TypeNumber
	case TypeTextList:
		return custom == TypeText
	case TypeText:
		return custom == TypeTextList
	}
	return false
}
