package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/plex"
)

func validGroup() *RuleGroup {
	return &RuleGroup{
		Name:      "Unwatched movies",
		LibraryID: "1",
		DataType:  plex.TypeMovie,
		UseRules:  true,
		Rules: []Rule{
			{Action: OpEquals, FirstVal: Location{AppPlex, PlexViewCount}, CustomVal: custom(TypeNumber, "0")},
			{Operator: Ptr(And), Action: OpBefore, FirstVal: Location{AppPlex, PlexAddDate}, CustomVal: custom(TypeNumber, "7776000")},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(validGroup()))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *RuleGroup)
		index  int
	}{
		{"missing name", func(g *RuleGroup) { g.Name = "" }, -1},
		{"bad data type", func(g *RuleGroup) { g.DataType = "album" }, -1},
		{"no rules", func(g *RuleGroup) { g.Rules = nil }, -1},
		{"first rule with operator", func(g *RuleGroup) { g.Rules[0].Operator = Ptr(Or) }, 0},
		{"later rule without operator", func(g *RuleGroup) { g.Rules[1].Operator = nil }, 1},
		{"unknown property", func(g *RuleGroup) { g.Rules[0].FirstVal = Location{AppPlex, 999} }, 0},
		{"unsupported operator", func(g *RuleGroup) { g.Rules[0].Action = OpContainsAll }, 0},
		{"wrong data type", func(g *RuleGroup) { g.Rules[0].FirstVal = Location{AppSonarr, SonarrEnded} }, 0},
		{"custom type mismatch", func(g *RuleGroup) { g.Rules[0].CustomVal = custom(TypeBool, "true") }, 0},
		{"property type mismatch", func(g *RuleGroup) {
			g.Rules[0].CustomVal = nil
			g.Rules[0].LastVal = &Location{AppPlex, PlexAddDate}
		}, 0},
		{"missing second operand", func(g *RuleGroup) { g.Rules[0].CustomVal = nil }, 0},
		{"decreasing section", func(g *RuleGroup) { g.Rules[0].Section = 2 }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGroup()
			tt.mutate(g)
			err := Validate(g)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.index, ve.Index)
		})
	}
}

func TestValidate_UnaryAndManualGroups(t *testing.T) {
	g := validGroup()
	g.Rules[1] = Rule{Operator: Ptr(Or), Action: OpIsNull, FirstVal: Location{AppPlex, PlexLastViewedAt}}
	assert.NoError(t, Validate(g))

	manual := validGroup()
	manual.UseRules = false
	manual.Rules = nil
	assert.NoError(t, Validate(manual))
}
