package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/plex"
)

const sampleYAML = `mediaType: show
rules:
  - 0:
      - firstValue: Plex.sw_viewedEpisodes
        action: EQUALS
        customValue:
          type: number
          value: "0"
      - operator: AND
        firstValue: Sonarr.ended
        action: EQUALS
        customValue:
          type: bool
          value: "true"
  - 1:
      - operator: OR
        firstValue: Plex.labels
        action: CONTAINS
        customValue:
          type: text
          value: leaving
`

func TestDecodeYAML(t *testing.T) {
	dt, rules, err := DecodeYAML([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, plex.TypeShow, dt)
	require.Len(t, rules, 3)

	assert.Nil(t, rules[0].Operator)
	assert.Equal(t, Location{AppPlex, PlexViewedEpisodes}, rules[0].FirstVal)
	assert.Equal(t, And, *rules[1].Operator)
	assert.Equal(t, Location{AppSonarr, SonarrEnded}, rules[1].FirstVal)
	assert.Equal(t, 1, rules[2].Section)
	assert.Equal(t, OpContains, rules[2].Action)

	g := &RuleGroup{Name: "x", LibraryID: "2", DataType: dt, UseRules: true, Rules: rules}
	assert.NoError(t, Validate(g))
}

func TestEncodeDecodeYAMLPreservesRules(t *testing.T) {
	_, rules, err := DecodeYAML([]byte(sampleYAML))
	require.NoError(t, err)

	out, err := EncodeYAML(plex.TypeShow, rules)
	require.NoError(t, err)

	dt, again, err := DecodeYAML(out)
	require.NoError(t, err)
	assert.Equal(t, plex.TypeShow, dt)
	assert.Equal(t, rules, again)
}

func TestDecodeYAML_UnknownProperty(t *testing.T) {
	_, _, err := DecodeYAML([]byte("mediaType: movie\nrules:\n  - 0:\n      - firstValue: Plex.nope\n        action: EQUALS\n"))
	assert.ErrorIs(t, err, ErrValidation)
}
