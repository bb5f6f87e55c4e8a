package patterns_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcn/conceptdeps/internal/patterns"
)

func TestMatch_RangeBeatsUnrelatedSingleConcept(t *testing.T) {
	r := patterns.New()

	entry, groups, ok := r.Match("SC00500100")
	require.True(t, ok)
	assert.Equal(t, patterns.KindRange, entry.Kind)
	assert.Equal(t, "0050", groups["nnnn"])
	assert.Equal(t, "0100", groups["xxxx"])
}

func TestMatch_SingleConceptSelf(t *testing.T) {
	r := patterns.New()

	entry, groups, ok := r.Match("CALC0000")
	require.True(t, ok)
	assert.Equal(t, patterns.KindSingleConcept, entry.Kind)
	assert.Equal(t, "0000", groups["nnnn"])
	assert.NotEmpty(t, entry.SelfTemplate)
}

func TestMatch_TerminalLiteral(t *testing.T) {
	r := patterns.New()

	entry, _, ok := r.Match("SEXO")
	require.True(t, ok)
	assert.Equal(t, patterns.KindTerminal, entry.Kind)
}

func TestMatch_TerminalParameterized(t *testing.T) {
	r := patterns.New()

	entry, _, ok := r.Match("GCIA0042")
	require.True(t, ok)
	assert.Equal(t, patterns.KindTerminal, entry.Kind)
	assert.Equal(t, "GCIA", entry.Prefix)
}

func TestMatch_NoMatch(t *testing.T) {
	r := patterns.New()

	_, _, ok := r.Match("FOO123")
	assert.False(t, ok)
}

func TestMatch_AnchoredNotSubstring(t *testing.T) {
	r := patterns.New()

	// "XCALC0100Y" must not match CALC's pattern even though it contains it.
	_, _, ok := r.Match("XCALC0100Y")
	assert.False(t, ok)
}
