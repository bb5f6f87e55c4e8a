package formula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcn/conceptdeps/internal/formula"
	"github.com/upcn/conceptdeps/internal/patterns"
)

func newParser() *formula.Parser {
	return formula.New(patterns.New())
}

func TestParse_EmptyFormula(t *testing.T) {
	p := newParser()

	for _, in := range []string{"", "   ", "\t\n"} {
		vars := p.Parse(in)
		assert.Empty(t, vars)
		assert.Empty(t, p.ForwardReferences(in))
	}
}

func TestParse_SingleConceptSelf(t *testing.T) {
	p := newParser()

	vars := p.Parse("%CALC0000%")
	require.Len(t, vars, 1)

	v := vars[0]
	assert.Equal(t, patterns.KindSingleConcept, v.Kind)
	assert.Equal(t, formula.SelfCode, v.ReferencedConcept)
	assert.Equal(t, "cálculo (este concepto)", v.DisplayText)

	refs := p.ForwardReferences("%CALC0000%")
	assert.Empty(t, refs, "self references must be excluded from forward deps")
}

func TestParse_UnknownTokenIsSyntheticTerminal(t *testing.T) {
	p := newParser()

	vars := p.Parse("%FOO123%")
	require.Len(t, vars, 1)

	v := vars[0]
	assert.Equal(t, patterns.KindTerminal, v.Kind)
	assert.Equal(t, "FOO123", v.Prefix)
	assert.Equal(t, "FOO123", v.DisplayText)
	assert.Equal(t, "unrecognized", v.PatternDescription)
}

func TestParse_MixedFormulaSpansAndOrder(t *testing.T) {
	p := newParser()
	f := "X %CC01000500%%FOO%"

	vars := p.Parse(f)
	require.Len(t, vars, 2)

	cc := vars[0]
	assert.Equal(t, patterns.KindSingleConcept, cc.Kind)
	assert.Equal(t, "0100", cc.ReferencedConcept)
	assert.Contains(t, cc.DisplayText, "liq. 0 of 5 meses atrás")

	foo := vars[1]
	assert.Equal(t, patterns.KindTerminal, foo.Kind)
	assert.Equal(t, "unrecognized", foo.PatternDescription)

	// Non-overlapping, sorted by spanStart.
	assert.Less(t, cc.SpanStart, foo.SpanStart)
	assert.LessOrEqual(t, cc.SpanEnd, foo.SpanStart)

	// Total span length equals the length of all %...% substrings.
	total := 0
	for _, v := range vars {
		total += v.SpanEnd - v.SpanStart
	}
	assert.Equal(t, len("%CC01000500%")+len("%FOO%"), total)
}

func TestParse_RangeToken(t *testing.T) {
	p := newParser()

	vars := p.Parse("%SC00500100%")
	require.Len(t, vars, 1)

	v := vars[0]
	assert.Equal(t, patterns.KindRange, v.Kind)
	assert.Equal(t, "0050", v.RangeStart)
	assert.Equal(t, "0100", v.RangeEnd)

	ranges := p.Ranges("%SC00500100%")
	require.Len(t, ranges, 1)
	assert.Equal(t, formula.Range{Start: "0050", End: "0100"}, ranges[0])
}

func TestForwardReferences_UnionAcrossTokensDeduped(t *testing.T) {
	p := newParser()

	refs := p.ForwardReferences("%CALC0200%+%CALC0200%")
	assert.Len(t, refs, 1)
	_, ok := refs["0200"]
	assert.True(t, ok)
}

func TestParse_Idempotent(t *testing.T) {
	p := newParser()
	f := "%CALC0100%+%INFO0100%-%FOO%"

	first := p.Parse(f)
	second := p.Parse(f)
	assert.Equal(t, first, second)
}
