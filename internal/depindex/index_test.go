package depindex_test

import (
	"context"
	"log/slog"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcn/conceptdeps/internal/corpus"
	"github.com/upcn/conceptdeps/internal/depindex"
	"github.com/upcn/conceptdeps/internal/formula"
	"github.com/upcn/conceptdeps/internal/patterns"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newIndex(t *testing.T, concepts ...corpus.Concept) *depindex.Index {
	t.Helper()
	mem := corpus.NewMemory(concepts...)
	p := formula.New(patterns.New())
	return depindex.New(mem, p, discardLogger())
}

// S1: two concepts referencing the same single concept.
func TestBuild_S1_DirectDependents(t *testing.T) {
	idx := newIndex(t,
		corpus.Concept{Code: "A", FormulaCode: "1", Formula: "%CALC0100%+%INFO0100%"},
		corpus.Concept{Code: "B", FormulaCode: "1", Formula: "%CALC0100%"},
	)
	require.NoError(t, idx.Build(context.Background()))

	assert.Equal(t, []string{"A", "B"}, idx.Dependents("0100"))
}

// S2: a range reference covers concepts inside its bounds.
func TestBuild_S2_RangeDependents(t *testing.T) {
	idx := newIndex(t,
		corpus.Concept{Code: "C", FormulaCode: "1", Formula: "%SC00500100%"},
	)
	require.NoError(t, idx.Build(context.Background()))

	assert.Contains(t, idx.DependentsOfRange("0050", "0100"), "C")
	assert.Contains(t, idx.Dependents("0075"), "C")
	assert.NotContains(t, idx.Dependents("0101"), "C")
}

// S4: formula and condition both reference the same concept once; dedup.
func TestBuild_S4_FormulaAndConditionDedup(t *testing.T) {
	idx := newIndex(t,
		corpus.Concept{Code: "D", FormulaCode: "1", Formula: "%CALC0200%", Condition: "%CALC0200%"},
	)
	require.NoError(t, idx.Build(context.Background()))

	deps := idx.Dependents("0200")
	require.Len(t, deps, 1)
	assert.Equal(t, "D", deps[0])
}

// S6: rebuilding against an empty corpus installs an empty snapshot, not
// the previous one.
func TestBuild_S6_EmptyCorpusReplacesSnapshot(t *testing.T) {
	src := &swappableCorpus{Corpus: corpus.NewMemory(corpus.Concept{Code: "A", FormulaCode: "1", Formula: "%CALC0100%"})}
	p := formula.New(patterns.New())
	idx := depindex.New(src, p, discardLogger())
	require.NoError(t, idx.Build(context.Background()))
	require.NotEmpty(t, idx.Dependents("0100"))

	src.Corpus = corpus.NewMemory()
	require.NoError(t, idx.Build(context.Background()))

	stats := idx.Stats()
	assert.Equal(t, 0, stats.DirectEntries)
	assert.Empty(t, idx.Dependents("0100"))
}

// swappableCorpus lets a test replace the corpus behind an existing index.
type swappableCorpus struct{ corpus.Corpus }

func TestDependents_NotReadyReturnsEmpty(t *testing.T) {
	idx := newIndex(t)
	assert.False(t, idx.Ready())
	assert.Empty(t, idx.Dependents("0100"))
}

func TestBuild_Idempotent(t *testing.T) {
	idx := newIndex(t,
		corpus.Concept{Code: "A", FormulaCode: "1", Formula: "%CALC0100%"},
	)
	require.NoError(t, idx.Build(context.Background()))
	first := idx.Stats()
	require.NoError(t, idx.Build(context.Background()))
	second := idx.Stats()
	assert.Equal(t, first, second)
}
