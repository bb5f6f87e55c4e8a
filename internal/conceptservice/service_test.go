package conceptservice_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcn/conceptdeps/internal/apierr"
	"github.com/upcn/conceptdeps/internal/conceptservice"
	"github.com/upcn/conceptdeps/internal/corpus"
	"github.com/upcn/conceptdeps/internal/depindex"
	"github.com/upcn/conceptdeps/internal/formula"
	"github.com/upcn/conceptdeps/internal/patterns"
)

func newService(t *testing.T, concepts ...corpus.Concept) (*conceptservice.Service, *depindex.Index) {
	t.Helper()
	mem := corpus.NewMemory(concepts...)
	p := formula.New(patterns.New())
	idx := depindex.New(mem, p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, idx.Build(context.Background()))
	return conceptservice.New(mem, p, idx), idx
}

// Invariant 1: forward refs from formula+condition equal detail().dependencias.
func TestDetail_ForwardDependenciesUnionFormulaAndCondition(t *testing.T) {
	svc, _ := newService(t,
		corpus.Concept{Code: "0100", FormulaCode: "1", Description: "salario", Formula: "%CALC0200%", Condition: "%INFO0300%"},
		corpus.Concept{Code: "0200", FormulaCode: "1", Description: "otro"},
		corpus.Concept{Code: "0300", FormulaCode: "1", Description: "tercero"},
	)

	detail, err := svc.Detail(context.Background(), "0100")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0200", "0300"}, detail.ForwardDependencies)
}

func TestDetail_UnknownCodeIsNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Detail(context.Background(), "9999")
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
}

// S5: search boundary behavior.
func TestSearch_MinLengthAndCap(t *testing.T) {
	concepts := make([]corpus.Concept, 0, 25)
	for i := 0; i < 25; i++ {
		concepts = append(concepts, corpus.Concept{Code: "SAL0" + string(rune('A'+i)), Description: "salario"})
	}
	svc, _ := newService(t, concepts...)

	empty, err := svc.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	oneChar, err := svc.Search(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, oneChar)

	hits, err := svc.Search(context.Background(), "sal")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), 20)
	assert.NotEmpty(t, hits)
}

// S2: range listing applies the SC/ST definitive/transitory filter.
func TestRangeListing_FiltersByClassification(t *testing.T) {
	svc, idx := newService(t,
		corpus.Concept{Code: "0060", FormulaCode: "1", Description: "def", Classification: corpus.Definitive},
		corpus.Concept{Code: "0070", FormulaCode: "1", Description: "trans", Classification: corpus.Transitory},
		corpus.Concept{Code: "0080", FormulaCode: "1", Description: "c", Formula: "%SC00500100%"},
	)
	require.NoError(t, idx.Build(context.Background()))

	defOnly, err := svc.RangeListing(context.Background(), "SC", "0050", "0100")
	require.NoError(t, err)
	for _, item := range defOnly.Items {
		assert.Equal(t, corpus.Definitive, item.Classification)
	}

	transOnly, err := svc.RangeListing(context.Background(), "ST", "0050", "0100")
	require.NoError(t, err)
	for _, item := range transOnly.Items {
		assert.Equal(t, corpus.Transitory, item.Classification)
	}

	all, err := svc.RangeListing(context.Background(), "", "0050", "0100")
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)
}

func TestRangeListing_BadRequestOnUnparseableBounds(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.RangeListing(context.Background(), "SC", "abc", "0100")
	require.Error(t, err)
	assert.True(t, apierr.IsBadRequest(err))
}

func TestReverseDependencies_UnknownCodeIsEmptyNotError(t *testing.T) {
	svc, _ := newService(t)
	assert.Empty(t, svc.ReverseDependencies("9999"))
}
