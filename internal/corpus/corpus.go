package corpus

import (
	"context"
	"fmt"

	"github.com/upcn/conceptdeps/internal/apierr"
)

// Corpus is the read-only contract over the external concept store
// (ConceptoTipoLiqFormula). All methods are stateless; concurrency and
// pooling are the driver's responsibility.
type Corpus interface {
	// ListAll returns every concept row. Used by DependencyIndex.build and
	// by ConceptService.list/search.
	ListAll(ctx context.Context) ([]Concept, error)

	// ByCode returns the concept for code, picking the lowest FormulaCode
	// when a code has more than one formula. Returns a NotFound error
	// (apierr.IsNotFound) if code doesn't exist.
	ByCode(ctx context.Context, code string) (Concept, error)

	// ByRange returns every concept whose code lies in [lo, hi] inclusive,
	// sorted by code.
	ByRange(ctx context.Context, lo, hi string) ([]Concept, error)

	// LiquidationTypes returns the distinct TipoLiquidacion codes observed
	// across the corpus, sorted.
	LiquidationTypes(ctx context.Context) ([]string, error)
}

var errConceptNotFound = fmt.Errorf("concept not found")

// NotFoundError wraps the not-found sentinel for a given code.
func NotFoundError(code string) error {
	return apierr.NotFound(fmt.Errorf("concept %q: %w", code, errConceptNotFound))
}
