// Package conceptservice composes the parser, the dependency index, and the
// corpus into the payloads the HTTP surface serves (spec §4.4).
package conceptservice

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/upcn/conceptdeps/internal/apierr"
	"github.com/upcn/conceptdeps/internal/colors"
	"github.com/upcn/conceptdeps/internal/corpus"
	"github.com/upcn/conceptdeps/internal/depindex"
	"github.com/upcn/conceptdeps/internal/formula"
)

const searchResultCap = 20
const searchMinLen = 2

// Summary is a lightweight concept projection used for listing, search
// results, and range listings — no formula parsing involved.
type Summary struct {
	Code           string                `json:"code"`
	Description    string                `json:"description"`
	Classification corpus.Classification `json:"classification"`
	Background     string                `json:"background"`
	Border         string                `json:"border"`
}

// Detail is the full per-concept payload: the concept plus its parsed
// variables, forward dependencies, and reverse dependencies.
type Detail struct {
	Summary
	Formula             string                   `json:"formula"`
	Condition           string                   `json:"condition"`
	FormulaVariables    []formula.ParsedVariable `json:"formulaVariables"`
	ConditionVariables  []formula.ParsedVariable `json:"conditionVariables"`
	ForwardDependencies []string                 `json:"dependencias"`
	ReverseDependencies []string                 `json:"dependientes"`
}

// RangeListing is the filtered, colored answer to a range query.
type RangeListing struct {
	Description string    `json:"description"`
	Items       []Summary `json:"items"`
}

// Service composes the parser, index, and corpus. All methods except
// RefreshIndex are read-only.
type Service struct {
	corpus corpus.Corpus
	parser *formula.Parser
	index  *depindex.Index
}

// New builds a Service over the given collaborators.
func New(c corpus.Corpus, p *formula.Parser, idx *depindex.Index) *Service {
	return &Service{corpus: c, parser: p, index: idx}
}

// List returns every concept as a summary, for search/autocomplete. It does
// not parse formulas.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	concepts, err := s.corpus.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, summaryOf(c))
	}
	return out, nil
}

// Search does a case-insensitive substring match on code or description,
// capped at 20 hits. Queries shorter than 2 characters return an empty
// result rather than an error (spec §7: BadRequest is for range endpoints,
// not for a too-short search term — it degrades gracefully instead).
func (s *Service) Search(ctx context.Context, q string) ([]Summary, error) {
	if len(q) < searchMinLen {
		return []Summary{}, nil
	}

	concepts, err := s.corpus.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(q)
	out := make([]Summary, 0, searchResultCap)
	for _, c := range concepts {
		if len(out) == searchResultCap {
			break
		}
		if strings.Contains(strings.ToLower(c.Code), needle) ||
			strings.Contains(strings.ToLower(c.Description), needle) {
			out = append(out, summaryOf(c))
		}
	}
	return out, nil
}

// Detail fetches concept code, parses its formula and condition
// independently, and attaches forward/reverse dependencies and colors.
func (s *Service) Detail(ctx context.Context, code string) (Detail, error) {
	c, err := s.corpus.ByCode(ctx, code)
	if err != nil {
		return Detail{}, err
	}

	formulaVars := s.parser.Parse(c.Formula)
	conditionVars := s.parser.Parse(c.Condition)

	forward := make(map[string]struct{})
	for ref := range s.parser.ForwardReferences(c.Formula) {
		forward[ref] = struct{}{}
	}
	for ref := range s.parser.ForwardReferences(c.Condition) {
		forward[ref] = struct{}{}
	}

	return Detail{
		Summary:             summaryOf(c),
		Formula:             c.Formula,
		Condition:           c.Condition,
		FormulaVariables:    formulaVars,
		ConditionVariables:  conditionVars,
		ForwardDependencies: sortedSet(forward),
		ReverseDependencies: s.index.Dependents(code),
	}, nil
}

// ForwardDependencies returns only the forward-deps portion of Detail.
func (s *Service) ForwardDependencies(ctx context.Context, code string) ([]string, error) {
	d, err := s.Detail(ctx, code)
	if err != nil {
		return nil, err
	}
	return d.ForwardDependencies, nil
}

// ReverseDependencies returns the index's answer directly. Unlike
// ForwardDependencies it never 404s: an unknown code simply has no
// dependents (spec §6).
func (s *Service) ReverseDependencies(code string) []string {
	return s.index.Dependents(code)
}

// RangeListing fetches [lo, hi] and applies the SC/ST definitive/transitory
// filter (spec §4.4). lo and hi must be parseable integers.
func (s *Service) RangeListing(ctx context.Context, prefix, lo, hi string) (RangeListing, error) {
	if _, err := strconv.Atoi(lo); err != nil {
		return RangeListing{}, apierr.BadRequest(fmt.Errorf("invalid range start %q: %w", lo, err))
	}
	if _, err := strconv.Atoi(hi); err != nil {
		return RangeListing{}, apierr.BadRequest(fmt.Errorf("invalid range end %q: %w", hi, err))
	}

	concepts, err := s.corpus.ByRange(ctx, lo, hi)
	if err != nil {
		return RangeListing{}, err
	}

	items := make([]Summary, 0, len(concepts))
	for _, c := range concepts {
		switch strings.ToUpper(prefix) {
		case "SC":
			if c.Classification != corpus.Definitive {
				continue
			}
		case "ST":
			if c.Classification != corpus.Transitory {
				continue
			}
		}
		items = append(items, summaryOf(c))
	}

	return RangeListing{
		Description: rangeDescription(prefix, lo, hi),
		Items:       items,
	}, nil
}

// RefreshIndex triggers a full rebuild and returns the resulting stats.
func (s *Service) RefreshIndex(ctx context.Context) (depindex.Stats, error) {
	if err := s.index.Build(ctx); err != nil {
		return depindex.Stats{}, err
	}
	return s.index.Stats(), nil
}

// IndexStats reports the dependency index's current state without
// triggering a rebuild.
func (s *Service) IndexStats() depindex.Stats {
	return s.index.Stats()
}

// LiquidationTypes returns the distinct TipoLiquidacion values observed
// across the corpus (spec §6's /api/liquidacion/tipos).
func (s *Service) LiquidationTypes(ctx context.Context) ([]string, error) {
	return s.corpus.LiquidationTypes(ctx)
}

func summaryOf(c corpus.Concept) Summary {
	pair := colors.Derive(c.Code)
	return Summary{
		Code:           c.Code,
		Description:    c.Description,
		Classification: c.Classification,
		Background:     pair.Background,
		Border:         pair.Border,
	}
}

func rangeDescription(prefix, lo, hi string) string {
	switch strings.ToUpper(prefix) {
	case "SC":
		return fmt.Sprintf("conceptos definitivos %s-%s", lo, hi)
	case "ST":
		return fmt.Sprintf("conceptos transitorios %s-%s", lo, hi)
	default:
		return fmt.Sprintf("conceptos %s-%s", lo, hi)
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
