// Package depindex maintains the in-memory reverse-dependency index: for
// every concept code, which concepts reference it directly or through a
// range. The index is rebuilt from the full corpus on a schedule and on
// demand; readers always see a complete snapshot, never a partially built
// one (spec §4.3, §5).
package depindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/upcn/conceptdeps/internal/corpus"
	"github.com/upcn/conceptdeps/internal/formula"
)

// Stats summarizes a snapshot for the cache/stats endpoint.
type Stats struct {
	Ready         bool   `json:"ready"`
	DirectEntries int    `json:"directEntries"`
	RangeEntries  int    `json:"rangeEntries"`
	TopCode       string `json:"topCode,omitempty"`
	TopCodeFanIn  int    `json:"topCodeFanIn,omitempty"`
}

// snapshot is the immutable pair of maps installed atomically by build().
type snapshot struct {
	direct map[string]map[string]struct{} // code -> set of dependent codes
	ranges map[string]map[string]struct{} // "lo-hi" -> set of dependent codes
	lo, hi map[string]int                 // "lo-hi" key -> parsed bounds, for containment tests
	ready  bool
}

func emptySnapshot() *snapshot {
	return &snapshot{
		direct: map[string]map[string]struct{}{},
		ranges: map[string]map[string]struct{}{},
		lo:     map[string]int{},
		hi:     map[string]int{},
	}
}

// Index is the reverse-dependency index. The zero value is not usable; use
// New. Index is safe for concurrent use: Build swaps in a whole new
// snapshot under a single write lock, so readers never observe a partial
// map (spec §5).
type Index struct {
	corpus corpus.Corpus
	parser *formula.Parser
	logger *slog.Logger

	mu   sync.RWMutex
	snap *snapshot

	buildMu sync.Mutex // serializes concurrent Build calls
}

// New creates an Index over corpus c. The index starts not-ready; callers
// should Build it once (typically blocking startup) before serving reads.
func New(c corpus.Corpus, p *formula.Parser, logger *slog.Logger) *Index {
	return &Index{
		corpus: c,
		parser: p,
		logger: logger,
		snap:   emptySnapshot(),
	}
}

// Name implements scheduler.Job.
func (idx *Index) Name() string { return "dependency-index-rebuild" }

// Run implements scheduler.Job: it rebuilds the index. If the corpus is
// unreachable, Build logs the failure and returns the error, and the
// previous snapshot stays authoritative (RebuildFailure policy, spec §7).
func (idx *Index) Run(ctx context.Context) error {
	return idx.Build(ctx)
}

// Build performs a full, synchronous rebuild. Two concurrent calls
// serialize; each produces a complete map from the current corpus. On
// failure the previous snapshot is retained and the error is returned (the
// scheduler logs it and moves on; it never fails a request).
func (idx *Index) Build(ctx context.Context) error {
	idx.buildMu.Lock()
	defer idx.buildMu.Unlock()

	concepts, err := idx.corpus.ListAll(ctx)
	if err != nil {
		idx.logger.Error("dependency index rebuild failed, keeping previous snapshot", "error", err)
		return fmt.Errorf("listing concepts: %w", err)
	}

	next := emptySnapshot()
	for _, c := range concepts {
		idx.absorb(next, c.Code, c.Formula)
		idx.absorb(next, c.Code, c.Condition)
	}
	next.ready = true

	idx.mu.Lock()
	idx.snap = next
	idx.mu.Unlock()

	idx.logger.Info("dependency index rebuilt",
		"concepts", len(concepts),
		"direct_entries", len(next.direct),
		"range_entries", len(next.ranges),
	)
	return nil
}

// absorb parses text (a formula or a condition) belonging to concept code
// and folds its SINGLE_CONCEPT references and RANGE references into next.
func (idx *Index) absorb(next *snapshot, code, text string) {
	for ref := range idx.parser.ForwardReferences(text) {
		set, ok := next.direct[ref]
		if !ok {
			set = map[string]struct{}{}
			next.direct[ref] = set
		}
		set[code] = struct{}{}
	}

	for _, r := range idx.parser.Ranges(text) {
		key := r.Start + "-" + r.End
		set, ok := next.ranges[key]
		if !ok {
			set = map[string]struct{}{}
			next.ranges[key] = set
			if lo, err := strconv.Atoi(r.Start); err == nil {
				next.lo[key] = lo
			}
			if hi, err := strconv.Atoi(r.End); err == nil {
				next.hi[key] = hi
			}
		}
		set[code] = struct{}{}
	}
}

// Dependents returns the union of direct[code] and every range entry whose
// interval contains code (when code parses as an integer), sorted. Returns
// an empty (non-nil) slice if the index isn't ready yet (spec §7,
// IndexNotReady is not an error).
func (idx *Index) Dependents(code string) []string {
	snap := idx.current()
	if !snap.ready {
		return []string{}
	}

	out := make(map[string]struct{})
	if set, ok := snap.direct[code]; ok {
		for c := range set {
			out[c] = struct{}{}
		}
	}

	if n, err := strconv.Atoi(code); err == nil {
		for key, set := range snap.ranges {
			lo, okLo := snap.lo[key]
			hi, okHi := snap.hi[key]
			if !okLo || !okHi {
				continue
			}
			if n >= lo && n <= hi {
				for c := range set {
					out[c] = struct{}{}
				}
			}
		}
	}

	return sortedKeys(out)
}

// DependentsOfRange returns the concepts that reference the literal range
// "lo-hi", or an empty slice if no formula referenced exactly that range.
func (idx *Index) DependentsOfRange(lo, hi string) []string {
	snap := idx.current()
	set, ok := snap.ranges[lo+"-"+hi]
	if !ok {
		return []string{}
	}
	out := make(map[string]struct{}, len(set))
	for c := range set {
		out[c] = struct{}{}
	}
	return sortedKeys(out)
}

// Stats reports snapshot sizes and the code with the largest reverse
// fan-in (direct references only, per spec §4.3).
func (idx *Index) Stats() Stats {
	snap := idx.current()
	stats := Stats{
		Ready:         snap.ready,
		DirectEntries: len(snap.direct),
		RangeEntries:  len(snap.ranges),
	}
	for code, set := range snap.direct {
		if len(set) > stats.TopCodeFanIn {
			stats.TopCode = code
			stats.TopCodeFanIn = len(set)
		}
	}
	return stats
}

// Ready reports whether a build has completed at least once.
func (idx *Index) Ready() bool {
	return idx.current().ready
}

func (idx *Index) current() *snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snap
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
