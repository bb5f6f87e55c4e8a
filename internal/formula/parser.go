// Package formula implements the %TOKEN% variable grammar: scanning a
// formula or condition string for tokens and classifying each one against
// the pattern registry.
package formula

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/upcn/conceptdeps/internal/patterns"
)

// SelfCode is the sentinel referenced-concept value meaning "this concept".
const SelfCode = "0000"

// ParsedVariable is one classified %TOKEN% occurrence.
type ParsedVariable struct {
	Name               string
	Prefix             string
	Kind               patterns.Kind
	ReferencedConcept  string // SINGLE_CONCEPT only
	RangeStart         string // RANGE only, 4-digit zero-padded
	RangeEnd           string // RANGE only, 4-digit zero-padded
	DisplayText        string
	PatternDescription string
	SpanStart          int
	SpanEnd            int
}

// Range is a (start, end) pair referenced by a RANGE token, in the literal
// digit strings observed in the formula.
type Range struct {
	Start string
	End   string
}

var tokenPattern = regexp.MustCompile(`%[A-Z0-9]+%`)

// Parser scans formulas for %TOKEN% occurrences and classifies them using
// a Registry. A Parser is immutable and safe for concurrent use.
type Parser struct {
	registry *patterns.Registry
}

// New creates a Parser backed by the given pattern registry.
func New(registry *patterns.Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse returns the ordered, non-overlapping list of ParsedVariables found
// in formula. Blank input returns an empty (non-nil) slice.
func (p *Parser) Parse(formula string) []ParsedVariable {
	if strings.TrimSpace(formula) == "" {
		return []ParsedVariable{}
	}

	spans := tokenPattern.FindAllStringIndex(formula, -1)
	vars := make([]ParsedVariable, 0, len(spans))
	for _, span := range spans {
		start, end := span[0], span[1]
		raw := formula[start+1 : end-1] // strip the surrounding '%'
		vars = append(vars, p.classify(raw, start, end))
	}
	return vars
}

// ForwardReferences returns the set of distinct SINGLE_CONCEPT codes
// referenced by formula, excluding the self sentinel "0000".
func (p *Parser) ForwardReferences(formula string) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, v := range p.Parse(formula) {
		if v.Kind == patterns.KindSingleConcept && v.ReferencedConcept != SelfCode {
			refs[v.ReferencedConcept] = struct{}{}
		}
	}
	return refs
}

// Ranges returns the (start, end) pairs referenced by formula, preserving
// duplicates in order of appearance.
func (p *Parser) Ranges(formula string) []Range {
	var out []Range
	for _, v := range p.Parse(formula) {
		if v.Kind == patterns.KindRange {
			out = append(out, Range{Start: v.RangeStart, End: v.RangeEnd})
		}
	}
	return out
}

func (p *Parser) classify(raw string, start, end int) ParsedVariable {
	entry, groups, ok := p.registry.Match(raw)
	if !ok {
		return ParsedVariable{
			Name:               raw,
			Prefix:             raw,
			Kind:               patterns.KindTerminal,
			DisplayText:        raw,
			PatternDescription: "unrecognized",
			SpanStart:          start,
			SpanEnd:            end,
		}
	}

	v := ParsedVariable{
		Name:               raw,
		Prefix:             entry.Prefix,
		Kind:               entry.Kind,
		PatternDescription: entry.Description,
		SpanStart:          start,
		SpanEnd:            end,
	}

	switch entry.Kind {
	case patterns.KindRange:
		v.RangeStart = groups["nnnn"]
		v.RangeEnd = groups["xxxx"]
		v.DisplayText = substitute(entry.DisplayTemplate, groups)
	case patterns.KindSingleConcept:
		v.ReferencedConcept = groups["nnnn"]
		if v.ReferencedConcept == SelfCode && entry.SelfTemplate != "" {
			v.DisplayText = substitute(entry.SelfTemplate, groups)
		} else {
			v.DisplayText = substitute(entry.DisplayTemplate, groups)
		}
	default: // KindTerminal
		v.DisplayText = substitute(entry.DisplayTemplate, groups)
	}

	return v
}

// substitute expands {nnnn}, {xxxx}, {mm}, {l} in template using the named
// capture groups from the match. nnnn/xxxx are substituted verbatim
// (4-digit, zero-padded); mm/l are substituted as their integer value
// (leading zeros trimmed), matching how months-back and liquidation-type
// captures are meant to read in display text.
func substitute(template string, groups map[string]string) string {
	out := template
	if v, ok := groups["nnnn"]; ok {
		out = strings.ReplaceAll(out, "{nnnn}", v)
	}
	if v, ok := groups["xxxx"]; ok {
		out = strings.ReplaceAll(out, "{xxxx}", v)
	}
	if v, ok := groups["mm"]; ok {
		out = strings.ReplaceAll(out, "{mm}", trimLeadingZeros(v))
	}
	if v, ok := groups["l"]; ok {
		out = strings.ReplaceAll(out, "{l}", trimLeadingZeros(v))
	}
	return out
}

func trimLeadingZeros(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return strconv.Itoa(n)
}
