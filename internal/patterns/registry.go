// Package patterns declares the fixed table of %TOKEN% variable patterns
// that the formula parser matches against. The table is built once at
// startup and never mutated afterwards.
package patterns

import "regexp"

// Kind classifies what a matched token refers to.
type Kind int

const (
	// KindRange tokens reference every concept whose code falls in [start, end].
	KindRange Kind = iota
	// KindSingleConcept tokens reference exactly one other concept (or "0000" for self).
	KindSingleConcept
	// KindTerminal tokens are non-referential macros.
	KindTerminal
)

func (k Kind) String() string {
	switch k {
	case KindRange:
		return "RANGE"
	case KindSingleConcept:
		return "SINGLE_CONCEPT"
	case KindTerminal:
		return "TERMINAL"
	default:
		return "UNKNOWN"
	}
}

// Entry is one declarative row of the pattern table.
//
// Matcher must be anchored (^...$) so it matches the whole token, never a
// substring. Named capture groups drive template substitution:
//
//	nnnn  - the primary concept code or range start (kept 4-digit, zero-padded)
//	xxxx  - the range end (RANGE entries only)
//	mm    - months-back capture (CC/CI)
//	l     - liquidation-type capture (CC/CI/CALU/CALX)
type Entry struct {
	Prefix          string
	Matcher         *regexp.Regexp
	Kind            Kind
	DisplayTemplate string
	SelfTemplate    string // optional, used when nnnn == "0000"
	Description     string // optional patternDescription
}

// Registry is the immutable, ordered set of pattern buckets.
type Registry struct {
	ranges         []Entry
	singleConcepts []Entry
	terminals      []Entry
}

func mustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

// New builds the registry once. Bucket order within each slice is the
// priority order for ties within that bucket; bucket order itself
// (range, then single-concept, then terminal) is enforced by Match.
func New() *Registry {
	return &Registry{
		ranges:         rangeEntries(),
		singleConcepts: singleConceptEntries(),
		terminals:      terminalEntries(),
	}
}

func rangeEntries() []Entry {
	return []Entry{
		{
			Prefix:          "SC",
			Matcher:         mustCompile(`^SC(?P<nnnn>\d{4})(?P<xxxx>\d{4})$`),
			Kind:            KindRange,
			DisplayTemplate: "conceptos {nnnn} a {xxxx} (definitivos)",
		},
		{
			Prefix:          "ST",
			Matcher:         mustCompile(`^ST(?P<nnnn>\d{4})(?P<xxxx>\d{4})$`),
			Kind:            KindRange,
			DisplayTemplate: "conceptos {nnnn} a {xxxx} (transitorios)",
		},
		{
			Prefix:          "SI",
			Matcher:         mustCompile(`^SI(?P<nnnn>\d{4})(?P<xxxx>\d{4})$`),
			Kind:            KindRange,
			DisplayTemplate: "conceptos {nnnn} a {xxxx} (informativos)",
		},
		{
			// Trailing-letter variant: a classification letter follows the range.
			Prefix:          "S",
			Matcher:         mustCompile(`^S(?P<nnnn>\d{4})(?P<xxxx>\d{4})[A-Z]$`),
			Kind:            KindRange,
			DisplayTemplate: "conceptos {nnnn} a {xxxx}",
		},
		{
			// Trailing-digit variant: an edition/version digit follows the range.
			Prefix:          "E",
			Matcher:         mustCompile(`^E(?P<nnnn>\d{4})(?P<xxxx>\d{4})\d$`),
			Kind:            KindRange,
			DisplayTemplate: "conceptos {nnnn} a {xxxx} (edición)",
		},
		{
			Prefix:          "MM",
			Matcher:         mustCompile(`^MM(?P<nnnn>\d{4})(?P<xxxx>\d{4})$`),
			Kind:            KindRange,
			DisplayTemplate: "conceptos {nnnn} a {xxxx} (mes a mes)",
		},
	}
}

func singleConceptEntries() []Entry {
	simple := func(prefix, label string) Entry {
		return Entry{
			Prefix:          prefix,
			Matcher:         mustCompile(`^` + prefix + `(?P<nnnn>\d{4})$`),
			Kind:            KindSingleConcept,
			DisplayTemplate: label + " de {nnnn}",
			SelfTemplate:    label + " (este concepto)",
		}
	}

	entries := []Entry{
		simple("CALC", "cálculo"),
		simple("INFO", "información"),
		simple("REDO", "redondeo"),
		simple("VAL1", "valor 1"),
		simple("VAL2", "valor 2"),
		simple("VAL3", "valor 3"),
		simple("FVA1", "fórmula de valor 1"),
		simple("FVA2", "fórmula de valor 2"),
		simple("FVA3", "fórmula de valor 3"),
		simple("BASI", "base imponible"),
		simple("ADIC", "adicional"),
		simple("COMS", "comisión"),
		simple("PCON", "porcentaje sobre concepto"),
		simple("PCOM", "porcentaje sobre comisión"),
		simple("CGAN", "concepto ganancias"),
		simple("PROVAC", "provisión vacaciones"),
		simple("CSEM", "cálculo semanal"),
		simple("CSEP", "cálculo semi-mensual"),
		simple("MSEM", "mínimo semanal"),
		simple("CC", "crédito"),
		simple("CI", "crédito informativo"),
		simple("AC", "acumulador"),
		simple("AI", "acumulador informativo"),
		simple("0", "valor directo"),
		simple("L", "límite"),
		simple("A", "alícuota"),
		simple("B", "base"),
	}

	// CC/CI carry months-back and liquidation-type captures after the code.
	entries = append(entries,
		Entry{
			Prefix:          "CC",
			Matcher:         mustCompile(`^CC(?P<nnnn>\d{4})(?P<mm>\d{2})(?P<l>\d{2})$`),
			Kind:            KindSingleConcept,
			DisplayTemplate: "crédito de {nnnn}, liq. {l} of {mm} meses atrás",
			SelfTemplate:    "crédito (este concepto), liq. {l} of {mm} meses atrás",
		},
		Entry{
			Prefix:          "CI",
			Matcher:         mustCompile(`^CI(?P<nnnn>\d{4})(?P<mm>\d{2})(?P<l>\d{2})$`),
			Kind:            KindSingleConcept,
			DisplayTemplate: "crédito informativo de {nnnn}, liq. {l} of {mm} meses atrás",
			SelfTemplate:    "crédito informativo (este concepto), liq. {l} of {mm} meses atrás",
		},
		// CALU/CALX carry a trailing liquidation-type capture.
		Entry{
			Prefix:          "CALU",
			Matcher:         mustCompile(`^CALU(?P<nnnn>\d{4})(?P<l>\d{2})$`),
			Kind:            KindSingleConcept,
			DisplayTemplate: "cálculo único de {nnnn} (liq. {l})",
			SelfTemplate:    "cálculo único (este concepto, liq. {l})",
		},
		Entry{
			Prefix:          "CALX",
			Matcher:         mustCompile(`^CALX(?P<nnnn>\d{4})(?P<l>\d{2})$`),
			Kind:            KindSingleConcept,
			DisplayTemplate: "cálculo extendido de {nnnn} (liq. {l})",
			SelfTemplate:    "cálculo extendido (este concepto, liq. {l})",
		},
	)

	return entries
}

func terminalEntries() []Entry {
	literal := func(name string) Entry {
		return Entry{
			Prefix:          name,
			Matcher:         mustCompile(`^` + name + `$`),
			Kind:            KindTerminal,
			DisplayTemplate: name,
		}
	}

	return []Entry{
		literal("ANTIGUEDAD"),
		literal("CATEGORIA"),
		literal("SEXO"),
		literal("ESTADOCIVIL"),
		literal("FECHAINGRESO"),
		literal("FECHANACIMIENTO"),
		literal("LEGAJO"),
		literal("DIASTRABAJADOS"),
		literal("HORASTRABAJADAS"),
		literal("SUELDOBASICO"),
		{
			Prefix:          "ANOTRA",
			Matcher:         mustCompile(`^ANOTRA\d{3}$`),
			Kind:            KindTerminal,
			DisplayTemplate: "antigüedad trabajada",
		},
		{
			Prefix:          "FAMI",
			Matcher:         mustCompile(`^FAMI\d{3}$`),
			Kind:            KindTerminal,
			DisplayTemplate: "carga de familia",
		},
		{
			Prefix:          "GCIA",
			Matcher:         mustCompile(`^GCIA\d{4}$`),
			Kind:            KindTerminal,
			DisplayTemplate: "parámetro de ganancias",
		},
		{
			// Range-of-totals macro: not a concept reference, a pre-aggregated total.
			Prefix:          "Z",
			Matcher:         mustCompile(`^Z[A-Z]{2}\d{8}$`),
			Kind:            KindTerminal,
			DisplayTemplate: "total acumulado",
		},
	}
}

// Match tries the buckets in priority order (range, single-concept,
// terminal) and returns the first entry whose Matcher matches token, plus
// the submatch values keyed by capture-group name. ok is false if no
// entry in any bucket matched — callers build a synthetic terminal in
// that case.
func (r *Registry) Match(token string) (entry Entry, groups map[string]string, ok bool) {
	for _, bucket := range [][]Entry{r.ranges, r.singleConcepts, r.terminals} {
		for _, e := range bucket {
			if m := e.Matcher.FindStringSubmatch(token); m != nil {
				return e, namedGroups(e.Matcher, m), true
			}
		}
	}
	return Entry{}, nil, false
}

func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	groups := make(map[string]string, len(match))
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		groups[name] = match[i]
	}
	return groups
}
