package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"

	"github.com/upcn/conceptdeps/internal/apierr"
	"github.com/upcn/conceptdeps/internal/dbretry"
)

// SQL statements against the read-only view described in spec §6. Grouping
// by (CodConcepto, CodFormula) and string_agg-ing TipoLiquidacion mirrors
// the aggregate-parent-concepts query pattern used against Postgres views
// elsewhere in the ecosystem.
const (
	sqlListAll = `
SELECT CodConcepto, CodFormula, DescripcionConcepto, DescripcionFormula,
       CondicionFormula, TransitorioDefinitivo, TipoConcepto, Orden, FormulaCompleta,
       string_agg(DISTINCT TipoLiquidacion, '-') AS TiposLiquidacion
FROM ConceptoTipoLiqFormula
GROUP BY CodConcepto, CodFormula, DescripcionConcepto, DescripcionFormula,
         CondicionFormula, TransitorioDefinitivo, TipoConcepto, Orden, FormulaCompleta
ORDER BY CodConcepto, CodFormula`

	sqlByCode = `
SELECT CodConcepto, CodFormula, DescripcionConcepto, DescripcionFormula,
       CondicionFormula, TransitorioDefinitivo, TipoConcepto, Orden, FormulaCompleta,
       string_agg(DISTINCT TipoLiquidacion, '-') AS TiposLiquidacion
FROM ConceptoTipoLiqFormula
WHERE CodConcepto = $1
GROUP BY CodConcepto, CodFormula, DescripcionConcepto, DescripcionFormula,
         CondicionFormula, TransitorioDefinitivo, TipoConcepto, Orden, FormulaCompleta
ORDER BY CodFormula
LIMIT 1`

	sqlByRange = `
SELECT CodConcepto, CodFormula, DescripcionConcepto, DescripcionFormula,
       CondicionFormula, TransitorioDefinitivo, TipoConcepto, Orden, FormulaCompleta,
       string_agg(DISTINCT TipoLiquidacion, '-') AS TiposLiquidacion
FROM ConceptoTipoLiqFormula
WHERE CAST(CodConcepto AS INTEGER) BETWEEN $1::int AND $2::int
GROUP BY CodConcepto, CodFormula, DescripcionConcepto, DescripcionFormula,
         CondicionFormula, TransitorioDefinitivo, TipoConcepto, Orden, FormulaCompleta
ORDER BY CodConcepto`

	sqlLiquidationTypes = `
SELECT DISTINCT TipoLiquidacion
FROM ConceptoTipoLiqFormula
ORDER BY TipoLiquidacion`
)

// Postgres is the database-backed Corpus implementation.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
	retry  dbretry.Config
}

// NewPostgres wraps an already-opened *sql.DB. Callers own the DB's
// lifecycle (pool sizing, Close).
func NewPostgres(db *sql.DB, logger *slog.Logger) *Postgres {
	return &Postgres{db: db, logger: logger, retry: dbretry.DefaultConfig()}
}

func (p *Postgres) ListAll(ctx context.Context) ([]Concept, error) {
	var concepts []Concept
	err := dbretry.Do(ctx, p.logger, "corpus.list_all", p.retry, func() error {
		rows, err := p.db.QueryContext(ctx, sqlListAll)
		if err != nil {
			return err
		}
		defer rows.Close()
		concepts, err = scanConcepts(rows)
		return err
	})
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("listing concepts: %w", err))
	}
	return concepts, nil
}

func (p *Postgres) ByCode(ctx context.Context, code string) (Concept, error) {
	var concept Concept
	var found bool
	err := dbretry.Do(ctx, p.logger, "corpus.by_code", p.retry, func() error {
		rows, err := p.db.QueryContext(ctx, sqlByCode, code)
		if err != nil {
			return err
		}
		defer rows.Close()
		concepts, err := scanConcepts(rows)
		if err != nil {
			return err
		}
		if len(concepts) > 0 {
			concept = concepts[0]
			found = true
		}
		return nil
	})
	if err != nil {
		return Concept{}, apierr.Upstream(fmt.Errorf("fetching concept %q: %w", code, err))
	}
	if !found {
		return Concept{}, NotFoundError(code)
	}
	return concept, nil
}

func (p *Postgres) ByRange(ctx context.Context, lo, hi string) ([]Concept, error) {
	var concepts []Concept
	err := dbretry.Do(ctx, p.logger, "corpus.by_range", p.retry, func() error {
		rows, err := p.db.QueryContext(ctx, sqlByRange, lo, hi)
		if err != nil {
			return err
		}
		defer rows.Close()
		concepts, err = scanConcepts(rows)
		return err
	})
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("fetching range [%s, %s]: %w", lo, hi, err))
	}
	return concepts, nil
}

func (p *Postgres) LiquidationTypes(ctx context.Context) ([]string, error) {
	var types []string
	err := dbretry.Do(ctx, p.logger, "corpus.liquidation_types", p.retry, func() error {
		rows, err := p.db.QueryContext(ctx, sqlLiquidationTypes)
		if err != nil {
			return err
		}
		defer rows.Close()
		types = nil
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return err
			}
			types = append(types, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("listing liquidation types: %w", err))
	}
	return types, nil
}

func scanConcepts(rows *sql.Rows) ([]Concept, error) {
	var out []Concept
	for rows.Next() {
		var (
			c           Concept
			classLetter string
			liquidacion sql.NullString
		)
		if err := rows.Scan(
			&c.Code, &c.FormulaCode, &c.Description, &c.FormulaDescription,
			&c.Condition, &classLetter, &c.TypeCode, &c.Ordering, &c.Formula,
			&liquidacion,
		); err != nil {
			return nil, err
		}
		c.Classification = ClassificationFromColumn(classLetter)
		if liquidacion.Valid && liquidacion.String != "" {
			c.LiquidationTypes = strings.Split(liquidacion.String, "-")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
