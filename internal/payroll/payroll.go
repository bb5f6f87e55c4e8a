// Package payroll is the external payroll-aggregation collaborator (spec
// §4.6): it sums LIQUID1 rows grouped by concept code. It has no
// dependency on the parser, the corpus, or the dependency index — the core
// only calls it because ApiSurface exposes /api/liquidacion.
package payroll

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/upcn/conceptdeps/internal/apierr"
	"github.com/upcn/conceptdeps/internal/dbretry"
)

// DefaultLiquidationType is used when the caller doesn't specify one.
const DefaultLiquidationType = "0"

// Line is one concept's aggregated payroll amounts for a query.
type Line struct {
	ConceptCode   string  `json:"conceptCode"`
	SumCalculated float64 `json:"sumCalculated"`
	SumReported   float64 `json:"sumReported"`
	LineCount     int     `json:"lineCount"`
}

// Query parameters for an aggregation request. EmployeeID is optional; when
// empty, the aggregation sums across all employees.
type Query struct {
	Year            int
	Month           int
	LiquidationType string
	EmployeeID      string
}

// WithDefaults fills unset fields with spec §4.6's defaults: current
// year/month, liquidation type "0".
func (q Query) WithDefaults(now time.Time) Query {
	if q.Year == 0 {
		q.Year = now.Year()
	}
	if q.Month == 0 {
		q.Month = int(now.Month())
	}
	if q.LiquidationType == "" {
		q.LiquidationType = DefaultLiquidationType
	}
	return q
}

// Aggregator sums LIQUID1 rows grouped by concept code.
type Aggregator interface {
	Aggregate(ctx context.Context, q Query) ([]Line, error)
}

const (
	sqlAggregateAll = `
SELECT Liq1Cnc, SUM(Liq1Cal), SUM(Liq1Inf), COUNT(*)
FROM LIQUID1
WHERE LiqAno = $1 AND LiqMes = $2 AND LiqTpoLiq = $3
GROUP BY Liq1Cnc
ORDER BY Liq1Cnc`

	sqlAggregateOne = `
SELECT Liq1Cnc, SUM(Liq1Cal), SUM(Liq1Inf), COUNT(*)
FROM LIQUID1
WHERE LiqAno = $1 AND LiqMes = $2 AND LiqTpoLiq = $3 AND LiqLeg = $4
GROUP BY Liq1Cnc
ORDER BY Liq1Cnc`
)

// Postgres is the database-backed Aggregator.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
	retry  dbretry.Config
}

// NewPostgres wraps an already-opened *sql.DB.
func NewPostgres(db *sql.DB, logger *slog.Logger) *Postgres {
	return &Postgres{db: db, logger: logger, retry: dbretry.DefaultConfig()}
}

func (p *Postgres) Aggregate(ctx context.Context, q Query) ([]Line, error) {
	var lines []Line
	err := dbretry.Do(ctx, p.logger, "payroll.aggregate", p.retry, func() error {
		var rows *sql.Rows
		var err error
		if q.EmployeeID == "" {
			rows, err = p.db.QueryContext(ctx, sqlAggregateAll, q.Year, q.Month, q.LiquidationType)
		} else {
			rows, err = p.db.QueryContext(ctx, sqlAggregateOne, q.Year, q.Month, q.LiquidationType, q.EmployeeID)
		}
		if err != nil {
			return err
		}
		defer rows.Close()

		lines = nil
		for rows.Next() {
			var l Line
			if err := rows.Scan(&l.ConceptCode, &l.SumCalculated, &l.SumReported, &l.LineCount); err != nil {
				return err
			}
			lines = append(lines, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("aggregating payroll: %w", err))
	}
	return lines, nil
}
