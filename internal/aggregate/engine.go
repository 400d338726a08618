// Package aggregate turns relational survey data into the visualization
// documents served by the API.
//
// Bulk views recompute whole collections from full table scans on every
// pipeline run. On-demand views compute a single document for a year,
// label or top-N request and upsert it into its own collection.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	"github.com/gabriellymonarca/Ecotrack/internal/normalize"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
)

// Reader is the relational query surface the views consume.
type Reader interface {
	SumByPeriod(ctx context.Context, m relational.Metric) ([]relational.PeriodTotal, error)
	SumByLabelPeriod(ctx context.Context, m relational.Metric) ([]relational.Row, error)
	Rows(ctx context.Context, m relational.Metric) ([]relational.Row, error)
	RowsForLabel(ctx context.Context, m relational.Metric, label, periodSuffix string) ([]relational.Row, error)
	TotalsByLabel(ctx context.Context, m relational.Metric, periodSuffix string, limit int) ([]relational.LabelTotal, error)
	LookupID(ctx context.Context, lookup, label string) (int64, error)
}

// Writer is the document store surface the views write to.
type Writer interface {
	Upsert(ctx context.Context, collection, key string, fields map[string]any) error
	ReplaceCollection(ctx context.Context, collection string, docs []docstore.Document) error
	Get(ctx context.Context, collection, key string) (docstore.Document, error)
}

// Engine computes views. It holds no state between calls.
type Engine struct {
	reader Reader
	writer Writer
	tables relational.Tables
	logger *slog.Logger
}

// New creates an engine. tables names the relational tables the on-demand
// views read; bulk runs take their tables explicitly.
func New(reader Reader, writer Writer, tables relational.Tables, logger *slog.Logger) *Engine {
	return &Engine{
		reader: reader,
		writer: writer,
		tables: tables,
		logger: logger,
	}
}

// ViewResult is the outcome of one bulk view.
type ViewResult struct {
	View       string        `json:"view"`
	Sector     string        `json:"sector"`
	Collection string        `json:"collection"`
	Documents  int           `json:"documents"`
	Skipped    int           `json:"skipped"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`

	Err error `json:"-"`
}

// OK reports whether the view wrote its collection.
func (r ViewResult) OK() bool {
	return r.Err == nil
}

// viewOutput is what a view body reports back to Run.
type viewOutput struct {
	documents int
	skipped   int
}

// View is one bulk aggregation bound to its input tables and output collection.
type View struct {
	Name       string
	Sector     string
	Collection string

	run func(ctx context.Context) (viewOutput, error)
}

// Views returns the bulk views in run order: commerce, industry, service.
func (e *Engine) Views(t relational.Tables, c Collections) []View {
	ct, it, st := t.Commerce, t.Industry, t.Service

	return []View{
		{"commerce_volume", SectorCommerce, c.Commerce.Volume, func(ctx context.Context) (viewOutput, error) {
			return e.commerceVolume(ctx, ct.VolumeMetric(), c.Commerce.Volume)
		}},
		{"commerce_division", SectorCommerce, c.Commerce.Division, func(ctx context.Context) (viewOutput, error) {
			return e.commerceDivision(ctx, ct.VolumeMetric(), c.Commerce.Division)
		}},
		{"commerce_ranking", SectorCommerce, c.Commerce.Ranking, func(ctx context.Context) (viewOutput, error) {
			return e.commerceRanking(ctx, ct.VolumeMetric(), c.Commerce.Ranking)
		}},
		{"commerce_revenue_expense_year", SectorCommerce, c.Commerce.RevenueExpense, func(ctx context.Context) (viewOutput, error) {
			return e.commerceRevenueExpense(ctx, ct, c.Commerce.RevenueExpense)
		}},
		{"commerce_revenue_expense_grouped", SectorCommerce, c.Commerce.RevenueExpenseGrouped, func(ctx context.Context) (viewOutput, error) {
			return e.commerceRevenueExpenseGrouped(ctx, ct, c.Commerce.RevenueExpenseGrouped)
		}},
		{"industry_production_series", SectorIndustry, c.Industry.Production, func(ctx context.Context) (viewOutput, error) {
			return e.industryProduction(ctx, it.ProductionMetric(), c.Industry.Production)
		}},
		{"industry_revenue_yearly", SectorIndustry, c.Industry.RevenueYearly, func(ctx context.Context) (viewOutput, error) {
			return e.industryRevenue(ctx, it.RevenueMetric(), c.Industry.RevenueYearly)
		}},
		{"service_volume_monthly", SectorService, c.Service.VolumeMonthly, func(ctx context.Context) (viewOutput, error) {
			return e.serviceMonthly(ctx, st.VolumeMetric(), c.Service.VolumeMonthly)
		}},
		{"service_volume_ranking", SectorService, c.Service.VolumeRanking, func(ctx context.Context) (viewOutput, error) {
			return e.serviceRanking(ctx, st.VolumeMetric(), c.Service.VolumeRanking)
		}},
		{"service_revenue_monthly", SectorService, c.Service.RevenueMonthly, func(ctx context.Context) (viewOutput, error) {
			return e.serviceMonthly(ctx, st.RevenueMetric(), c.Service.RevenueMonthly)
		}},
		{"service_revenue_ranking", SectorService, c.Service.RevenueRanking, func(ctx context.Context) (viewOutput, error) {
			return e.serviceRanking(ctx, st.RevenueMetric(), c.Service.RevenueRanking)
		}},
	}
}

// RunAll runs every bulk view.
func (e *Engine) RunAll(ctx context.Context, t relational.Tables, c Collections) []ViewResult {
	return e.Run(ctx, e.Views(t, c))
}

// Run executes views one after another. A failing view is recorded in its
// result and the remaining views still run; its collection keeps whatever
// it held before.
func (e *Engine) Run(ctx context.Context, views []View) []ViewResult {
	results := make([]ViewResult, 0, len(views))
	for _, v := range views {
		results = append(results, e.runView(ctx, v))
	}
	return results
}

func (e *Engine) runView(ctx context.Context, v View) (res ViewResult) {
	res = ViewResult{View: v.Name, Sector: v.Sector, Collection: v.Collection}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("view %s panicked: %v", v.Name, r)
		}
		res.Duration = time.Since(start)
		res.DurationMS = res.Duration.Milliseconds()
		if res.Err != nil {
			res.Error = res.Err.Error()
			e.logger.Error("view failed", "view", v.Name, "collection", v.Collection, "error", res.Err)
			return
		}
		if res.Skipped > 0 {
			e.logger.Debug("skipped unparseable periods", "view", v.Name, "count", res.Skipped)
		}
		e.logger.Info("view written",
			"view", v.Name,
			"collection", v.Collection,
			"documents", res.Documents,
			"duration", res.Duration,
		)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	out, err := v.run(ctx)
	res.Documents = out.documents
	res.Skipped = out.skipped
	res.Err = err
	return res
}

// periodKey is the document key for a commerce period: YYYY-MM for a
// month label, the raw label otherwise (yearly tables report "2023").
func periodKey(raw string) string {
	if iso, ok := normalize.ParseMonthYear(raw); ok {
		return iso
	}
	return raw
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// millions converts a currency amount to millions, rounded.
func millions(v float64) float64 {
	return round2(v / 1_000_000)
}
