package aggregate

import (
	"context"

	"github.com/gabriellymonarca/Ecotrack/internal/relational"
)

// industryProduction replaces the collection with one monthly series per
// activity, keyed by activity slug.
func (e *Engine) industryProduction(ctx context.Context, m relational.Metric, collection string) (viewOutput, error) {
	rows, err := e.reader.Rows(ctx, m)
	if err != nil {
		return viewOutput{}, err
	}

	series, skipped := monthlySeries(rows)
	docs := e.slugDocuments("industry_production_series", series, nil)
	if err := e.writer.ReplaceCollection(ctx, collection, docs); err != nil {
		return viewOutput{skipped: skipped}, err
	}
	return viewOutput{documents: len(docs), skipped: skipped}, nil
}

// industryRevenue replaces the collection with one series per CNAE class.
// Periods are yearly and kept as returned by the source, in ascending order.
func (e *Engine) industryRevenue(ctx context.Context, m relational.Metric, collection string) (viewOutput, error) {
	rows, err := e.reader.SumByLabelPeriod(ctx, m)
	if err != nil {
		return viewOutput{}, err
	}

	series := newSlugSeries()
	for _, r := range rows {
		series.add(r.Label, r.Period, r.Value)
	}

	docs := e.slugDocuments("industry_revenue_yearly", series, nil)
	if err := e.writer.ReplaceCollection(ctx, collection, docs); err != nil {
		return viewOutput{}, err
	}
	return viewOutput{documents: len(docs)}, nil
}
