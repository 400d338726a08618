package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
	"github.com/gabriellymonarca/Ecotrack/internal/normalize"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
)

// ServiceMetric selects the service table an on-demand view reads.
type ServiceMetric string

// Service metrics.
const (
	ServiceVolume  ServiceMetric = "volume"
	ServiceRevenue ServiceMetric = "revenue"
)

const (
	keyAll         = "all"
	commerceTopMax = 3
)

func (m ServiceMetric) metric(t relational.ServiceTables) (relational.Metric, error) {
	switch m {
	case ServiceVolume:
		return t.VolumeMetric(), nil
	case ServiceRevenue:
		return t.RevenueMetric(), nil
	default:
		return relational.Metric{}, domainerrors.Validationf("unknown service metric %q", m)
	}
}

// MonthlyCollection is the collection ServiceMonthlyForYear writes to.
func (m ServiceMetric) MonthlyCollection() string {
	return "service_" + string(m) + "_monthly_year"
}

// RankingCollection is the collection ServiceTopN writes to.
func (m ServiceMetric) RankingCollection() string {
	return "service_" + string(m) + "_ranking_top"
}

// CommerceVolumeYearly stores total commerce volume per year under key "all".
func (e *Engine) CommerceVolumeYearly(ctx context.Context) (docstore.Document, error) {
	data, err := e.yearlyTotals(ctx, e.tables.Commerce.VolumeMetric(), round2)
	if err != nil {
		return nil, err
	}
	return e.store(ctx, CollectionCommerceVolumeYearly, keyAll, map[string]any{"data": data})
}

// CommerceRevenueExpenseYearly stores yearly revenue and expense totals in
// millions under key "all".
func (e *Engine) CommerceRevenueExpenseYearly(ctx context.Context) (docstore.Document, error) {
	revenue, err := e.yearlyTotals(ctx, e.tables.Commerce.RevenueMetric(), millions)
	if err != nil {
		return nil, err
	}
	expense, err := e.yearlyTotals(ctx, e.tables.Commerce.ExpenseMetric(), millions)
	if err != nil {
		return nil, err
	}
	return e.store(ctx, CollectionCommerceRevenueExpenseYearly, keyAll, map[string]any{
		"revenue": revenue,
		"expense": expense,
	})
}

// CommerceDivisionForYear stores one year's volume per division. All three
// divisions are present.
func (e *Engine) CommerceDivisionForYear(ctx context.Context, year string) (docstore.Document, error) {
	rows, err := e.rowsForYear(ctx, e.tables.Commerce.VolumeMetric(), year)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"year": year}
	totals := make(map[normalize.Division]float64)
	for _, r := range rows {
		if div, ok := normalize.ResolveDivision(r.Label); ok {
			totals[div] += r.Value
		}
	}
	for _, div := range normalize.Divisions() {
		fields[string(div)] = round2(totals[div])
	}
	return e.store(ctx, CollectionCommerceDivisionYear, year, fields)
}

// CommerceRankingForYear stores the three largest groups of each division
// for one year.
func (e *Engine) CommerceRankingForYear(ctx context.Context, year string) (docstore.Document, error) {
	rows, err := e.rowsForYear(ctx, e.tables.Commerce.VolumeMetric(), year)
	if err != nil {
		return nil, err
	}

	byDivision := make(map[normalize.Division]map[string]float64)
	for _, r := range rows {
		div, ok := normalize.ResolveDivision(r.Label)
		if !ok {
			continue
		}
		if byDivision[div] == nil {
			byDivision[div] = make(map[string]float64)
		}
		byDivision[div][r.Label] += r.Value
	}

	fields := map[string]any{"year": year}
	for _, div := range normalize.Divisions() {
		ranking := make([]RankEntry, 0, len(byDivision[div]))
		for label, v := range byDivision[div] {
			ranking = append(ranking, RankEntry{Name: label, Value: round2(v)})
		}
		sortRanking(ranking)
		if len(ranking) > commerceTopMax {
			ranking = ranking[:commerceTopMax]
		}
		fields[string(div)] = ranking
	}
	return e.store(ctx, CollectionCommerceRankingYear, year, fields)
}

// CommerceRevenueExpenseForYear stores one year's revenue and expense per
// division, in millions.
func (e *Engine) CommerceRevenueExpenseForYear(ctx context.Context, year string) (docstore.Document, error) {
	revenue, err := e.rowsForYear(ctx, e.tables.Commerce.RevenueMetric(), year)
	if err != nil {
		return nil, err
	}
	expense, err := e.rowsForYear(ctx, e.tables.Commerce.ExpenseMetric(), year)
	if err != nil && !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	type flows struct{ revenue, expense float64 }
	totals := make(map[normalize.Division]*flows)
	for _, div := range normalize.Divisions() {
		totals[div] = &flows{}
	}
	for _, r := range revenue {
		if div, ok := normalize.ResolveDivision(r.Label); ok {
			totals[div].revenue += r.Value
		}
	}
	for _, r := range expense {
		if div, ok := normalize.ResolveDivision(r.Label); ok {
			totals[div].expense += r.Value
		}
	}

	data := make([]AreaTotals, 0, len(totals))
	for _, div := range normalize.Divisions() {
		data = append(data, AreaTotals{
			Area:    string(div),
			Revenue: millions(totals[div].revenue),
			Expense: millions(totals[div].expense),
		})
	}
	return e.store(ctx, CollectionCommerceRevenueExpenseYear, year, map[string]any{"year": year, "data": data})
}

// IndustryProductionForYear stores one activity's monthly production for a year.
func (e *Engine) IndustryProductionForYear(ctx context.Context, year, activity string) (docstore.Document, error) {
	t := e.tables.Industry
	if err := e.requireLabel(ctx, t.Activity, "activity", activity); err != nil {
		return nil, err
	}

	rows, err := e.reader.RowsForLabel(ctx, t.ProductionMetric(), activity, year)
	if err != nil {
		return nil, err
	}
	data := monthlyPoints(rows)
	if len(data) == 0 {
		return nil, domainerrors.NotFoundf("no production for %q in %s", activity, year)
	}

	return e.store(ctx, CollectionIndustryProductionYear, year+":"+normalize.Slugify(activity), map[string]any{
		"year":     year,
		"activity": activity,
		"data":     data,
	})
}

// IndustryRevenueForActivity stores one CNAE class's revenue per year.
func (e *Engine) IndustryRevenueForActivity(ctx context.Context, activity string) (docstore.Document, error) {
	t := e.tables.Industry
	if err := e.requireLabel(ctx, t.ActivityCNAE, "activity", activity); err != nil {
		return nil, err
	}

	rows, err := e.reader.RowsForLabel(ctx, t.RevenueMetric(), activity, "")
	if err != nil {
		return nil, err
	}
	data := make(map[string]float64)
	for _, r := range rows {
		if year, ok := normalize.ExtractYear(r.Period); ok {
			data[year] += r.Value
		}
	}
	if len(data) == 0 {
		return nil, domainerrors.NotFoundf("no revenue for %q", activity)
	}
	for year, v := range data {
		data[year] = round2(v)
	}

	return e.store(ctx, CollectionIndustryRevenueActivity, normalize.Slugify(activity), map[string]any{
		"activity": activity,
		"data":     data,
	})
}

// ServiceMonthlyForYear stores one segment's monthly series for a year.
func (e *Engine) ServiceMonthlyForYear(ctx context.Context, metric ServiceMetric, year, segment string) (docstore.Document, error) {
	m, err := metric.metric(e.tables.Service)
	if err != nil {
		return nil, err
	}
	if err := e.requireLabel(ctx, e.tables.Service.Segment, "segment", segment); err != nil {
		return nil, err
	}

	rows, err := e.reader.RowsForLabel(ctx, m, segment, year)
	if err != nil {
		return nil, err
	}
	data := monthlyPoints(rows)
	if len(data) == 0 {
		return nil, domainerrors.NotFoundf("no %s for %q in %s", metric, segment, year)
	}

	return e.store(ctx, metric.MonthlyCollection(), year+":"+normalize.Slugify(segment), map[string]any{
		"year":    year,
		"segment": segment,
		"data":    data,
	})
}

// ServiceTopN stores the topN segments of a year by summed metric.
func (e *Engine) ServiceTopN(ctx context.Context, metric ServiceMetric, year string, topN int) (docstore.Document, error) {
	m, err := metric.metric(e.tables.Service)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		return nil, domainerrors.Validationf("top_n must be positive, got %d", topN)
	}

	totals, err := e.reader.TotalsByLabel(ctx, m, year, topN)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, domainerrors.NotFoundf("no %s ranking for %s", metric, year)
	}

	data := make([]RankEntry, 0, len(totals))
	for _, t := range totals {
		data = append(data, RankEntry{Name: t.Label, Value: round2(t.Value)})
	}
	return e.store(ctx, metric.RankingCollection(), fmt.Sprintf("%s:%d", year, topN), map[string]any{
		"year":  year,
		"top_n": topN,
		"data":  data,
	})
}

// yearlyTotals sums a metric per extracted year.
func (e *Engine) yearlyTotals(ctx context.Context, m relational.Metric, scale func(float64) float64) (map[string]float64, error) {
	totals, err := e.reader.SumByPeriod(ctx, m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, t := range totals {
		year, ok := normalize.ExtractYear(t.Period)
		if !ok {
			continue
		}
		out[year] += t.Value
	}
	for year, v := range out {
		out[year] = scale(v)
	}
	return out, nil
}

// rowsForYear returns a metric's rows whose period falls in year.
func (e *Engine) rowsForYear(ctx context.Context, m relational.Metric, year string) ([]relational.Row, error) {
	rows, err := e.reader.Rows(ctx, m)
	if err != nil {
		return nil, err
	}
	var out []relational.Row
	for _, r := range rows {
		if y, ok := normalize.ExtractYear(r.Period); ok && y == year {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, domainerrors.NotFoundf("no %s data for %s", m.Table, year)
	}
	return out, nil
}

// requireLabel turns a lookup miss into a not-found error.
func (e *Engine) requireLabel(ctx context.Context, lookup, kind, label string) error {
	_, err := e.reader.LookupID(ctx, lookup, label)
	if domainerrors.Is(err, domainerrors.ErrLookupMiss) {
		return domainerrors.NotFoundf("%s %q not found", kind, label).WithCause(err)
	}
	return err
}

func monthlyPoints(rows []relational.Row) []Point {
	points := make([]Point, 0, len(rows))
	for _, r := range rows {
		date, ok := normalize.ParseMonthYear(r.Period)
		if !ok {
			continue
		}
		points = append(points, Point{Date: date, Value: round2(r.Value)})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// store upserts fields and returns the stored document.
func (e *Engine) store(ctx context.Context, collection, key string, fields map[string]any) (docstore.Document, error) {
	if err := e.writer.Upsert(ctx, collection, key, fields); err != nil {
		return nil, err
	}
	e.logger.Info("on-demand view stored", "collection", collection, "key", key)
	return e.writer.Get(ctx, collection, key)
}
