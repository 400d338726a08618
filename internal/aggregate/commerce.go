package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/gabriellymonarca/Ecotrack/internal/normalize"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
)

// commerceVolume upserts one {date, value} document per period. Raw
// periods that normalize to the same key are summed.
func (e *Engine) commerceVolume(ctx context.Context, m relational.Metric, collection string) (viewOutput, error) {
	totals, err := e.reader.SumByPeriod(ctx, m)
	if err != nil {
		return viewOutput{}, err
	}

	var dates []string
	byDate := make(map[string]float64)
	for _, t := range totals {
		date := periodKey(t.Period)
		if _, ok := byDate[date]; !ok {
			dates = append(dates, date)
		}
		byDate[date] += t.Value
	}

	var out viewOutput
	for _, date := range dates {
		if err := e.writer.Upsert(ctx, collection, date, map[string]any{
			"date":  date,
			"value": round2(byDate[date]),
		}); err != nil {
			return out, fmt.Errorf("upsert %s: %w", date, err)
		}
		out.documents++
	}
	return out, nil
}

// commerceDivision upserts, per period, the volume of each of the three
// divisions. All three are always present; groups outside them are ignored.
func (e *Engine) commerceDivision(ctx context.Context, m relational.Metric, collection string) (viewOutput, error) {
	rows, err := e.reader.SumByLabelPeriod(ctx, m)
	if err != nil {
		return viewOutput{}, err
	}

	divisions := normalize.Divisions()
	var dates []string
	byDate := make(map[string]map[normalize.Division]float64)
	for _, r := range rows {
		date := periodKey(r.Period)
		totals, ok := byDate[date]
		if !ok {
			totals = make(map[normalize.Division]float64, len(divisions))
			byDate[date] = totals
			dates = append(dates, date)
		}
		if div, ok := normalize.ResolveDivision(r.Label); ok {
			totals[div] += r.Value
		}
	}

	var out viewOutput
	for _, date := range dates {
		data := make([]NamedPoint, 0, len(divisions))
		for _, div := range divisions {
			data = append(data, NamedPoint{Date: date, Name: string(div), Value: round2(byDate[date][div])})
		}
		if err := e.writer.Upsert(ctx, collection, date, map[string]any{"data": data}); err != nil {
			return out, fmt.Errorf("upsert %s: %w", date, err)
		}
		out.documents++
	}
	return out, nil
}

// commerceRanking upserts, per period, every commerce group ranked by
// volume, largest first.
func (e *Engine) commerceRanking(ctx context.Context, m relational.Metric, collection string) (viewOutput, error) {
	rows, err := e.reader.SumByLabelPeriod(ctx, m)
	if err != nil {
		return viewOutput{}, err
	}

	var dates []string
	labelsByDate := make(map[string][]string)
	byDate := make(map[string]map[string]float64)
	for _, r := range rows {
		date := periodKey(r.Period)
		totals, ok := byDate[date]
		if !ok {
			totals = make(map[string]float64)
			byDate[date] = totals
			dates = append(dates, date)
		}
		if _, ok := totals[r.Label]; !ok {
			labelsByDate[date] = append(labelsByDate[date], r.Label)
		}
		totals[r.Label] += r.Value
	}

	var out viewOutput
	for _, date := range dates {
		data := make([]NamedPoint, 0, len(labelsByDate[date]))
		for _, label := range labelsByDate[date] {
			data = append(data, NamedPoint{Date: date, Name: label, Value: round2(byDate[date][label])})
		}
		sort.SliceStable(data, func(i, j int) bool {
			if data[i].Value != data[j].Value {
				return data[i].Value > data[j].Value
			}
			return data[i].Name < data[j].Name
		})
		if err := e.writer.Upsert(ctx, collection, date, map[string]any{"data": data}); err != nil {
			return out, fmt.Errorf("upsert %s: %w", date, err)
		}
		out.documents++
	}
	return out, nil
}

// commerceRevenueExpense upserts, per period, total revenue and expense in
// millions, revenue first.
func (e *Engine) commerceRevenueExpense(ctx context.Context, t relational.CommerceTables, collection string) (viewOutput, error) {
	revenue, err := e.reader.SumByPeriod(ctx, t.RevenueMetric())
	if err != nil {
		return viewOutput{}, err
	}
	expense, err := e.reader.SumByPeriod(ctx, t.ExpenseMetric())
	if err != nil {
		return viewOutput{}, err
	}

	var dates []string
	byDate := make(map[string]map[string]float64)
	add := func(flow string, totals []relational.PeriodTotal) {
		for _, p := range totals {
			date := periodKey(p.Period)
			flows, ok := byDate[date]
			if !ok {
				flows = make(map[string]float64, 2)
				byDate[date] = flows
				dates = append(dates, date)
			}
			flows[flow] += p.Value
		}
	}
	add("revenue", revenue)
	add("expense", expense)

	var out viewOutput
	for _, date := range dates {
		data := make([]NamedPoint, 0, 2)
		for _, flow := range []string{"revenue", "expense"} {
			if v, ok := byDate[date][flow]; ok {
				data = append(data, NamedPoint{Date: date, Name: flow, Value: millions(v)})
			}
		}
		if err := e.writer.Upsert(ctx, collection, date, map[string]any{"data": data}); err != nil {
			return out, fmt.Errorf("upsert %s: %w", date, err)
		}
		out.documents++
	}
	return out, nil
}

type flowDivision struct {
	flow     string
	division normalize.Division
}

// commerceRevenueExpenseGrouped upserts, per period, revenue and expense in
// millions split by division. Groups outside the three divisions are
// summed under "other".
func (e *Engine) commerceRevenueExpenseGrouped(ctx context.Context, t relational.CommerceTables, collection string) (viewOutput, error) {
	revenue, err := e.reader.SumByLabelPeriod(ctx, t.RevenueMetric())
	if err != nil {
		return viewOutput{}, err
	}
	expense, err := e.reader.SumByLabelPeriod(ctx, t.ExpenseMetric())
	if err != nil {
		return viewOutput{}, err
	}

	var dates []string
	byDate := make(map[string]map[flowDivision]float64)
	add := func(flow string, rows []relational.Row) {
		for _, r := range rows {
			date := periodKey(r.Period)
			totals, ok := byDate[date]
			if !ok {
				totals = make(map[flowDivision]float64)
				byDate[date] = totals
				dates = append(dates, date)
			}
			totals[flowDivision{flow, normalize.ResolveDivisionOrOther(r.Label)}] += r.Value
		}
	}
	add("revenue", revenue)
	add("expense", expense)

	order := append(normalize.Divisions(), normalize.DivisionOther)

	var out viewOutput
	for _, date := range dates {
		totals := byDate[date]
		var data []TypedPoint
		for _, flow := range []string{"revenue", "expense"} {
			for _, div := range order {
				v, ok := totals[flowDivision{flow, div}]
				if !ok {
					continue
				}
				data = append(data, TypedPoint{Date: date, Name: flow, Type: string(div), Value: millions(v)})
			}
		}
		if err := e.writer.Upsert(ctx, collection, date, map[string]any{"data": data}); err != nil {
			return out, fmt.Errorf("upsert %s: %w", date, err)
		}
		out.documents++
	}
	return out, nil
}
