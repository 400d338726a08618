package aggregate

import (
	"context"
	"sort"

	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	"github.com/gabriellymonarca/Ecotrack/internal/normalize"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
)

// serviceMonthly replaces the collection with one monthly series per
// segment. Segments whose series is entirely zero are left out.
func (e *Engine) serviceMonthly(ctx context.Context, m relational.Metric, collection string) (viewOutput, error) {
	rows, err := e.reader.Rows(ctx, m)
	if err != nil {
		return viewOutput{}, err
	}

	series, skipped := monthlySeries(rows)
	docs := e.slugDocuments(collection, series, anyNonZero)
	if err := e.writer.ReplaceCollection(ctx, collection, docs); err != nil {
		return viewOutput{skipped: skipped}, err
	}
	return viewOutput{documents: len(docs), skipped: skipped}, nil
}

// serviceRanking replaces the collection with one ranking per year. Each
// segment slug's yearly total is the sum of its months; segments that are zero
// in every year are left out.
func (e *Engine) serviceRanking(ctx context.Context, m relational.Metric, collection string) (viewOutput, error) {
	rows, err := e.reader.Rows(ctx, m)
	if err != nil {
		return viewOutput{}, err
	}

	var slugs []string
	yearly := make(map[string]map[string]float64)
	skipped := 0
	for _, r := range rows {
		_, year, ok := normalize.SplitMonthYear(r.Period)
		if !ok {
			skipped++
			continue
		}
		slug := normalize.Slugify(r.Label)
		totals, seen := yearly[slug]
		if !seen {
			totals = make(map[string]float64)
			yearly[slug] = totals
			slugs = append(slugs, slug)
		}
		totals[year] += r.Value
	}

	byYear := make(map[string][]RankEntry)
	for _, slug := range slugs {
		totals := yearly[slug]
		nonZero := false
		for _, v := range totals {
			if v != 0 {
				nonZero = true
				break
			}
		}
		if !nonZero {
			continue
		}
		for year, v := range totals {
			byYear[year] = append(byYear[year], RankEntry{Name: slug, Value: round2(v)})
		}
	}

	years := make([]string, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Strings(years)

	docs := make([]docstore.Document, 0, len(years))
	for _, year := range years {
		ranking := byYear[year]
		sortRanking(ranking)
		docs = append(docs, keyedDoc(year, ranking))
	}

	if err := e.writer.ReplaceCollection(ctx, collection, docs); err != nil {
		return viewOutput{skipped: skipped}, err
	}
	return viewOutput{documents: len(docs), skipped: skipped}, nil
}

// sortRanking orders entries by value, largest first, ties by name.
func sortRanking(entries []RankEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Name < entries[j].Name
	})
}
