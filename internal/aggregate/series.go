package aggregate

import (
	"sort"

	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	"github.com/gabriellymonarca/Ecotrack/internal/normalize"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
)

// slugSeries accumulates per-slug series in first-seen slug order. Labels
// sharing a slug are merged; values on the same date are summed.
type slugSeries struct {
	slugs      []string
	labels     map[string]string
	values     map[string]map[string]float64
	collisions []slugCollision
}

type slugCollision struct {
	slug, first, second string
}

func newSlugSeries() *slugSeries {
	return &slugSeries{
		labels: make(map[string]string),
		values: make(map[string]map[string]float64),
	}
}

func (s *slugSeries) add(label, date string, value float64) {
	slug := normalize.Slugify(label)
	byDate, ok := s.values[slug]
	if !ok {
		byDate = make(map[string]float64)
		s.values[slug] = byDate
		s.slugs = append(s.slugs, slug)
	} else if prev := s.labels[slug]; prev != label {
		s.collisions = append(s.collisions, slugCollision{slug: slug, first: prev, second: label})
	}
	s.labels[slug] = label
	byDate[date] += value
}

// points returns the slug's series sorted by date, rounded to two decimals.
func (s *slugSeries) points(slug string) []Point {
	byDate := s.values[slug]
	pts := make([]Point, 0, len(byDate))
	for date, v := range byDate {
		pts = append(pts, Point{Date: date, Value: round2(v)})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Date < pts[j].Date })
	return pts
}

// monthlySeries groups rows by label slug with periods normalized to
// YYYY-MM. Rows whose period does not parse are counted and dropped.
func monthlySeries(rows []relational.Row) (*slugSeries, int) {
	series := newSlugSeries()
	skipped := 0
	for _, r := range rows {
		date, ok := normalize.ParseMonthYear(r.Period)
		if !ok {
			skipped++
			continue
		}
		series.add(r.Label, date, r.Value)
	}
	return series, skipped
}

// slugDocuments builds one document per slug. keep filters series out; nil
// keeps all.
func (e *Engine) slugDocuments(view string, s *slugSeries, keep func([]Point) bool) []docstore.Document {
	for _, c := range s.collisions {
		e.logger.Warn("labels share a slug, merging their series",
			"view", view, "slug", c.slug, "first", c.first, "second", c.second)
	}

	docs := make([]docstore.Document, 0, len(s.slugs))
	for _, slug := range s.slugs {
		pts := s.points(slug)
		if keep != nil && !keep(pts) {
			continue
		}
		docs = append(docs, keyedDoc(slug, pts))
	}
	return docs
}

func anyNonZero(pts []Point) bool {
	for _, p := range pts {
		if p.Value != 0 {
			return true
		}
	}
	return false
}
