package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/gabriellymonarca/Ecotrack/internal/normalize"
)

// Params configures a label search.
type Params struct {
	Query  string
	Sector string // empty = all sectors
	Kind   string // empty = all kinds

	Limit  int
	Offset int

	IncludeFacets bool
}

// DefaultParams returns the parameters used when the caller sets none.
func DefaultParams() Params {
	return Params{Limit: 20, IncludeFacets: true}
}

// Result is one page of label hits.
type Result struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []Hit        `json:"hits"`
	Facets []FacetCount `json:"sectors,omitempty"`
}

// Hit is a matching label.
type Hit struct {
	ID        string  `json:"id"`
	Sector    string  `json:"sector"`
	Kind      string  `json:"kind"`
	Label     string  `json:"label"`
	Slug      string  `json:"slug"`
	Score     float64 `json:"score"`
	Highlight string  `json:"highlight,omitempty"`
}

// FacetCount is a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search runs a label query. An empty query lists labels in slug order.
func (s *LabelIndex) Search(ctx context.Context, params Params) (*Result, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultParams().Limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	if strings.TrimSpace(params.Query) == "" {
		req.SortBy([]string{"sector", "kind", "slug"})
	} else {
		req.SortBy([]string{"-_score", "slug"})
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("label")
	}
	if params.IncludeFacets {
		req.AddFacet("sector", bleve.NewFacetRequest("sector", 3))
	}
	req.Fields = []string{"sector", "kind", "label", "slug"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}

	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		hit.Sector, _ = h.Fields["sector"].(string)
		hit.Kind, _ = h.Fields["kind"].(string)
		hit.Label, _ = h.Fields["label"].(string)
		hit.Slug, _ = h.Fields["slug"].(string)
		if frags := h.Fragments["label"]; len(frags) > 0 {
			hit.Highlight = frags[0]
		}
		out.Hits = append(out.Hits, hit)
	}

	if f, ok := res.Facets["sector"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			out.Facets = append(out.Facets, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	return out, nil
}

func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		match := bleve.NewMatchQuery(q)
		match.SetField("label")
		match.SetOperator(query.MatchQueryOperatorAnd)
		match.SetBoost(3.0)

		fuzzy := bleve.NewMatchQuery(q)
		fuzzy.SetField("label")
		fuzzy.SetFuzziness(1)
		fuzzy.SetOperator(query.MatchQueryOperatorAnd)
		fuzzy.SetBoost(0.8)

		text := []query.Query{match, fuzzy}

		// Prefix on the last word for type-ahead.
		if words := strings.Fields(normalize.Fold(q)); len(words) > 0 {
			if last := words[len(words)-1]; len(last) >= 2 {
				prefix := bleve.NewPrefixQuery(last)
				prefix.SetField("label")
				prefix.SetBoost(0.5)
				text = append(text, prefix)
			}
		}

		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if params.Sector != "" {
		tq := bleve.NewTermQuery(params.Sector)
		tq.SetField("sector")
		queries = append(queries, tq)
	}
	if params.Kind != "" {
		tq := bleve.NewTermQuery(params.Kind)
		tq.SetField("kind")
		queries = append(queries, tq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}
