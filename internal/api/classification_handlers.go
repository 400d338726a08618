package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
	"github.com/gabriellymonarca/Ecotrack/internal/normalize"
	"github.com/gabriellymonarca/Ecotrack/internal/search"
)

func (s *Server) registerClassificationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchClassifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/classifications/search",
		Summary:     "Search classification labels",
		Description: "Accent-insensitive label search with prefix and typo tolerance",
		Tags:        []string{"Classifications"},
	}, s.handleSearchClassifications)

	huma.Register(s.api, huma.Operation{
		OperationID: "listClassifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/classifications/{sector}/{kind}",
		Summary:     "List classification labels",
		Description: "Returns every label of a lookup table with its document slug",
		Tags:        []string{"Classifications"},
	}, s.handleListClassifications)
}

// === DTOs ===

// ListClassificationsInput names a lookup table.
type ListClassificationsInput struct {
	Sector string `path:"sector" enum:"commerce,industry,service" doc:"Survey sector"`
	Kind   string `path:"kind" doc:"Lookup kind: group, activity, activity_cnae or segment"`
}

// ClassificationLabel is a label and the slug used in document keys.
type ClassificationLabel struct {
	Label string `json:"label" doc:"Label as published by IBGE"`
	Slug  string `json:"slug" doc:"Key form of the label"`
}

// ClassificationsOutput wraps a lookup listing for Huma.
type ClassificationsOutput struct {
	Body struct {
		Sector string                `json:"sector"`
		Kind   string                `json:"kind"`
		Labels []ClassificationLabel `json:"labels"`
	}
}

// SearchClassificationsInput holds search query parameters.
type SearchClassificationsInput struct {
	Query  string `query:"q" doc:"Search text; empty lists labels in slug order"`
	Sector string `query:"sector" enum:"commerce,industry,service" doc:"Restrict to a sector"`
	Kind   string `query:"kind" doc:"Restrict to a lookup kind"`
	Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum hits"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Hits to skip"`
}

// SearchClassificationsOutput wraps search results for Huma.
type SearchClassificationsOutput struct {
	Body *search.Result
}

// === Handlers ===

func (s *Server) handleListClassifications(ctx context.Context, input *ListClassificationsInput) (*ClassificationsOutput, error) {
	table, ok := s.deps.Pipeline.Tables().Lookup(input.Sector, input.Kind)
	if !ok {
		return nil, domainerrors.NotFoundf("no %s classification %q", input.Sector, input.Kind)
	}

	labels, err := s.deps.Labels.Labels(ctx, table)
	if err != nil {
		return nil, err
	}

	out := &ClassificationsOutput{}
	out.Body.Sector = input.Sector
	out.Body.Kind = input.Kind
	out.Body.Labels = make([]ClassificationLabel, 0, len(labels))
	for _, l := range labels {
		out.Body.Labels = append(out.Body.Labels, ClassificationLabel{Label: l, Slug: normalize.Slugify(l)})
	}
	return out, nil
}

func (s *Server) handleSearchClassifications(ctx context.Context, input *SearchClassificationsInput) (*SearchClassificationsOutput, error) {
	if s.deps.Search == nil {
		return nil, huma.Error503ServiceUnavailable("label search is not available")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	result, err := s.deps.Search.Search(ctx, search.Params{
		Query:         input.Query,
		Sector:        input.Sector,
		Kind:          input.Kind,
		Limit:         limit,
		Offset:        input.Offset,
		IncludeFacets: true,
	})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search labels")
	}
	return &SearchClassificationsOutput{Body: result}, nil
}
