package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
)

// viewRoute binds a read endpoint to one bulk collection.
type viewRoute struct {
	operationID string
	path        string
	summary     string
	tag         string
	collection  func(aggregate.Collections) string
}

func viewRoutes() []viewRoute {
	return []viewRoute{
		{"getCommerceVolumeSeries", "/api/v1/commerce/volume/series", "Commerce sales volume per period", "Commerce",
			func(c aggregate.Collections) string { return c.Commerce.Volume }},
		{"getCommerceDivision", "/api/v1/commerce/division", "Commerce volume by division per period", "Commerce",
			func(c aggregate.Collections) string { return c.Commerce.Division }},
		{"getCommerceRanking", "/api/v1/commerce/ranking", "Commerce activity ranking per period", "Commerce",
			func(c aggregate.Collections) string { return c.Commerce.Ranking }},
		{"getCommerceRevenueExpenseSeries", "/api/v1/commerce/revenue-expense/series", "Commerce revenue and expense per period", "Commerce",
			func(c aggregate.Collections) string { return c.Commerce.RevenueExpense }},
		{"getCommerceRevenueExpenseGrouped", "/api/v1/commerce/revenue-expense/grouped", "Commerce revenue and expense by division", "Commerce",
			func(c aggregate.Collections) string { return c.Commerce.RevenueExpenseGrouped }},
		{"getIndustryProductionSeries", "/api/v1/industry/production/series", "Industrial production index per activity", "Industry",
			func(c aggregate.Collections) string { return c.Industry.Production }},
		{"getIndustryRevenueYearly", "/api/v1/industry/revenue/yearly", "Industrial revenue per activity and year", "Industry",
			func(c aggregate.Collections) string { return c.Industry.RevenueYearly }},
		{"getServiceVolumeMonthly", "/api/v1/service/volume/monthly", "Service volume per segment and month", "Service",
			func(c aggregate.Collections) string { return c.Service.VolumeMonthly }},
		{"getServiceVolumeRanking", "/api/v1/service/volume/ranking", "Service volume ranking per year", "Service",
			func(c aggregate.Collections) string { return c.Service.VolumeRanking }},
		{"getServiceRevenueMonthly", "/api/v1/service/revenue/monthly", "Service revenue per segment and month", "Service",
			func(c aggregate.Collections) string { return c.Service.RevenueMonthly }},
		{"getServiceRevenueRanking", "/api/v1/service/revenue/ranking", "Service revenue ranking per year", "Service",
			func(c aggregate.Collections) string { return c.Service.RevenueRanking }},
	}
}

func (s *Server) registerViewRoutes() {
	for _, v := range viewRoutes() {
		huma.Register(s.api, huma.Operation{
			OperationID: v.operationID,
			Method:      http.MethodGet,
			Path:        v.path,
			Summary:     v.summary,
			Description: "Returns every document of the view as written by the last pipeline run",
			Tags:        []string{v.tag},
		}, s.listCollection(v.collection))
	}
}

func (s *Server) registerDocumentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCollections",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections",
		Summary:     "List collections",
		Description: "Returns every non-empty document collection with its size",
		Tags:        []string{"Documents"},
	}, s.handleListCollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDocument",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections/{collection}/{key}",
		Summary:     "Get document",
		Description: "Returns one stored document by collection and key",
		Tags:        []string{"Documents"},
	}, s.handleGetDocument)
}

// === DTOs ===

// DocumentsResponse lists the documents of one collection.
type DocumentsResponse struct {
	Collection string              `json:"collection" doc:"Collection name"`
	Documents  []docstore.Document `json:"documents" doc:"Stored documents in key order"`
}

// DocumentsOutput wraps a collection listing for Huma.
type DocumentsOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         DocumentsResponse
}

// CollectionsOutput wraps the collection summary for Huma.
type CollectionsOutput struct {
	Body struct {
		Collections []docstore.CollectionInfo `json:"collections" doc:"Non-empty collections"`
	}
}

// GetDocumentInput addresses one document.
type GetDocumentInput struct {
	Collection string `path:"collection" pattern:"^[a-z0-9_]+$" doc:"Collection name"`
	Key        string `path:"key" doc:"Document key"`
}

// DocumentOutput wraps a single document for Huma.
type DocumentOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         docstore.Document
}

// === Handlers ===

func (s *Server) listCollection(pick func(aggregate.Collections) string) func(context.Context, *struct{}) (*DocumentsOutput, error) {
	return func(ctx context.Context, _ *struct{}) (*DocumentsOutput, error) {
		collection := pick(s.deps.Pipeline.Collections())

		docs, err := s.deps.Documents.List(ctx, collection)
		if err != nil {
			return nil, err
		}
		if docs == nil {
			docs = []docstore.Document{}
		}

		return &DocumentsOutput{
			CacheControl: CacheViews,
			Body:         DocumentsResponse{Collection: collection, Documents: docs},
		}, nil
	}
}

func (s *Server) handleListCollections(ctx context.Context, _ *struct{}) (*CollectionsOutput, error) {
	infos, err := s.deps.Documents.Collections(ctx)
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []docstore.CollectionInfo{}
	}

	out := &CollectionsOutput{}
	out.Body.Collections = infos
	return out, nil
}

func (s *Server) handleGetDocument(ctx context.Context, input *GetDocumentInput) (*DocumentOutput, error) {
	doc, err := s.deps.Documents.Get(ctx, input.Collection, input.Key)
	if err != nil {
		return nil, err
	}
	return &DocumentOutput{CacheControl: CacheViews, Body: doc}, nil
}
