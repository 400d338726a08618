package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
)

func (s *Server) registerOnDemandRoutes() {
	huma.Register(s.api, s.onDemandOperation("computeCommerceYearly", "/api/v1/commerce/yearly", "Commerce",
		"Commerce yearly totals",
		"Computes yearly volume, or revenue and expense in millions, and stores them under key \"all\""),
		s.handleCommerceYearly)

	huma.Register(s.api, s.onDemandOperation("computeCommerceYear", "/api/v1/commerce/year", "Commerce",
		"Commerce snapshot for one year",
		"Computes the division totals, the top activities or revenue and expense per area for a year"),
		s.handleCommerceYear)

	huma.Register(s.api, s.onDemandOperation("computeIndustryProduction", "/api/v1/industry/production", "Industry",
		"Industrial production for one activity and year",
		"Computes the monthly production series of an activity within a year"),
		s.handleIndustryProduction)

	huma.Register(s.api, s.onDemandOperation("computeIndustryRevenue", "/api/v1/industry/revenue", "Industry",
		"Industrial revenue for one activity",
		"Computes the yearly revenue series of a CNAE activity"),
		s.handleIndustryRevenue)

	huma.Register(s.api, s.onDemandOperation("computeServiceMonthly", "/api/v1/service/monthly", "Service",
		"Service monthly series for one segment and year",
		"Computes the monthly volume or revenue series of a segment within a year"),
		s.handleServiceMonthly)

	huma.Register(s.api, s.onDemandOperation("computeServiceRanking", "/api/v1/service/ranking", "Service",
		"Service top segments for one year",
		"Ranks the segments with the highest yearly volume or revenue"),
		s.handleServiceRanking)
}

// onDemandOperation describes a rate limited POST that computes and stores a view.
func (s *Server) onDemandOperation(id, path, tag, summary, description string) huma.Operation {
	return huma.Operation{
		OperationID: id,
		Method:      http.MethodPost,
		Path:        path,
		Summary:     summary,
		Description: description,
		Tags:        []string{tag},
		Middlewares: huma.Middlewares{s.limitWrites},
	}
}

// === DTOs ===

// CommerceYearlyRequest selects the yearly commerce totals.
type CommerceYearlyRequest struct {
	Metric string `json:"metric" enum:"volume,revenue_expense" validate:"required,oneof=volume revenue_expense" doc:"volume or revenue_expense"`
}

// CommerceYearlyInput wraps CommerceYearlyRequest for Huma.
type CommerceYearlyInput struct {
	Body CommerceYearlyRequest
}

// CommerceYearRequest selects a commerce snapshot.
type CommerceYearRequest struct {
	Year string `json:"year" validate:"required,year" doc:"Four digit year"`
	View string `json:"view" enum:"division,ranking,revenue_expense" validate:"required,oneof=division ranking revenue_expense" doc:"Snapshot kind"`
}

// CommerceYearInput wraps CommerceYearRequest for Huma.
type CommerceYearInput struct {
	Body CommerceYearRequest
}

// IndustryProductionRequest selects an activity's production in one year.
type IndustryProductionRequest struct {
	Year     string `json:"year" validate:"required,year" doc:"Four digit year"`
	Activity string `json:"activity" validate:"required,label" doc:"Activity label as listed by /classifications/industry/activity"`
}

// IndustryProductionInput wraps IndustryProductionRequest for Huma.
type IndustryProductionInput struct {
	Body IndustryProductionRequest
}

// IndustryRevenueRequest selects a CNAE activity.
type IndustryRevenueRequest struct {
	Activity string `json:"activity" validate:"required,label" doc:"Activity label as listed by /classifications/industry/activity_cnae"`
}

// IndustryRevenueInput wraps IndustryRevenueRequest for Huma.
type IndustryRevenueInput struct {
	Body IndustryRevenueRequest
}

// ServiceMonthlyRequest selects a segment's monthly series in one year.
type ServiceMonthlyRequest struct {
	Metric  string `json:"metric" enum:"volume,revenue" validate:"required,oneof=volume revenue" doc:"volume or revenue"`
	Year    string `json:"year" validate:"required,year" doc:"Four digit year"`
	Segment string `json:"segment" validate:"required,label" doc:"Segment label as listed by /classifications/service/segment"`
}

// ServiceMonthlyInput wraps ServiceMonthlyRequest for Huma.
type ServiceMonthlyInput struct {
	Body ServiceMonthlyRequest
}

// ServiceRankingRequest selects the top segments of a year.
type ServiceRankingRequest struct {
	Metric string `json:"metric" enum:"volume,revenue" validate:"required,oneof=volume revenue" doc:"volume or revenue"`
	Year   string `json:"year" validate:"required,year" doc:"Four digit year"`
	TopN   int    `json:"top_n" validate:"gte=1,lte=100" doc:"Number of segments"`
}

// ServiceRankingInput wraps ServiceRankingRequest for Huma.
type ServiceRankingInput struct {
	Body ServiceRankingRequest
}

// ComputedOutput returns the stored document of an on-demand view.
type ComputedOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         docstore.Document
}

// === Handlers ===

func (s *Server) handleCommerceYearly(ctx context.Context, input *CommerceYearlyInput) (*ComputedOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	if input.Body.Metric == "volume" {
		return computed(s.deps.OnDemand.CommerceVolumeYearly(ctx))
	}
	return computed(s.deps.OnDemand.CommerceRevenueExpenseYearly(ctx))
}

func (s *Server) handleCommerceYear(ctx context.Context, input *CommerceYearInput) (*ComputedOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	switch input.Body.View {
	case "division":
		return computed(s.deps.OnDemand.CommerceDivisionForYear(ctx, input.Body.Year))
	case "ranking":
		return computed(s.deps.OnDemand.CommerceRankingForYear(ctx, input.Body.Year))
	default:
		return computed(s.deps.OnDemand.CommerceRevenueExpenseForYear(ctx, input.Body.Year))
	}
}

func (s *Server) handleIndustryProduction(ctx context.Context, input *IndustryProductionInput) (*ComputedOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	return computed(s.deps.OnDemand.IndustryProductionForYear(ctx, input.Body.Year, input.Body.Activity))
}

func (s *Server) handleIndustryRevenue(ctx context.Context, input *IndustryRevenueInput) (*ComputedOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	return computed(s.deps.OnDemand.IndustryRevenueForActivity(ctx, input.Body.Activity))
}

func (s *Server) handleServiceMonthly(ctx context.Context, input *ServiceMonthlyInput) (*ComputedOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	metric := aggregate.ServiceMetric(input.Body.Metric)
	return computed(s.deps.OnDemand.ServiceMonthlyForYear(ctx, metric, input.Body.Year, input.Body.Segment))
}

func (s *Server) handleServiceRanking(ctx context.Context, input *ServiceRankingInput) (*ComputedOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	metric := aggregate.ServiceMetric(input.Body.Metric)
	return computed(s.deps.OnDemand.ServiceTopN(ctx, metric, input.Body.Year, input.Body.TopN))
}

func computed(doc docstore.Document, err error) (*ComputedOutput, error) {
	if err != nil {
		return nil, err
	}
	return &ComputedOutput{CacheControl: CacheNoStore, Body: doc}, nil
}
