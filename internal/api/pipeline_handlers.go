package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
)

func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "runPipeline",
		Method:      http.MethodPost,
		Path:        "/api/v1/pipeline/runs",
		Summary:     "Run pipeline",
		Description: "Fetches, populates and aggregates every sector and returns the run report. " +
			"A request made while a run is in progress waits for it and receives the same report.",
		Tags:        []string{"Pipeline"},
		Middlewares: huma.Middlewares{s.limitWrites},
	}, s.handleRunPipeline)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLatestRun",
		Method:      http.MethodGet,
		Path:        "/api/v1/pipeline/runs/latest",
		Summary:     "Latest run",
		Description: "Returns the report of the most recent pipeline run",
		Tags:        []string{"Pipeline"},
	}, s.handleLatestRun)

	// The event stream is plain text/event-stream, outside the JSON envelope.
	if s.deps.Events != nil {
		s.router.Get("/api/v1/pipeline/events", s.deps.Events.ServeHTTP)
	}
}

// RunOutput wraps a run report for Huma.
type RunOutput struct {
	Body *pipeline.Report
}

func (s *Server) handleRunPipeline(ctx context.Context, _ *struct{}) (*RunOutput, error) {
	// A client hanging up must not abort a run other callers may share.
	report, err := s.deps.Pipeline.Run(context.WithoutCancel(ctx), pipeline.TriggerManual)
	if err != nil {
		return nil, err
	}
	s.logger.Info("manual pipeline run finished", "run", report.ID, "status", report.Status)
	return &RunOutput{Body: report}, nil
}

func (s *Server) handleLatestRun(ctx context.Context, _ *struct{}) (*RunOutput, error) {
	report, err := s.deps.Pipeline.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return &RunOutput{Body: report}, nil
}
