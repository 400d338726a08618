// Package pipeline runs fetch, populate and aggregate for every sector and
// records the outcome of each run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
	"github.com/gabriellymonarca/Ecotrack/internal/id"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
	"github.com/gabriellymonarca/Ecotrack/internal/sidra"
)

// Report storage.
const (
	ReportCollection = "pipeline_runs"
	latestKey        = "latest"
)

// Fetcher downloads a sector's datasets.
type Fetcher interface {
	FetchSector(ctx context.Context, sector string) (sidra.SectorData, error)
}

// Populator writes fetched observations to the relational store.
type Populator interface {
	PopulateCommerce(ctx context.Context, t relational.CommerceTables, in relational.CommerceInput) (relational.PopulateStats, error)
	PopulateIndustry(ctx context.Context, t relational.IndustryTables, in relational.IndustryInput) (relational.PopulateStats, error)
	PopulateService(ctx context.Context, t relational.ServiceTables, in relational.ServiceInput) (relational.PopulateStats, error)
}

// Aggregator builds and runs bulk views.
type Aggregator interface {
	Views(t relational.Tables, c aggregate.Collections) []aggregate.View
	Run(ctx context.Context, views []aggregate.View) []aggregate.ViewResult
}

// ReportStore persists run reports.
type ReportStore interface {
	Upsert(ctx context.Context, collection, key string, fields map[string]any) error
	Get(ctx context.Context, collection, key string) (docstore.Document, error)
}

// Hook runs after every finished pipeline run.
type Hook func(ctx context.Context, report *Report)

// Orchestrator sequences the pipeline. Concurrent Run calls share a single
// execution.
type Orchestrator struct {
	fetcher    Fetcher
	populator  Populator
	aggregator Aggregator
	reports    ReportStore
	tables     relational.Tables
	logger     *slog.Logger

	group singleflight.Group

	mu          sync.RWMutex
	collections aggregate.Collections
	latest      *Report
	hooks       []Hook
	startHooks  []Hook

	now func() time.Time
}

// New creates an orchestrator over the default table and collection names.
func New(fetcher Fetcher, populator Populator, aggregator Aggregator, reports ReportStore, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:     fetcher,
		populator:   populator,
		aggregator:  aggregator,
		reports:     reports,
		tables:      relational.DefaultTables(),
		collections: aggregate.DefaultCollections(),
		logger:      logger,
		now:         time.Now,
	}
}

// OnComplete registers a hook called after each run, once its report is stored.
func (o *Orchestrator) OnComplete(h Hook) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, h)
}

// OnStart registers a hook called when a run begins. The report passed in
// carries only the run's ID, trigger and start time.
func (o *Orchestrator) OnStart(h Hook) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startHooks = append(o.startHooks, h)
}

// Tables returns the relational table names the pipeline writes.
func (o *Orchestrator) Tables() relational.Tables {
	return o.tables
}

// Collections returns the collection names the view layer should read.
func (o *Orchestrator) Collections() aggregate.Collections {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.collections
}

// Run executes the pipeline once. A call made while a run is in progress
// waits for it and receives the same report.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*Report, error) {
	v, err, shared := o.group.Do("run", func() (any, error) {
		return o.run(ctx, trigger)
	})
	if shared {
		o.logger.Info("joined pipeline run in progress", "trigger", trigger)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (o *Orchestrator) run(ctx context.Context, trigger string) (*Report, error) {
	runID, err := id.NewRunID(o.now())
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate run id")
	}

	o.mu.RLock()
	collections := o.collections
	startHooks := append([]Hook(nil), o.startHooks...)
	o.mu.RUnlock()

	report := &Report{
		ID:          runID,
		Trigger:     trigger,
		StartedAt:   o.now().UTC(),
		Collections: collections,
	}
	logger := o.logger.With("run", runID)
	logger.Info("pipeline started", "trigger", trigger)
	for _, h := range startHooks {
		started := *report
		h(ctx, &started)
	}

	views := o.aggregator.Views(o.tables, collections)
	for _, sector := range aggregate.Sectors() {
		o.runSector(ctx, logger, report, sector, views)
	}

	report.FinishedAt = o.now().UTC()
	report.summarize()

	o.mu.Lock()
	o.collections = report.Collections
	o.latest = report
	hooks := append([]Hook(nil), o.hooks...)
	o.mu.Unlock()

	if err := o.saveReport(ctx, report); err != nil {
		logger.Error("failed to store pipeline report", "error", err)
	}
	for _, h := range hooks {
		h(context.WithoutCancel(ctx), report)
	}

	logger.Info("pipeline finished",
		"status", report.Status,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// runSector fetches, populates and aggregates one sector. A failed stage
// skips the sector's remaining stages; other sectors are unaffected.
func (o *Orchestrator) runSector(ctx context.Context, logger *slog.Logger, report *Report, sector string, views []aggregate.View) {
	logger = logger.With("sector", sector)

	start := time.Now()
	data, err := o.fetcher.FetchSector(ctx, sector)
	report.Stages = append(report.Stages, outcome(sector, StageFetch, start, rowCount(data), err))
	if err != nil {
		logger.Error("fetch failed", "error", err)
		report.Stages = append(report.Stages,
			StageOutcome{Sector: sector, Stage: StagePopulate, Status: StatusSkipped},
			StageOutcome{Sector: sector, Stage: StageAggregate, Status: StatusSkipped},
		)
		return
	}

	start = time.Now()
	stats, err := o.populate(ctx, sector, data)
	report.Stages = append(report.Stages, outcome(sector, StagePopulate, start, stats.Inserted, err))
	if err != nil {
		logger.Error("populate failed", "error", err)
		report.Stages = append(report.Stages, StageOutcome{Sector: sector, Stage: StageAggregate, Status: StatusSkipped})
		return
	}
	if stats.LookupMisses > 0 || stats.Incomplete > 0 {
		logger.Warn("populate skipped rows", "lookup_misses", stats.LookupMisses, "incomplete", stats.Incomplete)
	}

	var sectorViews []aggregate.View
	for _, v := range views {
		if v.Sector == sector {
			sectorViews = append(sectorViews, v)
		}
	}

	start = time.Now()
	results := o.aggregator.Run(ctx, sectorViews)
	report.Views = append(report.Views, results...)

	var failed []string
	documents := 0
	for _, r := range results {
		documents += r.Documents
		if !r.OK() {
			failed = append(failed, r.View)
		}
	}
	var aggErr error
	if len(failed) > 0 {
		aggErr = fmt.Errorf("%d of %d views failed: %v", len(failed), len(results), failed)
	}
	report.Stages = append(report.Stages, outcome(sector, StageAggregate, start, documents, aggErr))
}

func (o *Orchestrator) populate(ctx context.Context, sector string, data sidra.SectorData) (relational.PopulateStats, error) {
	switch sector {
	case aggregate.SectorCommerce:
		return o.populator.PopulateCommerce(ctx, o.tables.Commerce, relational.CommerceInput{
			Groups:  observations(data["group"]),
			Volume:  observations(data["volume"]),
			Revenue: observations(data["revenue"]),
			Expense: observations(data["expense"]),
		})
	case aggregate.SectorIndustry:
		return o.populator.PopulateIndustry(ctx, o.tables.Industry, relational.IndustryInput{
			Activities:     observations(data["activity"]),
			ActivitiesCNAE: observations(data["activity_cnae"]),
			Production:     observations(data["production"]),
			Revenue:        observations(data["revenue"]),
		})
	case aggregate.SectorService:
		return o.populator.PopulateService(ctx, o.tables.Service, relational.ServiceInput{
			Segments: observations(data["segment"]),
			Volume:   observations(data["volume"]),
			Revenue:  observations(data["revenue"]),
		})
	default:
		return relational.PopulateStats{}, domainerrors.Validationf("unknown sector %q", sector)
	}
}

// Latest returns the most recent report, from memory or from the store.
func (o *Orchestrator) Latest(ctx context.Context) (*Report, error) {
	o.mu.RLock()
	latest := o.latest
	o.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}

	doc, err := o.reports.Get(ctx, ReportCollection, latestKey)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "encode stored report")
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode stored report")
	}
	return &report, nil
}

func (o *Orchestrator) saveReport(ctx context.Context, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	// The report must be written even when the run's context was canceled.
	ctx = context.WithoutCancel(ctx)
	if err := o.reports.Upsert(ctx, ReportCollection, report.ID, fields); err != nil {
		return err
	}
	return o.reports.Upsert(ctx, ReportCollection, latestKey, fields)
}

func outcome(sector, stage string, start time.Time, rows int, err error) StageOutcome {
	out := StageOutcome{
		Sector:     sector,
		Stage:      stage,
		Status:     StatusSucceeded,
		Rows:       rows,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
	}
	return out
}

func rowCount(data sidra.SectorData) int {
	n := 0
	for _, obs := range data {
		n += len(obs)
	}
	return n
}

func observations(in []sidra.Observation) []relational.Observation {
	out := make([]relational.Observation, len(in))
	for i, o := range in {
		out[i] = relational.Observation{Label: o.Label, Period: o.Period, Value: o.Value}
	}
	return out
}
