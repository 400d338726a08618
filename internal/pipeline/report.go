package pipeline

import (
	"time"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
)

// Status is the outcome of a stage or a whole run.
type Status string

// Run and stage statuses.
const (
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Stage names.
const (
	StageFetch     = "fetch"
	StagePopulate  = "populate"
	StageAggregate = "aggregate"
)

// Run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
	TriggerCLI      = "cli"
)

// StageOutcome records one stage of one sector.
type StageOutcome struct {
	Sector     string `json:"sector"`
	Stage      string `json:"stage"`
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
	Rows       int    `json:"rows,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Report describes a pipeline run.
type Report struct {
	ID          string                 `json:"id"`
	Trigger     string                 `json:"trigger"`
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	Stages      []StageOutcome         `json:"stages"`
	Views       []aggregate.ViewResult `json:"views"`
	Collections aggregate.Collections  `json:"collections"`
}

// Failed reports whether any stage or view failed.
func (r *Report) Failed() bool {
	return r.Status != StatusSucceeded
}

// summarize derives the run status from its stages and views.
func (r *Report) summarize() {
	total, failed := 0, 0
	for _, s := range r.Stages {
		total++
		if s.Status == StatusFailed || s.Status == StatusSkipped {
			failed++
		}
	}
	for _, v := range r.Views {
		total++
		if v.Error != "" {
			failed++
		}
	}

	switch {
	case failed == 0:
		r.Status = StatusSucceeded
	case failed == total || !r.anyViewWritten():
		r.Status = StatusFailed
	default:
		r.Status = StatusPartial
	}
}

func (r *Report) anyViewWritten() bool {
	for _, v := range r.Views {
		if v.Error == "" {
			return true
		}
	}
	return false
}
