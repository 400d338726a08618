// Package sse streams pipeline run events to connected clients as
// Server-Sent Events.
package sse

import (
	"time"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventPipelineStarted is sent when a pipeline run begins.
	EventPipelineStarted EventType = "pipeline.started"
	// EventPipelineCompleted is sent once a run's report is stored and its
	// views are readable.
	EventPipelineCompleted EventType = "pipeline.completed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message on the stream.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// RunStartedData is the payload of EventPipelineStarted.
type RunStartedData struct {
	RunID     string    `json:"run_id"`
	Trigger   string    `json:"trigger"`
	StartedAt time.Time `json:"started_at"`
}

// RunCompletedData is the payload of EventPipelineCompleted.
type RunCompletedData struct {
	RunID       string                `json:"run_id"`
	Trigger     string                `json:"trigger"`
	Status      pipeline.Status       `json:"status"`
	FinishedAt  time.Time             `json:"finished_at"`
	Failures    int                   `json:"failures"`
	Collections aggregate.Collections `json:"collections"`
}

// NewRunStartedEvent builds the event for a run that just began.
func NewRunStartedEvent(r *pipeline.Report) Event {
	return Event{
		Type:      EventPipelineStarted,
		Timestamp: time.Now(),
		Data: RunStartedData{
			RunID:     r.ID,
			Trigger:   r.Trigger,
			StartedAt: r.StartedAt,
		},
	}
}

// NewRunCompletedEvent builds the event for a finished run. Failures counts
// failed stages and views.
func NewRunCompletedEvent(r *pipeline.Report) Event {
	failures := 0
	for _, s := range r.Stages {
		if s.Status == pipeline.StatusFailed {
			failures++
		}
	}
	for _, v := range r.Views {
		if !v.OK() {
			failures++
		}
	}

	return Event{
		Type:      EventPipelineCompleted,
		Timestamp: time.Now(),
		Data: RunCompletedData{
			RunID:       r.ID,
			Trigger:     r.Trigger,
			Status:      r.Status,
			FinishedAt:  r.FinishedAt,
			Failures:    failures,
			Collections: r.Collections,
		},
	}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data:      struct{}{},
	}
}
