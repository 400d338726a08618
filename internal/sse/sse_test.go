package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
		cancel()
	})
	return m
}

func TestNewRunCompletedEvent_CountsFailures(t *testing.T) {
	report := &pipeline.Report{
		ID:      "run-1",
		Trigger: pipeline.TriggerManual,
		Status:  pipeline.StatusPartial,
		Stages: []pipeline.StageOutcome{
			{Sector: "commerce", Stage: pipeline.StageFetch, Status: pipeline.StatusSucceeded},
			{Sector: "industry", Stage: pipeline.StageFetch, Status: pipeline.StatusFailed},
			{Sector: "industry", Stage: pipeline.StagePopulate, Status: pipeline.StatusSkipped},
		},
		Views:       []aggregate.ViewResult{{View: "commerce_volume"}},
		Collections: aggregate.DefaultCollections(),
	}

	event := NewRunCompletedEvent(report)
	assert.Equal(t, EventPipelineCompleted, event.Type)

	data, ok := event.Data.(RunCompletedData)
	require.True(t, ok)
	assert.Equal(t, "run-1", data.RunID)
	assert.Equal(t, pipeline.StatusPartial, data.Status)
	assert.Equal(t, 1, data.Failures)
}

func TestManager_BroadcastsToClients(t *testing.T) {
	m := startManager(t)

	a, err := m.Connect()
	require.NoError(t, err)
	b, err := m.Connect()
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())

	m.Emit(NewRunStartedEvent(&pipeline.Report{ID: "run-2", Trigger: pipeline.TriggerSchedule}))

	for _, c := range []*Client{a, b} {
		select {
		case ev := <-c.EventChan:
			assert.Equal(t, EventPipelineStarted, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	m.Disconnect(a.ID)
	assert.Equal(t, 1, m.ClientCount())
	m.Disconnect(a.ID)
}

func TestManager_EmitAfterShutdownIsDropped(t *testing.T) {
	m := NewManager(testLogger())
	go m.Start(context.Background())

	require.NoError(t, m.Shutdown(context.Background()))
	assert.NotPanics(t, func() { m.Emit(NewHeartbeatEvent()) })
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := startManager(t)
	srv := httptest.NewServer(NewHandler(m, testLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readFrame := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return event, data
			}
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				event = v
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok {
				data = v
			}
		}
	}

	event, _ := readFrame()
	require.Equal(t, "connected", event)

	m.Emit(NewRunCompletedEvent(&pipeline.Report{ID: "run-3", Status: pipeline.StatusSucceeded}))

	event, data := readFrame()
	assert.Equal(t, string(EventPipelineCompleted), event)

	var decoded struct {
		Type EventType        `json:"type"`
		Data RunCompletedData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	assert.Equal(t, "run-3", decoded.Data.RunID)
	assert.Equal(t, pipeline.StatusSucceeded, decoded.Data.Status)
}

func TestHandler_RejectsNonGet(t *testing.T) {
	m := startManager(t)
	rec := httptest.NewRecorder()
	NewHandler(m, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
