package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
	"github.com/gabriellymonarca/Ecotrack/internal/sidra"
)

type fakeFetcher struct {
	calls   atomic.Int32
	fail    map[string]error
	data    map[string]sidra.SectorData
	release chan struct{}
}

func (f *fakeFetcher) FetchSector(ctx context.Context, sector string) (sidra.SectorData, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail[sector]; err != nil {
		return nil, err
	}
	return f.data[sector], nil
}

func sampleData() map[string]sidra.SectorData {
	return map[string]sidra.SectorData{
		"commerce": {
			"group":  {{Label: "2.1 Veículos", Period: "2024"}, {Label: "4.1 Supermercados", Period: "2024"}},
			"volume": {{Label: "2.1 Veículos", Period: "2023", Value: 10}, {Label: "4.1 Supermercados", Period: "2023", Value: 30}},
		},
		"industry": {
			"activity":   {{Label: "Indústria geral", Period: "dezembro 2024"}},
			"production": {{Label: "Indústria geral", Period: "janeiro 2024", Value: 101.5}},
		},
		"service": {
			"segment": {{Label: "Transportes", Period: "dezembro 2024"}},
			"volume":  {{Label: "Transportes", Period: "janeiro 2024", Value: 88}},
			"revenue": {{Label: "Transportes", Period: "janeiro 2024", Value: 95}},
		},
	}
}

type testEnv struct {
	orch    *Orchestrator
	fetcher *fakeFetcher
	docs    *docstore.Store
	rel     *relational.Store
	logger  *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rel, err := relational.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { rel.Close() })

	docs, err := docstore.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	fetcher := &fakeFetcher{data: sampleData(), fail: map[string]error{}}
	engine := aggregate.New(rel, docs, relational.DefaultTables(), logger)

	return &testEnv{
		orch:    New(fetcher, rel, engine, docs, logger),
		fetcher: fetcher,
		docs:    docs,
		rel:     rel,
		logger:  logger,
	}
}

func stagesOf(r *Report, sector string) map[string]Status {
	out := map[string]Status{}
	for _, s := range r.Stages {
		if s.Sector == sector {
			out[s.Stage] = s.Status
		}
	}
	return out
}

func TestRun_AllSectorsSucceed(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.orch.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, report.Status)
	assert.False(t, report.Failed())
	assert.Len(t, report.Views, 11)
	assert.Len(t, report.Stages, 9)
	assert.Contains(t, report.ID, "run-")
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	doc, err := env.docs.Get(context.Background(), "commerce_volume", "2023")
	require.NoError(t, err)
	assert.Equal(t, 40.0, doc["value"])
}

func TestRun_SectorFailureIsIsolated(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.fail["industry"] = errors.New("sidra fetch [t/8888]: upstream unavailable")

	report, err := env.orch.Run(context.Background(), TriggerSchedule)
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, report.Status)
	assert.Equal(t, map[string]Status{
		StageFetch:     StatusFailed,
		StagePopulate:  StatusSkipped,
		StageAggregate: StatusSkipped,
	}, stagesOf(report, "industry"))
	assert.Equal(t, StatusSucceeded, stagesOf(report, "service")[StageAggregate])

	for _, v := range report.Views {
		assert.NotEqual(t, aggregate.SectorIndustry, v.Sector)
	}

	_, err = env.docs.Get(context.Background(), "service_volume_monthly", "transportes")
	assert.NoError(t, err)
}

func TestRun_AllFetchesFail(t *testing.T) {
	env := newTestEnv(t)
	for _, s := range aggregate.Sectors() {
		env.fetcher.fail[s] = errors.New("network down")
	}

	report, err := env.orch.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.Status)
	assert.Empty(t, report.Views)
}

func TestRun_ConcurrentCallsShareOneExecution(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.release = make(chan struct{})

	var wg sync.WaitGroup
	reports := make([]*Report, 2)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := env.orch.Run(context.Background(), TriggerManual)
			assert.NoError(t, err)
			reports[i] = r
		}(i)
	}

	// Let both callers reach the flight before releasing the fetcher.
	require.Eventually(t, func() bool { return env.fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(env.fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(3), env.fetcher.calls.Load(), "one fetch per sector")
	assert.Same(t, reports[0], reports[1])
}

func TestLatest_PersistedAcrossOrchestrators(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.orch.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)

	latest, err := env.orch.Latest(context.Background())
	require.NoError(t, err)
	assert.Same(t, report, latest)

	fresh := New(env.fetcher, env.rel, aggregate.New(env.rel, env.docs, relational.DefaultTables(), env.logger), env.docs, env.logger)
	stored, err := fresh.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.ID, stored.ID)
	assert.Equal(t, report.Status, stored.Status)
	assert.Len(t, stored.Views, 11)

	_, err = env.docs.Get(context.Background(), ReportCollection, report.ID)
	assert.NoError(t, err)
}

func TestLatest_NoRunYet(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.orch.Latest(context.Background())
	assert.Error(t, err)
}

func TestCollections(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, aggregate.DefaultCollections(), env.orch.Collections())
}

func TestOnComplete_HooksReceiveReport(t *testing.T) {
	env := newTestEnv(t)

	var got []string
	env.orch.OnComplete(func(_ context.Context, r *Report) { got = append(got, "first:"+string(r.Status)) })
	env.orch.OnComplete(func(_ context.Context, r *Report) { got = append(got, "second:"+string(r.Status)) })

	_, err := env.orch.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, []string{"first:" + string(StatusSucceeded), "second:" + string(StatusSucceeded)}, got)
}

func TestOnStart_HookSeesRunBeforeStages(t *testing.T) {
	env := newTestEnv(t)

	var started *Report
	env.orch.OnStart(func(_ context.Context, r *Report) { started = r })

	report, err := env.orch.Run(context.Background(), TriggerSchedule)
	require.NoError(t, err)

	require.NotNil(t, started)
	assert.Equal(t, report.ID, started.ID)
	assert.Equal(t, TriggerSchedule, started.Trigger)
	assert.Empty(t, started.Stages)
	assert.Empty(t, string(started.Status))
}
