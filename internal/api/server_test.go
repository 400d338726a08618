package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
	"github.com/gabriellymonarca/Ecotrack/internal/search"
)

type fakeRunner struct {
	tables relational.Tables
	latest *pipeline.Report
	runs   int
}

func (f *fakeRunner) Run(_ context.Context, trigger string) (*pipeline.Report, error) {
	f.runs++
	f.latest = &pipeline.Report{
		ID:          "run_test",
		Trigger:     trigger,
		Status:      pipeline.StatusSucceeded,
		StartedAt:   time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2024, 3, 1, 2, 1, 0, 0, time.UTC),
		Collections: aggregate.DefaultCollections(),
	}
	return f.latest, nil
}

func (f *fakeRunner) Latest(_ context.Context) (*pipeline.Report, error) {
	if f.latest == nil {
		return nil, domainerrors.NotFound("no pipeline run recorded")
	}
	return f.latest, nil
}

func (f *fakeRunner) Collections() aggregate.Collections { return aggregate.DefaultCollections() }

func (f *fakeRunner) Tables() relational.Tables { return f.tables }

type testServer struct {
	api    humatest.TestAPI
	server *Server
	runner *fakeRunner
}

func obs(label, period string, value float64) relational.Observation {
	return relational.Observation{Label: label, Period: period, Value: value}
}

// setupTestServer builds a server over real stores seeded with a small
// commerce and service dataset.
func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rel, err := relational.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { rel.Close() })

	docs, err := docstore.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	tables := relational.DefaultTables()

	_, err = rel.PopulateCommerce(ctx, tables.Commerce, relational.CommerceInput{
		Groups: []relational.Observation{
			obs("2.1 Veículos, motos, partes e peças", "2024", 0),
			obs("4.1 Hipermercados e supermercados", "2024", 0),
		},
		Volume: []relational.Observation{
			obs("2.1 Veículos, motos, partes e peças", "janeiro 2024", 100),
			obs("4.1 Hipermercados e supermercados", "janeiro 2024", 50),
			obs("2.1 Veículos, motos, partes e peças", "fevereiro 2024", 110),
			obs("4.1 Hipermercados e supermercados", "fevereiro 2024", 55),
		},
	})
	require.NoError(t, err)

	_, err = rel.PopulateService(ctx, tables.Service, relational.ServiceInput{
		Segments: []relational.Observation{
			obs("Serviços de informação e comunicação", "2024", 0),
			obs("Transportes, serviços auxiliares aos transportes e correio", "2024", 0),
		},
		Volume: []relational.Observation{
			obs("Serviços de informação e comunicação", "janeiro 2024", 300),
			obs("Transportes, serviços auxiliares aos transportes e correio", "janeiro 2024", 200),
		},
	})
	require.NoError(t, err)

	engine := aggregate.New(rel, docs, tables, logger)
	engine.RunAll(ctx, tables, aggregate.DefaultCollections())

	index, err := search.NewLabelIndex(search.Options{DataPath: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	_, err = index.Sync(ctx, rel, tables.Lookups())
	require.NoError(t, err)

	runner := &fakeRunner{tables: tables}
	if opts.CORSOrigins == nil {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.WritesPerMinute == 0 {
		opts.WritesPerMinute = 600
	}

	srv := NewServer(Deps{
		Documents: docs,
		Labels:    rel,
		Search:    index,
		OnDemand:  engine,
		Pipeline:  runner,
	}, opts, logger)
	t.Cleanup(srv.Close)

	return &testServer{
		api:    humatest.Wrap(t, srv.api),
		server: srv,
		runner: runner,
	}
}

// envelope is the decoded response wrapper.
type envelope struct {
	Version int             `json:"v"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func decode(t *testing.T, body []byte, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestViewRoutes_ListCollection(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/commerce/volume/series")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, CacheViews, resp.Header().Get("Cache-Control"))

	var body DocumentsResponse
	env := decode(t, resp.Body.Bytes(), &body)
	assert.True(t, env.Success)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, "commerce_volume", body.Collection)

	require.Len(t, body.Documents, 2)
	assert.Equal(t, "2024-01", body.Documents[0].ID())
	assert.Equal(t, "2024-02", body.Documents[1].ID())
}

func TestViewRoutes_EmptyCollectionIsEmptyList(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/industry/production/series")
	require.Equal(t, http.StatusOK, resp.Code)

	var body DocumentsResponse
	decode(t, resp.Body.Bytes(), &body)
	assert.NotNil(t, body.Documents)
	assert.Empty(t, body.Documents)
}

func TestViewRoutes_AllRegistered(t *testing.T) {
	ts := setupTestServer(t, Options{})

	for _, v := range viewRoutes() {
		t.Run(v.operationID, func(t *testing.T) {
			resp := ts.api.Get(v.path)
			assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		})
	}
}

func TestDocumentRoutes(t *testing.T) {
	ts := setupTestServer(t, Options{})

	t.Run("get document", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/collections/commerce_division/2024-01")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var doc docstore.Document
		decode(t, resp.Body.Bytes(), &doc)
		assert.Equal(t, "2024-01", doc.ID())
	})

	t.Run("missing document", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/collections/commerce_division/1999-01")
		require.Equal(t, http.StatusNotFound, resp.Code)

		env := decode(t, resp.Body.Bytes(), nil)
		assert.False(t, env.Success)
		assert.Equal(t, string(domainerrors.CodeNotFound), env.Code)
		assert.NotEmpty(t, env.Error)
	})

	t.Run("list collections", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/collections")
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Collections []docstore.CollectionInfo `json:"collections"`
		}
		decode(t, resp.Body.Bytes(), &body)
		assert.Contains(t, body.Collections, docstore.CollectionInfo{Name: "commerce_volume", Documents: 2})
	})
}

func TestClassificationRoutes(t *testing.T) {
	ts := setupTestServer(t, Options{})

	t.Run("list labels", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/classifications/service/segment")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var body struct {
			Labels []ClassificationLabel `json:"labels"`
		}
		decode(t, resp.Body.Bytes(), &body)
		assert.Contains(t, body.Labels, ClassificationLabel{
			Label: "Serviços de informação e comunicação",
			Slug:  "servicos_de_informacao_e_comunicacao",
		})
	})

	t.Run("unknown kind", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/classifications/service/group")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("search", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/classifications/search?q=transportes&sector=service")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var result search.Result
		decode(t, resp.Body.Bytes(), &result)
		require.NotEmpty(t, result.Hits)
		assert.Equal(t, "transportes,_servicos_auxiliares_aos_transportes_e_correio", result.Hits[0].Slug)
	})
}

func TestOnDemandRoutes(t *testing.T) {
	ts := setupTestServer(t, Options{})

	t.Run("service ranking", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/service/ranking", map[string]any{
			"metric": "volume", "year": "2024", "top_n": 1,
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, CacheNoStore, resp.Header().Get("Cache-Control"))

		var doc struct {
			ID   string                `json:"_id"`
			Data []aggregate.RankEntry `json:"data"`
		}
		decode(t, resp.Body.Bytes(), &doc)
		assert.Equal(t, "2024:1", doc.ID)
		require.Len(t, doc.Data, 1)
		assert.Equal(t, "Serviços de informação e comunicação", doc.Data[0].Name)
	})

	t.Run("commerce yearly volume", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/commerce/yearly", map[string]any{"metric": "volume"})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var doc struct {
			Data map[string]float64 `json:"data"`
		}
		decode(t, resp.Body.Bytes(), &doc)
		assert.InDelta(t, 315.0, doc.Data["2024"], 1e-9)
	})

	t.Run("invalid year", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/commerce/year", map[string]any{"year": "24", "view": "division"})
		require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

		env := decode(t, resp.Body.Bytes(), nil)
		assert.Equal(t, string(domainerrors.CodeValidation), env.Code)
		assert.Contains(t, string(env.Details), "must be a four digit year")
	})

	t.Run("unknown segment", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/service/monthly", map[string]any{
			"metric": "volume", "year": "2024", "segment": "Serviços imaginários",
		})
		assert.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())
	})

	t.Run("schema violation", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/service/ranking", map[string]any{
			"metric": "count", "year": "2024", "top_n": 1,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

		env := decode(t, resp.Body.Bytes(), nil)
		assert.False(t, env.Success)
		assert.Equal(t, string(domainerrors.CodeValidation), env.Code)
	})
}

func TestPipelineRoutes(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/pipeline/runs/latest")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post("/api/v1/pipeline/runs")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var report pipeline.Report
	decode(t, resp.Body.Bytes(), &report)
	assert.Equal(t, "run_test", report.ID)
	assert.Equal(t, pipeline.TriggerManual, report.Trigger)
	assert.Equal(t, 1, ts.runner.runs)

	resp = ts.api.Get("/api/v1/pipeline/runs/latest")
	require.Equal(t, http.StatusOK, resp.Code)
	decode(t, resp.Body.Bytes(), &report)
	assert.Equal(t, pipeline.StatusSucceeded, report.Status)
}

func TestWriteRateLimit(t *testing.T) {
	ts := setupTestServer(t, Options{WritesPerMinute: 1})

	resp := ts.api.Post("/api/v1/pipeline/runs")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/pipeline/runs")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, 1, ts.runner.runs)

	// Reads are not limited.
	resp = ts.api.Get("/api/v1/pipeline/runs/latest")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCORS(t *testing.T) {
	ts := setupTestServer(t, Options{CORSOrigins: []string{"https://dashboard.example"}})

	resp := ts.api.Get("/api/v1/commerce/ranking", "Origin: https://dashboard.example")
	assert.Equal(t, "https://dashboard.example", resp.Header().Get("Access-Control-Allow-Origin"))

	resp = ts.api.Get("/api/v1/commerce/ranking", "Origin: https://elsewhere.example")
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestPipelineEventsRoute(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: connected\ndata: {}\n\n"))
	})

	srv := NewServer(Deps{Events: stream}, Options{CORSOrigins: []string{"*"}}, logger)
	defer srv.Close()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pipeline/events", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: connected")

	without := NewServer(Deps{}, Options{CORSOrigins: []string{"*"}}, logger)
	defer without.Close()

	rec = httptest.NewRecorder()
	without.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pipeline/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
