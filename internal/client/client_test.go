package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
	"github.com/nihalnihalani/EnrichedMMCP/internal/services"
	"github.com/nihalnihalani/EnrichedMMCP/internal/shared/testutil"
	"github.com/nihalnihalani/EnrichedMMCP/internal/storage"
	"github.com/nihalnihalani/EnrichedMMCP/internal/tools"
	httpapi "github.com/nihalnihalani/EnrichedMMCP/internal/transport/http"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// newAPI serves the market and tool routes over the standard fixture rows.
func newAPI(t *testing.T) *Client {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)

	svc := services.NewMarketService(storage.NewMemoryStore(testutil.MarketRows()...), nil, nil, services.MarketConfig{}, logger)
	marketHandler := httpapi.NewMarketHandler(svc, httpapi.MarketHandlerConfig{}, logger, errorHandler)
	toolsHandler := httpapi.NewToolsHandler(tools.Definitions(market.Default()), tools.NewDispatcher(svc, logger), nil, logger, errorHandler)

	r := chi.NewRouter()
	r.Mount("/api", marketHandler.Routes())
	r.Mount("/tools", toolsHandler.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", Options{Retries: -1})
}

func TestClient_Market(t *testing.T) {
	c := newAPI(t)
	ctx := context.Background()

	latest, err := c.LatestPrices(ctx)
	require.NoError(t, err)
	assert.True(t, testutil.FixtureStart.AddDate(0, 0, 4).Equal(latest.Date))
	require.NotNil(t, latest.Prices["AAPL"])
	assert.Equal(t, 105.0, *latest.Prices["AAPL"])

	instruments, err := c.Instruments(ctx)
	require.NoError(t, err)
	require.Len(t, instruments, len(market.Default().Describe()))
	assert.Equal(t, "AAPL", instruments[0].Symbol)

	page, err := c.ListRows(ctx, domain.RowFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, int64(2), page.Data[0].ID)

	from := testutil.FixtureStart.AddDate(0, 0, 3)
	page, err = c.ListRows(ctx, domain.RowFilter{DateGte: &from})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	row, err := c.GetRow(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row.ID)
}

func TestClient_Analysis(t *testing.T) {
	c := newAPI(t)
	ctx := context.Background()

	res, err := c.HistoricalAnalysis(ctx, "AAPL", 30)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, 5.0, res.PriceChangePct)
	assert.Equal(t, 5, res.DataPoints)

	cmp, err := c.Compare(ctx, []string{"AAPL", "TSLA", "NOPE"}, 0)
	require.NoError(t, err)
	assert.Len(t, cmp.Results, 2)
	require.Len(t, cmp.Failures, 1)
	assert.Equal(t, "NOPE", cmp.Failures[0].Symbol)
	assert.Equal(t, "AAPL", cmp.BestPerformer.Symbol)
	assert.Equal(t, "TSLA", cmp.WorstPerformer.Symbol)
}

func TestClient_Problems(t *testing.T) {
	c := newAPI(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func() error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown symbol",
			call:       func() error { _, err := c.HistoricalAnalysis(ctx, "XYZ", 30); return err },
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.CodeUnknownSymbol,
		},
		{
			name:       "window out of range",
			call:       func() error { _, err := c.HistoricalAnalysis(ctx, "AAPL", -1); return err },
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.CodeValidation,
		},
		{
			name:       "missing row",
			call:       func() error { _, err := c.GetRow(ctx, 999); return err },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown tool",
			call:       func() error { _, err := c.CallTool(ctx, "get_weather", nil); return err },
			wantStatus: http.StatusNotFound,
			wantCode:   apierrors.CodeUnknownTool,
		},
		{
			name:       "assistant disabled",
			call:       func() error { _, err := c.OpenSession(ctx); return err },
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apierrors.CodeUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var problem *Problem
			require.True(t, errors.As(err, &problem), "got %v", err)
			assert.Equal(t, tt.wantStatus, problem.Status)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, problem.ErrorCode)
			}
			assert.NotEmpty(t, problem.Error())
		})
	}
}

func TestClient_Tools(t *testing.T) {
	c := newAPI(t)
	ctx := context.Background()

	defs, err := c.Tools(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 6)

	raw, err := c.CallTool(ctx, tools.ToolHistoricalAnalysis, map[string]interface{}{"symbol": "TSLA", "days": 30})
	require.NoError(t, err)
	var res domain.AnalysisResult
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, "TSLA", res.Symbol)
	assert.Equal(t, -3.0, res.PriceChangePct)
}

func TestClient_Sessions(t *testing.T) {
	var deleted atomic.Bool
	r := chi.NewRouter()
	r.Post("/tools/sessions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-user", r.Header.Get("X-LLM-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"session_id":"s-1","created_at":"2024-01-01T00:00:00Z"}`))
	})
	r.Post("/tools/sessions/{id}/ask", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"session_id": chi.URLParam(r, "id"),
			"answer":     "You asked: " + body["question"],
		})
	})
	r.Delete("/tools/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(srv.URL, Options{LLMAPIKey: "sk-user", Retries: -1})
	ctx := context.Background()

	id, err := c.OpenSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	answer, err := c.Ask(ctx, id, "How did gold do?")
	require.NoError(t, err)
	assert.Equal(t, "You asked: How did gold do?", answer)

	require.NoError(t, c.CloseSession(ctx, id))
	assert.True(t, deleted.Load())
}

func TestClient_RetriesGets(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Options{Retries: 2, Timeout: 5 * time.Second})
	status, err := c.Ready(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, Options{Retries: -1}).LatestPrices(context.Background())
	var problem *Problem
	require.True(t, errors.As(err, &problem))
	assert.Equal(t, http.StatusInternalServerError, problem.Status)
	assert.Equal(t, "upstream exploded", problem.Detail)
}
