package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nihalnihalani/EnrichedMMCP/internal/config"
	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/internal/shared/testutil"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts"
)

const datasetCSV = `Unnamed: 0,Date,Apple_Price,Tesla_Price,Gold_Price
0,2024-01-01,100,200,2000
1,2024-01-02,102,198,2010
2,2024-01-03,105,194,2020
`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market.csv")
	require.NoError(t, os.WriteFile(path, []byte(datasetCSV), 0o600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "memory"
	cfg.Cache.Backend = "memory"
	cfg.Security.RateLimit.Enabled = false
	cfg.Ingest.Source = writeDataset(t)
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	app, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { app.closeResources(context.Background()) })
	return app
}

func request(t *testing.T, app *Application, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]interface{}
	if strings.Contains(rec.Header().Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestApplication_Routes(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	assert.Nil(t, app.Scheduler)

	res, err := app.Loader.Load(context.Background(), app.Config.Ingest.Source)
	require.NoError(t, err)
	require.Equal(t, 3, res.Rows)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		check      func(t *testing.T, rec *httptest.ResponseRecorder, body map[string]interface{})
	}{
		{
			name: "index", method: http.MethodGet, target: "/", wantStatus: http.StatusOK,
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]interface{}) {
				assert.Equal(t, contracts.Name, body["name"])
				assert.NotEmpty(t, body["endpoints"])
			},
		},
		{
			name: "latest prices", method: http.MethodGet, target: "/api/latest-prices", wantStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, body map[string]interface{}) {
				assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
				assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
				prices := body["prices"].(map[string]interface{})
				assert.Equal(t, 105.0, prices["AAPL"])
			},
		},
		{
			name: "historical analysis", method: http.MethodGet, target: "/api/historical-analysis?symbol=tsla&days=30", wantStatus: http.StatusOK,
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]interface{}) {
				assert.Equal(t, "TSLA", body["symbol"])
				assert.Equal(t, -3.0, body["price_change_pct"])
			},
		},
		{
			name: "readiness", method: http.MethodGet, target: "/api/health/ready", wantStatus: http.StatusOK,
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]interface{}) {
				assert.Equal(t, "ready", body["status"])
			},
		},
		{
			name: "version", method: http.MethodGet, target: "/api/version", wantStatus: http.StatusOK,
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]interface{}) {
				assert.Equal(t, contracts.Version, body["version"])
			},
		},
		{
			name: "tool definitions", method: http.MethodGet, target: "/tools", wantStatus: http.StatusOK,
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]interface{}) {
				assert.Len(t, body["tools"], 6)
			},
		},
		{
			name: "unknown route", method: http.MethodGet, target: "/api/nope", wantStatus: http.StatusNotFound,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, _ map[string]interface{}) {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			},
		},
		{
			name: "wrong method", method: http.MethodPost, target: "/api/latest-prices", wantStatus: http.StatusMethodNotAllowed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := request(t, app, tt.method, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, rec, body)
			}
		})
	}
}

func TestApplication_Metrics(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	_, err := app.Loader.Load(context.Background(), app.Config.Ingest.Source)
	require.NoError(t, err)
	request(t, app, http.MethodGet, "/api/latest-prices")

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "market_ingest_runs")
	assert.Contains(t, rec.Body.String(), `route="/api/latest-prices"`)
}

func TestApplication_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.MetricsEnabled = false
	app := newTestApp(t, cfg)

	rec, _ := request(t, app, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApplication_AssistantNeedsKey(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/sessions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	app.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-LLM-API-Key")
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.Schedule = "whenever"

	logger, _ := testutil.NewTestLogger(t)
	_, err := New(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "invalid ingest schedule")

	var appErr *apierrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apierrors.ErrTypeConfig, appErr.Type)
	assert.Equal(t, "whenever", appErr.Context["schedule"])
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")
	t.Setenv("MARKET_SERVER_PORT", "70000")

	_, err := NewApplication(context.Background())
	assert.ErrorContains(t, err, "invalid server port")

	var appErr *apierrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apierrors.ErrTypeConfig, appErr.Type)
}

func TestServe_LoadsOnStartAndStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.Schedule = "@daily"
	cfg.Ingest.RunOnStart = true
	app := newTestApp(t, cfg)
	require.NotNil(t, app.Scheduler)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/api/latest-prices", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 3, app.Scheduler.Last().Result.Rows)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not stop")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}
