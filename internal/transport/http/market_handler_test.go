package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nihalnihalani/EnrichedMMCP/internal/analysis"
	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/internal/shared/testutil"
	"github.com/nihalnihalani/EnrichedMMCP/internal/storage"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// MockMarketService is a mock implementation of MarketService
type MockMarketService struct {
	mock.Mock
}

func (m *MockMarketService) Instruments() []domain.Instrument {
	return m.Called().Get(0).([]domain.Instrument)
}

func (m *MockMarketService) LatestPrices(ctx context.Context) (domain.LatestPrices, error) {
	args := m.Called()
	return args.Get(0).(domain.LatestPrices), args.Error(1)
}

func (m *MockMarketService) MarketOverview(ctx context.Context) (domain.MarketOverview, error) {
	args := m.Called()
	return args.Get(0).(domain.MarketOverview), args.Error(1)
}

func (m *MockMarketService) ListRows(ctx context.Context, filter domain.RowFilter) ([]domain.DailyRow, int, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.DailyRow), args.Int(1), args.Error(2)
}

func (m *MockMarketService) GetRow(ctx context.Context, id int64) (domain.DailyRow, error) {
	args := m.Called(id)
	return args.Get(0).(domain.DailyRow), args.Error(1)
}

func (m *MockMarketService) HistoricalAnalysis(ctx context.Context, symbol string, days int) (domain.AnalysisResult, error) {
	args := m.Called(symbol, days)
	return args.Get(0).(domain.AnalysisResult), args.Error(1)
}

func (m *MockMarketService) Compare(ctx context.Context, symbols []string, days int) (domain.ComparisonResult, error) {
	args := m.Called(symbols, days)
	return args.Get(0).(domain.ComparisonResult), args.Error(1)
}

func newMarketRouter(t *testing.T, svc MarketService) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewMarketHandler(svc, MarketHandlerConfig{}, logger, apierrors.NewErrorHandler(logger, false))
	r := chi.NewRouter()
	r.Mount("/api", h.Routes())
	return r
}

func doGet(t *testing.T, handler http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestMarketHandler_LatestPrices(t *testing.T) {
	day := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		result     domain.LatestPrices
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "success",
			result:     domain.LatestPrices{Date: day, Prices: map[string]*float64{"AAPL": domain.Float(185.5)}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty store",
			err:        fmt.Errorf("latest prices: %w", analysis.ErrNoDataAvailable),
			wantStatus: http.StatusNotFound,
			wantType:   apierrors.TypeNoData,
		},
		{
			name:       "store failure",
			err:        fmt.Errorf("load latest row: %w", storage.ErrEmpty),
			wantStatus: http.StatusInternalServerError,
			wantType:   apierrors.TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockMarketService)
			svc.On("LatestPrices").Return(tt.result, tt.err)

			rec, body := doGet(t, newMarketRouter(t, svc), "/api/latest-prices")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, body["type"])
				assert.Equal(t, "/api/latest-prices", body["instance"])
			} else {
				assert.Equal(t, 185.5, body["prices"].(map[string]interface{})["AAPL"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestMarketHandler_HistoricalAnalysis(t *testing.T) {
	result := domain.AnalysisResult{
		Symbol:         "AAPL",
		CurrentPrice:   103.14159,
		StartPrice:     100,
		PriceChange:    3.14159,
		PriceChangePct: 3.14159,
		PeriodDays:     7,
		DataPoints:     5,
	}

	tests := []struct {
		name       string
		query      string
		setup      func(m *MockMarketService)
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{
			name:  "rounds percent for display",
			query: "symbol=AAPL&days=7",
			setup: func(m *MockMarketService) {
				m.On("HistoricalAnalysis", "AAPL", 7).Return(result, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, 3.14, body["price_change_pct"])
				assert.Equal(t, 3.14159, body["price_change"])
			},
		},
		{
			name:  "default window",
			query: "symbol=aapl",
			setup: func(m *MockMarketService) {
				m.On("HistoricalAnalysis", "aapl", DefaultDays).Return(result, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing symbol",
			query:      "days=7",
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, apierrors.CodeValidation, body["error_code"])
			},
		},
		{
			name:       "zero days",
			query:      "symbol=AAPL&days=0",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "days above maximum",
			query:      "symbol=AAPL&days=3651",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "unknown symbol",
			query: "symbol=XYZ",
			setup: func(m *MockMarketService) {
				m.On("HistoricalAnalysis", "XYZ", DefaultDays).Return(domain.AnalysisResult{},
					&analysis.SymbolError{Symbol: "XYZ", Reason: analysis.ReasonUnknownSymbol, Err: analysis.ErrUnknownSymbol})
			},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, apierrors.TypeUnknownSymbol, body["type"])
				assert.Equal(t, "XYZ", body["symbol"])
				assert.Contains(t, body["accepted_symbols"], "SPY")
			},
		},
		{
			name:  "no prices in window",
			query: "symbol=GOLD",
			setup: func(m *MockMarketService) {
				m.On("HistoricalAnalysis", "GOLD", DefaultDays).Return(domain.AnalysisResult{},
					&analysis.SymbolError{Symbol: "GOLD", Reason: analysis.ReasonNoPrices, Err: analysis.ErrNoDataAvailable})
			},
			wantStatus: http.StatusNotFound,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, analysis.ReasonNoPrices, body["reason"])
			},
		},
		{
			name:  "deadline exceeded",
			query: "symbol=GOLD",
			setup: func(m *MockMarketService) {
				m.On("HistoricalAnalysis", "GOLD", DefaultDays).Return(domain.AnalysisResult{},
					fmt.Errorf("load window: %w", context.DeadlineExceeded))
			},
			wantStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockMarketService)
			if tt.setup != nil {
				tt.setup(svc)
			}

			rec, body := doGet(t, newMarketRouter(t, svc), "/api/historical-analysis?"+tt.query)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.check != nil {
				tt.check(t, body)
			}
			svc.AssertExpectations(t)
			if tt.setup == nil {
				svc.AssertNotCalled(t, "HistoricalAnalysis", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestMarketHandler_Compare(t *testing.T) {
	comparison := domain.ComparisonResult{
		PeriodDays:       30,
		AverageChangePct: 1.005,
		BestPerformer:    domain.RankedMove{Symbol: "AAPL", PriceChangePct: 5.004},
		WorstPerformer:   domain.RankedMove{Symbol: "TSLA", PriceChangePct: -2.996},
		SectorAverages:   map[string]float64{"tech": 1.005},
	}

	t.Run("comma separated and repeated", func(t *testing.T) {
		svc := new(MockMarketService)
		svc.On("Compare", []string{"AAPL", "TSLA", "GOLD"}, 30).Return(comparison, nil)

		rec, body := doGet(t, newMarketRouter(t, svc), "/api/compare?symbols=AAPL,%20TSLA&symbols=GOLD")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1.01, body["average_change_pct"])
		assert.Equal(t, 5.0, body["best_performer"].(map[string]interface{})["price_change_pct"])
		assert.Equal(t, -3.0, body["worst_performer"].(map[string]interface{})["price_change_pct"])
		svc.AssertExpectations(t)
	})

	t.Run("missing symbols", func(t *testing.T) {
		svc := new(MockMarketService)
		rec, body := doGet(t, newMarketRouter(t, svc), "/api/compare?days=10")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		details := body["details"].(map[string]interface{})["errors"].([]interface{})
		require.Len(t, details, 1)
		assert.Equal(t, "symbols", details[0].(map[string]interface{})["field"])
		svc.AssertNotCalled(t, "Compare", mock.Anything, mock.Anything)
	})

	t.Run("blank symbol", func(t *testing.T) {
		svc := new(MockMarketService)
		rec, _ := doGet(t, newMarketRouter(t, svc), "/api/compare?symbols=AAPL,,TSLA")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("all symbols failed", func(t *testing.T) {
		svc := new(MockMarketService)
		cmpErr := &analysis.ComparisonError{Failures: []domain.SymbolFailure{
			{Symbol: "XYZ", Reason: analysis.ReasonUnknownSymbol},
			{Symbol: "ABC", Reason: analysis.ReasonUnknownSymbol},
		}}
		svc.On("Compare", []string{"XYZ", "ABC"}, 7).Return(domain.ComparisonResult{}, cmpErr)

		rec, body := doGet(t, newMarketRouter(t, svc), "/api/compare?symbols=XYZ,ABC&days=7")

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, apierrors.TypeNoValidSymbols, body["type"])
		assert.Len(t, body["failures"], 2)
	})
}

func TestMarketHandler_ListRows(t *testing.T) {
	rows := testutil.MarketRows()

	t.Run("filter and page", func(t *testing.T) {
		svc := new(MockMarketService)
		svc.On("ListRows", mock.MatchedBy(func(f domain.RowFilter) bool {
			return f.Limit == 2 && f.Offset == 1 &&
				f.DateGte != nil && f.DateGte.Equal(testutil.FixtureStart.AddDate(0, 0, 1)) &&
				f.DateEq == nil && f.DateLte == nil
		})).Return(rows[2:4], 4, nil)

		rec, body := doGet(t, newMarketRouter(t, svc), "/api/stock-datas?limit=2&offset=1&date_gte=2024-01-02")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["data"], 2)
		assert.Equal(t, 4.0, body["total"])
		assert.Equal(t, 2.0, body["limit"])
		assert.Equal(t, 1.0, body["offset"])
		svc.AssertExpectations(t)
	})

	t.Run("defaults", func(t *testing.T) {
		svc := new(MockMarketService)
		svc.On("ListRows", domain.RowFilter{Limit: 100}).Return(rows, len(rows), nil)

		rec, body := doGet(t, newMarketRouter(t, svc), "/api/stock-datas")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5.0, body["total"])
	})

	for _, query := range []string{"limit=0", "limit=1001", "offset=-1", "date_eq=2024-13-01", "limit=ten"} {
		t.Run("rejects "+query, func(t *testing.T) {
			svc := new(MockMarketService)
			rec, body := doGet(t, newMarketRouter(t, svc), "/api/stock-datas?"+query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apierrors.CodeValidation, body["error_code"])
			svc.AssertNotCalled(t, "ListRows", mock.Anything)
		})
	}
}

func TestMarketHandler_GetRow(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		setup      func(m *MockMarketService)
		wantStatus int
	}{
		{
			name: "found",
			path: "/api/stock-datas/3",
			setup: func(m *MockMarketService) {
				m.On("GetRow", int64(3)).Return(testutil.MarketRows()[2], nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "missing",
			path: "/api/stock-datas/99",
			setup: func(m *MockMarketService) {
				m.On("GetRow", int64(99)).Return(domain.DailyRow{}, fmt.Errorf("row 99: %w", storage.ErrRowNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{name: "not a number", path: "/api/stock-datas/abc", wantStatus: http.StatusBadRequest},
		{name: "zero", path: "/api/stock-datas/0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockMarketService)
			if tt.setup != nil {
				tt.setup(svc)
			}
			rec, _ := doGet(t, newMarketRouter(t, svc), tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestMarketHandler_OverviewAndInstruments(t *testing.T) {
	svc := new(MockMarketService)
	svc.On("MarketOverview").Return(domain.MarketOverview{
		WindowRows: 30,
		Statistics: map[string]domain.ColumnStats{domain.ColGoldPrice: {Latest: 2004, Avg: 2002, Min: 2000, Max: 2004}},
	}, nil)
	svc.On("Instruments").Return([]domain.Instrument{{Symbol: "AAPL"}, {Symbol: "GOLD"}})
	router := newMarketRouter(t, svc)

	rec, body := doGet(t, router, "/api/market-overview")
	assert.Equal(t, http.StatusOK, rec.Code)
	gold := body["statistics"].(map[string]interface{})[domain.ColGoldPrice].(map[string]interface{})
	assert.Equal(t, 2002.0, gold["avg_30d"])

	rec, body = doGet(t, router, "/api/instruments")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["count"])
}
