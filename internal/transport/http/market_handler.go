package http

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/nihalnihalani/EnrichedMMCP/internal/analysis"
	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/internal/middleware"
	"github.com/nihalnihalani/EnrichedMMCP/internal/services"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// MarketService is the market service as seen by the HTTP layer.
type MarketService interface {
	Instruments() []domain.Instrument
	LatestPrices(ctx context.Context) (domain.LatestPrices, error)
	MarketOverview(ctx context.Context) (domain.MarketOverview, error)
	ListRows(ctx context.Context, filter domain.RowFilter) ([]domain.DailyRow, int, error)
	GetRow(ctx context.Context, id int64) (domain.DailyRow, error)
	HistoricalAnalysis(ctx context.Context, symbol string, days int) (domain.AnalysisResult, error)
	Compare(ctx context.Context, symbols []string, days int) (domain.ComparisonResult, error)
}

// Window defaults for analysis endpoints.
const (
	DefaultDays = 30
	MaxDays     = 3650
)

// MarketHandlerConfig bounds the analysis window accepted from clients.
type MarketHandlerConfig struct {
	DefaultDays int
	MaxDays     int
}

// MarketHandler serves stored rows and analyses.
type MarketHandler struct {
	service      MarketService
	cfg          MarketHandlerConfig
	validator    *middleware.Validator
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewMarketHandler creates a market handler.
func NewMarketHandler(service MarketService, cfg MarketHandlerConfig, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MarketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = MaxDays
	}
	if cfg.DefaultDays <= 0 || cfg.DefaultDays > cfg.MaxDays {
		cfg.DefaultDays = min(DefaultDays, cfg.MaxDays)
	}
	return &MarketHandler{
		service:      service,
		cfg:          cfg,
		validator:    middleware.NewValidator(),
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "market_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the market routes, mounted under /api.
func (h *MarketHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/latest-prices", h.LatestPrices)
	r.Get("/market-overview", h.MarketOverview)
	r.Get("/instruments", h.Instruments)
	r.Get("/historical-analysis", h.HistoricalAnalysis)
	r.Get("/compare", h.Compare)

	r.Route("/stock-datas", func(r chi.Router) {
		r.Get("/", h.ListRows)
		r.Get("/{id}", h.GetRow)
	})

	return r
}

// LatestPrices handles GET /api/latest-prices
func (h *MarketHandler) LatestPrices(w http.ResponseWriter, r *http.Request) {
	latest, err := h.service.LatestPrices(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, latest)
}

// MarketOverview handles GET /api/market-overview
func (h *MarketHandler) MarketOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.MarketOverview(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, overview)
}

// Instruments handles GET /api/instruments
func (h *MarketHandler) Instruments(w http.ResponseWriter, r *http.Request) {
	instruments := h.service.Instruments()
	render.JSON(w, r, map[string]interface{}{
		"instruments": instruments,
		"count":       len(instruments),
	})
}

// ListRows handles GET /api/stock-datas
func (h *MarketHandler) ListRows(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, services.MaxRowLimit, services.DefaultRowLimit)
	if !ok {
		return
	}
	offset, ok := h.query.ValidateInt(w, r, "offset", 0, math.MaxInt32, 0)
	if !ok {
		return
	}

	filter := domain.RowFilter{Limit: limit, Offset: offset}
	if filter.DateEq, ok = h.query.ValidateDate(w, r, "date_eq"); !ok {
		return
	}
	if filter.DateGte, ok = h.query.ValidateDate(w, r, "date_gte"); !ok {
		return
	}
	if filter.DateLte, ok = h.query.ValidateDate(w, r, "date_lte"); !ok {
		return
	}

	rows, total, err := h.service.ListRows(r.Context(), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "rows listed",
		slog.Int("returned", len(rows)),
		slog.Int("total", total))

	render.JSON(w, r, domain.RowPage{
		Data:   rows,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetRow handles GET /api/stock-datas/{id}
func (h *MarketHandler) GetRow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "id must be a positive integer"))
		return
	}

	row, err := h.service.GetRow(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, row)
}

// HistoricalAnalysis handles GET /api/historical-analysis?symbol=AAPL&days=30
func (h *MarketHandler) HistoricalAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.query.ValidateRequired(w, r, "symbol")
	if !ok {
		return
	}
	days, ok := h.query.ValidateInt(w, r, "days", 1, h.cfg.MaxDays, h.cfg.DefaultDays)
	if !ok {
		return
	}

	result, err := h.service.HistoricalAnalysis(r.Context(), symbol, days)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, analysis.RoundedAnalysis(result))
}

type compareQuery struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=50,dive,required,max=32"`
}

// Compare handles GET /api/compare?symbols=AAPL,TSLA&days=30. Symbols may be
// comma separated, repeated or both.
func (h *MarketHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var q compareQuery
	for _, v := range r.URL.Query()["symbols"] {
		for _, s := range strings.Split(v, ",") {
			q.Symbols = append(q.Symbols, strings.TrimSpace(s))
		}
	}
	if err := h.validator.Struct(q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	days, ok := h.query.ValidateInt(w, r, "days", 1, h.cfg.MaxDays, h.cfg.DefaultDays)
	if !ok {
		return
	}

	result, err := h.service.Compare(r.Context(), q.Symbols, days)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, analysis.RoundedComparison(result))
}
