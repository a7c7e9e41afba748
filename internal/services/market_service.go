package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nihalnihalani/EnrichedMMCP/internal/analysis"
	"github.com/nihalnihalani/EnrichedMMCP/internal/cache"
	"github.com/nihalnihalani/EnrichedMMCP/internal/infrastructure"
	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
	"github.com/nihalnihalani/EnrichedMMCP/internal/storage"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// Listing and overview defaults.
const (
	DefaultRowLimit       = 100
	MaxRowLimit           = 1000
	DefaultOverviewWindow = 30
)

// MarketConfig tunes the market service.
type MarketConfig struct {
	TopK           int
	OverviewWindow int
}

// MarketService answers market data and analysis queries.
type MarketService struct {
	store     storage.Store
	table     *market.Table
	extractor *analysis.Extractor
	comparer  *analysis.Comparer
	cache     cache.AnalysisCache
	metrics   Recorder
	cfg       MarketConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewMarketService wires the analysis pipeline over store. analysisCache and
// metrics may be nil.
func NewMarketService(store storage.Store, analysisCache cache.AnalysisCache, metrics Recorder, cfg MarketConfig, logger *slog.Logger) *MarketService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if cfg.OverviewWindow <= 0 {
		cfg.OverviewWindow = DefaultOverviewWindow
	}
	table := market.Default()
	extractor := analysis.NewExtractor(store, table, logger)

	logger.Info("MarketService initialized",
		slog.Int("top_k", cfg.TopK),
		slog.Int("overview_window", cfg.OverviewWindow),
		slog.Bool("cache_enabled", analysisCache != nil))

	return &MarketService{
		store:     store,
		table:     table,
		extractor: extractor,
		comparer:  analysis.NewComparer(extractor, table, cfg.TopK, logger),
		cache:     analysisCache,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "market_service")),
		now:       time.Now,
	}
}

// Instruments lists the tracked instruments in table order.
func (s *MarketService) Instruments() []domain.Instrument {
	return s.table.Describe()
}

// LatestPrices returns the newest stored row projected onto every symbol.
func (s *MarketService) LatestPrices(ctx context.Context) (domain.LatestPrices, error) {
	rows, err := s.store.LatestRows(ctx, 1)
	if err != nil {
		return domain.LatestPrices{}, fmt.Errorf("load latest row: %w", err)
	}
	if len(rows) == 0 {
		return domain.LatestPrices{}, fmt.Errorf("latest prices: %w", analysis.ErrNoDataAvailable)
	}
	row := rows[0]
	return domain.LatestPrices{
		Date:   row.Date,
		Prices: s.table.Prices(&row),
		Row:    row,
	}, nil
}

// MarketOverview summarises every numeric column over the most recent rows.
// Columns without any value in the window are omitted.
func (s *MarketService) MarketOverview(ctx context.Context) (domain.MarketOverview, error) {
	rows, err := s.store.LatestRows(ctx, s.cfg.OverviewWindow)
	if err != nil {
		return domain.MarketOverview{}, fmt.Errorf("load overview window: %w", err)
	}
	if len(rows) == 0 {
		return domain.MarketOverview{}, fmt.Errorf("market overview: %w", analysis.ErrNoDataAvailable)
	}

	stats := make(map[string]domain.ColumnStats)
	for _, name := range domain.NumericColumnNames() {
		if st, ok := columnStats(rows, name); ok {
			stats[name] = st
		}
	}

	return domain.MarketOverview{
		LatestDate:   rows[0].Date,
		LatestPrices: rows[0],
		Statistics:   stats,
		WindowRows:   len(rows),
		AnalysisDate: s.now().UTC(),
	}, nil
}

// columnStats reads rows newest first; Latest is the newest non-null value.
func columnStats(rows []domain.DailyRow, name string) (domain.ColumnStats, bool) {
	var (
		st    domain.ColumnStats
		sum   float64
		count int
	)
	st.Min = math.Inf(1)
	st.Max = math.Inf(-1)
	for i := range rows {
		v, _ := rows[i].Column(name)
		if v == nil {
			continue
		}
		if count == 0 {
			st.Latest = *v
		}
		sum += *v
		count++
		st.Min = math.Min(st.Min, *v)
		st.Max = math.Max(st.Max, *v)
	}
	if count == 0 {
		return domain.ColumnStats{}, false
	}
	st.Avg = sum / float64(count)
	return st, true
}

// ListRows returns a page of stored rows and the number of matching rows.
func (s *MarketService) ListRows(ctx context.Context, filter domain.RowFilter) ([]domain.DailyRow, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultRowLimit
	}
	if filter.Limit > MaxRowLimit {
		filter.Limit = MaxRowLimit
	}
	if filter.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: offset must not be negative", analysis.ErrInvalidInput)
	}
	rows, total, err := s.store.Rows(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list rows: %w", err)
	}
	return rows, total, nil
}

// GetRow returns one stored row by id.
func (s *MarketService) GetRow(ctx context.Context, id int64) (domain.DailyRow, error) {
	row, err := s.store.RowByID(ctx, id)
	if err != nil {
		return domain.DailyRow{}, fmt.Errorf("row %d: %w", id, err)
	}
	return row, nil
}

// HistoricalAnalysis analyzes one symbol over the days most recent rows.
func (s *MarketService) HistoricalAnalysis(ctx context.Context, symbol string, days int) (domain.AnalysisResult, error) {
	ctx, span := infrastructure.StartSpan(ctx, "market.historical_analysis",
		attribute.String("symbol", symbol),
		attribute.Int("days", days))
	defer span.End()

	key, cacheable := s.cacheKey(ctx, symbol, days)
	if cacheable {
		result, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "analysis cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		s.metrics.RecordCacheLookup(ctx, hit)
		if hit {
			s.logger.DebugContext(ctx, "analysis served from cache", slog.String("key", key))
			return result, nil
		}
	}

	series, err := s.extractor.ExtractSeries(ctx, symbol, days)
	if err == nil {
		var result domain.AnalysisResult
		result, err = analysis.Analyze(series)
		if err == nil {
			s.metrics.RecordAnalysis(ctx, result.Symbol, nil)
			if cacheable {
				if err := s.cache.Set(ctx, key, result); err != nil {
					s.logger.WarnContext(ctx, "analysis cache write failed",
						slog.String("key", key),
						slog.String("error", err.Error()))
				}
			}
			return result, nil
		}
	}

	s.metrics.RecordAnalysis(ctx, market.Normalize(symbol), err)
	infrastructure.RecordError(ctx, err)
	if !analysis.IsSymbolFailure(err) && !errors.Is(err, analysis.ErrInvalidWindow) {
		s.logger.ErrorContext(ctx, "historical analysis failed",
			slog.String("symbol", symbol),
			slog.Int("days", days),
			slog.String("error", err.Error()))
	}
	return domain.AnalysisResult{}, err
}

// cacheKey resolves the key for an analysis. It reports false when no cache
// is configured or the key cannot be built, in which case the analysis runs
// uncached and reports its own error.
func (s *MarketService) cacheKey(ctx context.Context, symbol string, days int) (string, bool) {
	if s.cache == nil || days <= 0 {
		return "", false
	}
	inst, ok := s.table.Lookup(symbol)
	if !ok {
		return "", false
	}
	latest, err := s.store.MostRecentDate(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrEmpty) {
			s.logger.WarnContext(ctx, "could not resolve cache key",
				slog.String("symbol", inst.Symbol),
				slog.String("error", err.Error()))
		}
		return "", false
	}
	return cache.Key(inst.Symbol, days, latest), true
}

// Compare analyzes several symbols over the same window.
func (s *MarketService) Compare(ctx context.Context, symbols []string, days int) (domain.ComparisonResult, error) {
	ctx, span := infrastructure.StartSpan(ctx, "market.compare",
		attribute.StringSlice("symbols", symbols),
		attribute.Int("days", days))
	defer span.End()

	result, err := s.comparer.Compare(ctx, symbols, days)

	failed := len(result.Failures)
	var cmpErr *analysis.ComparisonError
	if errors.As(err, &cmpErr) {
		failed = len(cmpErr.Failures)
	}
	s.metrics.RecordComparison(ctx, len(symbols), failed, err)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.ComparisonResult{}, err
	}
	return result, nil
}
