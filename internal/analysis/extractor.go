package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// RowSource supplies the most recent stored rows, newest first.
type RowSource interface {
	LatestRows(ctx context.Context, limit int) ([]domain.DailyRow, error)
}

// Extractor projects stored rows onto the price series of one instrument.
type Extractor struct {
	source RowSource
	table  *market.Table
	logger *slog.Logger
}

// NewExtractor creates an extractor over source using the instrument table.
func NewExtractor(source RowSource, table *market.Table, logger *slog.Logger) *Extractor {
	if table == nil {
		table = market.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		source: source,
		table:  table,
		logger: logger.With(slog.String("component", "series_extractor")),
	}
}

// ExtractSeries fetches the days most recent rows and returns the symbol's
// prices oldest first. Rows without a price for the symbol are dropped, not
// filled. Rows sharing a calendar day collapse to the one fetched first.
func (e *Extractor) ExtractSeries(ctx context.Context, symbol string, days int) (domain.PriceSeries, error) {
	normalized := market.Normalize(symbol)
	if days <= 0 {
		return domain.PriceSeries{}, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidWindow, days)
	}

	inst, ok := e.table.Lookup(normalized)
	if !ok {
		return domain.PriceSeries{}, unknownSymbol(normalized)
	}

	rows, err := e.source.LatestRows(ctx, days)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("fetch %d latest rows: %w", days, err)
	}
	if len(rows) == 0 {
		return domain.PriceSeries{}, noData(inst.Symbol, ReasonStoreEmpty)
	}

	series := domain.PriceSeries{
		Symbol:       inst.Symbol,
		Window:       days,
		Observations: make([]domain.PriceObservation, 0, len(rows)),
	}
	dropped := 0
	for i := len(rows) - 1; i >= 0; i-- {
		row := &rows[i]
		price := inst.Price(row)
		if price == nil {
			dropped++
			continue
		}
		obs := domain.PriceObservation{
			Date:   row.Date,
			Symbol: inst.Symbol,
			Price:  *price,
			Volume: inst.Volume(row),
		}
		if n := len(series.Observations); n > 0 && sameDay(series.Observations[n-1].Date, obs.Date) {
			series.Observations[n-1] = obs
			continue
		}
		series.Observations = append(series.Observations, obs)
	}

	if len(series.Observations) == 0 {
		return domain.PriceSeries{}, noData(inst.Symbol, ReasonNoPrices)
	}

	e.logger.DebugContext(ctx, "series extracted",
		slog.String("symbol", inst.Symbol),
		slog.Int("days", days),
		slog.Int("rows", len(rows)),
		slog.Int("points", len(series.Observations)),
		slog.Int("dropped_nulls", dropped))

	return series, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
