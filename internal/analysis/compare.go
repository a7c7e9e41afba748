package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// DefaultTopK is the length of the most-volatile ranking.
const DefaultTopK = 5

// Thresholds on the average percent change and on single moves.
const (
	sentimentThreshold      = 1.0
	strongMomentumThreshold = 2.0
	declineThreshold        = -2.0
	highVolatilityThreshold = 5.0
)

// SeriesExtractor produces the price series of one symbol.
type SeriesExtractor interface {
	ExtractSeries(ctx context.Context, symbol string, days int) (domain.PriceSeries, error)
}

// Comparer analyzes several symbols over the same window and aggregates the
// successful results.
type Comparer struct {
	extractor SeriesExtractor
	table     *market.Table
	topK      int
	logger    *slog.Logger
}

// NewComparer creates a comparer. A non-positive topK selects DefaultTopK.
func NewComparer(extractor SeriesExtractor, table *market.Table, topK int, logger *slog.Logger) *Comparer {
	if table == nil {
		table = market.Default()
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparer{
		extractor: extractor,
		table:     table,
		topK:      topK,
		logger:    logger.With(slog.String("component", "comparison_engine")),
	}
}

// Compare analyzes each symbol independently. Unknown symbols and symbols
// without data are reported in Failures and excluded from every aggregate.
// Any other error aborts the comparison. When no symbol succeeds the error
// is a *ComparisonError matching ErrNoValidSymbols.
func (c *Comparer) Compare(ctx context.Context, symbols []string, days int) (domain.ComparisonResult, error) {
	if days <= 0 {
		return domain.ComparisonResult{}, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidWindow, days)
	}
	requested := c.dedupe(symbols)
	if len(requested) == 0 {
		return domain.ComparisonResult{}, fmt.Errorf("%w: at least one symbol is required", ErrInvalidInput)
	}

	out := domain.ComparisonResult{
		PeriodDays:     days,
		Results:        make([]domain.AnalysisResult, 0, len(requested)),
		Failures:       []domain.SymbolFailure{},
		MostVolatile:   []domain.RankedMove{},
		SectorAverages: map[string]float64{},
	}

	for _, symbol := range requested {
		if err := ctx.Err(); err != nil {
			return domain.ComparisonResult{}, err
		}
		result, err := c.analyzeOne(ctx, symbol, days)
		if err != nil {
			if !IsSymbolFailure(err) {
				return domain.ComparisonResult{}, fmt.Errorf("compare %s: %w", symbol, err)
			}
			out.Failures = append(out.Failures, failureOf(symbol, err))
			c.logger.DebugContext(ctx, "symbol excluded from comparison",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()))
			continue
		}
		out.Results = append(out.Results, result)
	}

	if len(out.Results) == 0 {
		return domain.ComparisonResult{}, &ComparisonError{Failures: out.Failures}
	}

	c.aggregate(&out)

	c.logger.InfoContext(ctx, "comparison completed",
		slog.Int("requested", len(requested)),
		slog.Int("succeeded", len(out.Results)),
		slog.Int("failed", len(out.Failures)),
		slog.Int("days", days))

	return out, nil
}

func (c *Comparer) analyzeOne(ctx context.Context, symbol string, days int) (domain.AnalysisResult, error) {
	series, err := c.extractor.ExtractSeries(ctx, symbol, days)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return Analyze(series)
}

// dedupe keeps the first occurrence of each symbol. Aliases of one
// instrument count as the same symbol; unknown symbols are kept so they can
// be reported.
func (c *Comparer) dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		symbol := market.Normalize(raw)
		if symbol == "" {
			continue
		}
		key := symbol
		if inst, ok := c.table.Lookup(symbol); ok {
			key = inst.Symbol
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, symbol)
	}
	return out
}

func (c *Comparer) aggregate(out *domain.ComparisonResult) {
	pcts := make([]float64, len(out.Results))
	moves := make([]domain.RankedMove, len(out.Results))
	for i, r := range out.Results {
		pcts[i] = r.PriceChangePct
		moves[i] = rankedMove(r)
		out.TotalChange += r.PriceChange

		switch Classify(r.PriceChange) {
		case domain.MovementUp:
			out.Movements.Up++
		case domain.MovementDown:
			out.Movements.Down++
		default:
			out.Movements.Flat++
		}

		if math.Abs(r.PriceChangePct) > highVolatilityThreshold {
			out.HighVolatilityCount++
		}
	}
	out.AverageChangePct = Mean(pcts)

	best, worst := out.Results[0], out.Results[0]
	for _, r := range out.Results[1:] {
		if r.PriceChangePct > best.PriceChangePct {
			best = r
		}
		if r.PriceChangePct < worst.PriceChangePct {
			worst = r
		}
	}
	out.BestPerformer = rankedMove(best)
	out.WorstPerformer = rankedMove(worst)

	out.MostVolatile = topMovers(moves, c.topK)
	out.Sentiment = sentimentOf(out.AverageChangePct)
	out.Momentum = momentumOf(out.AverageChangePct)
	out.SectorAverages = c.sectorAverages(out.Results)
}

// topMovers ranks by absolute percent change, largest first, with ties
// ordered by symbol.
func topMovers(moves []domain.RankedMove, k int) []domain.RankedMove {
	ranked := append([]domain.RankedMove(nil), moves...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ai, aj := math.Abs(ranked[i].PriceChangePct), math.Abs(ranked[j].PriceChangePct)
		if ai != aj {
			return ai > aj
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

func (c *Comparer) sectorAverages(results []domain.AnalysisResult) map[string]float64 {
	bySector := make(map[string][]float64)
	for _, r := range results {
		inst, ok := c.table.Lookup(r.Symbol)
		if !ok {
			continue
		}
		bySector[inst.Sector] = append(bySector[inst.Sector], r.PriceChangePct)
	}
	averages := make(map[string]float64, len(bySector))
	for sector, values := range bySector {
		averages[sector] = Mean(values)
	}
	return averages
}

func sentimentOf(avg float64) domain.Sentiment {
	switch {
	case avg > sentimentThreshold:
		return domain.SentimentBullish
	case avg < -sentimentThreshold:
		return domain.SentimentBearish
	default:
		return domain.SentimentNeutral
	}
}

func momentumOf(avg float64) domain.Momentum {
	switch {
	case avg > strongMomentumThreshold:
		return domain.MomentumStrongUp
	case avg > 0:
		return domain.MomentumModerateUp
	case avg > declineThreshold:
		return domain.MomentumSlightDown
	default:
		return domain.MomentumSignificantDecline
	}
}

func rankedMove(r domain.AnalysisResult) domain.RankedMove {
	return domain.RankedMove{
		Symbol:         r.Symbol,
		PriceChange:    r.PriceChange,
		PriceChangePct: r.PriceChangePct,
	}
}

func failureOf(symbol string, err error) domain.SymbolFailure {
	f := domain.SymbolFailure{Symbol: symbol, Error: err.Error()}
	var symErr *SymbolError
	if errors.As(err, &symErr) {
		f.Symbol = symErr.Symbol
		f.Reason = symErr.Reason
		return f
	}
	if errors.Is(err, ErrUnknownSymbol) {
		f.Reason = ReasonUnknownSymbol
	} else {
		f.Reason = ReasonNoPrices
	}
	return f
}
