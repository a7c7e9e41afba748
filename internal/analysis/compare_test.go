package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractSeries(ctx context.Context, symbol string, days int) (domain.PriceSeries, error) {
	args := m.Called(ctx, symbol, days)
	return args.Get(0).(domain.PriceSeries), args.Error(1)
}

// fakeExtractor serves fixed price lists keyed by canonical symbol through the
// real extraction rules.
func fakeExtractor(prices map[string][]float64) *Extractor {
	return NewExtractor(&tableSource{prices: prices}, nil, nil)
}

type tableSource struct {
	prices map[string][]float64
}

func (s *tableSource) LatestRows(_ context.Context, limit int) ([]domain.DailyRow, error) {
	n := 0
	for _, p := range s.prices {
		if len(p) > n {
			n = len(p)
		}
	}
	rows := make([]domain.DailyRow, n)
	for i := 0; i < n; i++ {
		row := domain.DailyRow{ID: int64(i + 1), Date: day0.AddDate(0, 0, i)}
		for symbol, p := range s.prices {
			if i < len(p) {
				inst, _ := market.Default().Lookup(symbol)
				row.SetColumn(inst.PriceColumn, domain.Float(p[i]))
			}
		}
		rows[n-1-i] = row
	}
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func TestCompare_BestAndWorst(t *testing.T) {
	ex := fakeExtractor(map[string][]float64{
		"AAPL": {100, 105},
		"TSLA": {200, 194},
	})
	c := NewComparer(ex, nil, 0, nil)

	got, err := c.Compare(context.Background(), []string{"AAPL", "TSLA"}, 2)
	require.NoError(t, err)

	require.Len(t, got.Results, 2)
	assert.Empty(t, got.Failures)
	assert.Equal(t, "AAPL", got.BestPerformer.Symbol)
	assert.Equal(t, "TSLA", got.WorstPerformer.Symbol)
	assert.InDelta(t, 1.0, got.AverageChangePct, 1e-9)
	assert.InDelta(t, -1.0, got.TotalChange, 1e-9)
	assert.Equal(t, domain.MovementCounts{Up: 1, Down: 1}, got.Movements)
	assert.Equal(t, domain.SentimentNeutral, got.Sentiment)
	assert.Equal(t, domain.MomentumModerateUp, got.Momentum)
	assert.Equal(t, 0, got.HighVolatilityCount)
	assert.InDelta(t, 5.0, got.SectorAverages["tech"], 1e-9)
	assert.InDelta(t, -3.0, got.SectorAverages["equity"], 1e-9)
	assert.Equal(t, 2, got.PeriodDays)
}

func TestCompare_PartialFailure(t *testing.T) {
	ex := fakeExtractor(map[string][]float64{"AAPL": {100, 110}})
	c := NewComparer(ex, nil, 0, nil)

	got, err := c.Compare(context.Background(), []string{"AAPL", "XYZ", "GOLD"}, 2)
	require.NoError(t, err)

	require.Len(t, got.Results, 1)
	assert.Equal(t, "AAPL", got.Results[0].Symbol)
	require.Len(t, got.Failures, 2)
	assert.Equal(t, "XYZ", got.Failures[0].Symbol)
	assert.Equal(t, ReasonUnknownSymbol, got.Failures[0].Reason)
	assert.Equal(t, "GOLD", got.Failures[1].Symbol)
	assert.Equal(t, ReasonNoPrices, got.Failures[1].Reason)

	// failures are excluded from aggregates
	assert.InDelta(t, 10.0, got.AverageChangePct, 1e-9)
	assert.Equal(t, 1, got.Movements.Up)
	assert.Equal(t, 1, got.HighVolatilityCount)
	assert.Equal(t, domain.SentimentBullish, got.Sentiment)
	assert.Equal(t, domain.MomentumStrongUp, got.Momentum)
}

func TestCompare_AllFail(t *testing.T) {
	c := NewComparer(fakeExtractor(map[string][]float64{}), nil, 0, nil)

	_, err := c.Compare(context.Background(), []string{"XYZ", "AAPL"}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoValidSymbols)

	var cmpErr *ComparisonError
	require.ErrorAs(t, err, &cmpErr)
	require.Len(t, cmpErr.Failures, 2)
	assert.Equal(t, ReasonUnknownSymbol, cmpErr.Failures[0].Reason)
	assert.Equal(t, ReasonStoreEmpty, cmpErr.Failures[1].Reason)
}

func TestCompare_InvalidInput(t *testing.T) {
	c := NewComparer(fakeExtractor(nil), nil, 0, nil)

	_, err := c.Compare(context.Background(), nil, 5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Compare(context.Background(), []string{"  ", ""}, 5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Compare(context.Background(), []string{"AAPL"}, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCompare_DedupesSymbolsAndAliases(t *testing.T) {
	m := new(MockExtractor)
	m.On("ExtractSeries", mock.Anything, "SPY", 3).Return(seriesOf("SP500", 100, 101), nil).Once()
	m.On("ExtractSeries", mock.Anything, "AAPL", 3).Return(seriesOf("AAPL", 100, 99), nil).Once()

	c := NewComparer(m, nil, 0, nil)
	got, err := c.Compare(context.Background(), []string{"spy", "AAPL", "SP500", "aapl"}, 3)
	require.NoError(t, err)

	require.Len(t, got.Results, 2)
	assert.Equal(t, "SP500", got.Results[0].Symbol)
	assert.Equal(t, "AAPL", got.Results[1].Symbol)
	m.AssertExpectations(t)
}

func TestCompare_InfrastructureErrorAborts(t *testing.T) {
	boom := errors.New("disk I/O error")
	m := new(MockExtractor)
	m.On("ExtractSeries", mock.Anything, "AAPL", 5).Return(seriesOf("AAPL", 1, 2), nil)
	m.On("ExtractSeries", mock.Anything, "TSLA", 5).Return(domain.PriceSeries{}, boom)

	c := NewComparer(m, nil, 0, nil)
	_, err := c.Compare(context.Background(), []string{"AAPL", "TSLA"}, 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoValidSymbols)
}

func TestCompare_TieBreaks(t *testing.T) {
	// MSFT and NVDA share the best percent change; the first listed wins.
	ex := fakeExtractor(map[string][]float64{
		"NVDA": {100, 110},
		"MSFT": {50, 55},
		"META": {100, 90},
		"AMZN": {10, 9},
	})
	c := NewComparer(ex, nil, 3, nil)

	got, err := c.Compare(context.Background(), []string{"NVDA", "MSFT", "META", "AMZN"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "NVDA", got.BestPerformer.Symbol)
	assert.Equal(t, "META", got.WorstPerformer.Symbol)

	// all four move by 10%; ranking falls back to symbol order and keeps k
	require.Len(t, got.MostVolatile, 3)
	assert.Equal(t, "AMZN", got.MostVolatile[0].Symbol)
	assert.Equal(t, "META", got.MostVolatile[1].Symbol)
	assert.Equal(t, "MSFT", got.MostVolatile[2].Symbol)
}

func TestCompare_MostVolatileOrdering(t *testing.T) {
	ex := fakeExtractor(map[string][]float64{
		"BTC":  {100, 130},
		"GOLD": {100, 99},
		"OIL":  {100, 80},
	})
	c := NewComparer(ex, nil, 0, nil)

	got, err := c.Compare(context.Background(), []string{"GOLD", "OIL", "BTC"}, 2)
	require.NoError(t, err)

	symbols := make([]string, len(got.MostVolatile))
	for i, m := range got.MostVolatile {
		symbols[i] = m.Symbol
	}
	assert.Equal(t, []string{"BTC", "OIL", "GOLD"}, symbols)
	assert.Equal(t, 2, got.HighVolatilityCount)
	assert.Equal(t, domain.SentimentBullish, got.Sentiment)
}

func TestCompare_Momentum(t *testing.T) {
	tests := []struct {
		avg  float64
		want domain.Momentum
	}{
		{avg: 2.5, want: domain.MomentumStrongUp},
		{avg: 2, want: domain.MomentumModerateUp},
		{avg: 0.1, want: domain.MomentumModerateUp},
		{avg: 0, want: domain.MomentumSlightDown},
		{avg: -1.9, want: domain.MomentumSlightDown},
		{avg: -2, want: domain.MomentumSignificantDecline},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, momentumOf(tt.avg), "momentumOf(%v)", tt.avg)
	}
}

func TestCompare_Sentiment(t *testing.T) {
	assert.Equal(t, domain.SentimentBullish, sentimentOf(1.01))
	assert.Equal(t, domain.SentimentNeutral, sentimentOf(1))
	assert.Equal(t, domain.SentimentNeutral, sentimentOf(-1))
	assert.Equal(t, domain.SentimentBearish, sentimentOf(-1.01))
}

func TestRoundedComparison(t *testing.T) {
	in := domain.ComparisonResult{
		Results:          []domain.AnalysisResult{{Symbol: "AAPL", PriceChangePct: 1.23456}},
		AverageChangePct: 1.23456,
		BestPerformer:    domain.RankedMove{Symbol: "AAPL", PriceChangePct: 1.23456},
		WorstPerformer:   domain.RankedMove{Symbol: "AAPL", PriceChangePct: 1.23456},
		MostVolatile:     []domain.RankedMove{{Symbol: "AAPL", PriceChangePct: -7.899}},
		SectorAverages:   map[string]float64{"tech": 1.23456},
	}

	out := RoundedComparison(in)

	assert.Equal(t, 1.23, out.Results[0].PriceChangePct)
	assert.Equal(t, 1.23, out.AverageChangePct)
	assert.Equal(t, 1.23, out.BestPerformer.PriceChangePct)
	assert.Equal(t, -7.9, out.MostVolatile[0].PriceChangePct)
	assert.Equal(t, 1.23, out.SectorAverages["tech"])
	assert.Equal(t, 1.23456, in.SectorAverages["tech"])
	assert.Equal(t, 1.23456, in.Results[0].PriceChangePct)
}
