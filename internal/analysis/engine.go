package analysis

import (
	"math"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// Analyze derives change and volatility statistics from a chronological
// series. The newest observation is the current price and the oldest is the
// start price. It is a pure function of its input.
func Analyze(series domain.PriceSeries) (domain.AnalysisResult, error) {
	n := series.Len()
	if n == 0 {
		return domain.AnalysisResult{}, noData(series.Symbol, ReasonNoPrices)
	}

	first := series.Observations[0]
	last := series.Observations[n-1]

	result := domain.AnalysisResult{
		Symbol:       series.Symbol,
		CurrentPrice: last.Price,
		StartPrice:   first.Price,
		PeriodDays:   series.Window,
		DataPoints:   n,
		StartDate:    first.Date,
		EndDate:      last.Date,
		Series:       make([]domain.SeriesPoint, n),
	}
	for i, obs := range series.Observations {
		result.Series[i] = domain.SeriesPoint{Date: obs.Date, Price: obs.Price}
	}

	if n > 1 {
		result.PriceChange = last.Price - first.Price
		result.PriceChangePct = PercentChange(first.Price, last.Price)
	}
	result.Volatility = PopulationStdDev(series.Prices())

	return result, nil
}

// PercentChange returns (current-start)/start*100, or 0 when start is zero.
func PercentChange(start, current float64) float64 {
	if start == 0 {
		return 0
	}
	return (current - start) / start * 100
}

// PopulationStdDev returns sqrt(sum((x-mean)^2)/n). It is 0 for fewer than
// two values.
func PopulationStdDev(values []float64) float64 {
	n := len(values)
	if n <= 1 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Classify maps a price change onto a movement.
func Classify(change float64) domain.Movement {
	switch {
	case change > 0:
		return domain.MovementUp
	case change < 0:
		return domain.MovementDown
	default:
		return domain.MovementFlat
	}
}
