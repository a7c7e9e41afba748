package analysis

import (
	"github.com/shopspring/decimal"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// PctPlaces is the number of decimal places percentages are rendered with.
const PctPlaces = 2

// RoundPct rounds a percentage half away from zero for display.
func RoundPct(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(PctPlaces).Float64()
	return f
}

// RoundedAnalysis returns a copy of r with percent fields rounded for
// display. The input is not modified.
func RoundedAnalysis(r domain.AnalysisResult) domain.AnalysisResult {
	r.PriceChangePct = RoundPct(r.PriceChangePct)
	if r.Series != nil {
		r.Series = append([]domain.SeriesPoint(nil), r.Series...)
	}
	return r
}

// RoundedComparison returns a copy of c with every percent field rounded for
// display.
func RoundedComparison(c domain.ComparisonResult) domain.ComparisonResult {
	results := make([]domain.AnalysisResult, len(c.Results))
	for i, r := range c.Results {
		results[i] = RoundedAnalysis(r)
	}
	c.Results = results

	c.AverageChangePct = RoundPct(c.AverageChangePct)
	c.BestPerformer.PriceChangePct = RoundPct(c.BestPerformer.PriceChangePct)
	c.WorstPerformer.PriceChangePct = RoundPct(c.WorstPerformer.PriceChangePct)

	movers := make([]domain.RankedMove, len(c.MostVolatile))
	for i, m := range c.MostVolatile {
		m.PriceChangePct = RoundPct(m.PriceChangePct)
		movers[i] = m
	}
	c.MostVolatile = movers

	sectors := make(map[string]float64, len(c.SectorAverages))
	for k, v := range c.SectorAverages {
		sectors[k] = RoundPct(v)
	}
	c.SectorAverages = sectors
	return c
}
