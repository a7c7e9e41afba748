package domain

import (
	"time"
)

// PriceObservation is one dated price of one instrument.
type PriceObservation struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume *float64  `json:"volume,omitempty"`
}

// PriceSeries holds observations of a single symbol ordered oldest first.
// Dates are unique. A series may be empty. Window is the number of stored
// rows requested, which can exceed the number of observations.
type PriceSeries struct {
	Symbol       string             `json:"symbol"`
	Window       int                `json:"window_days"`
	Observations []PriceObservation `json:"observations"`
}

// Len returns the number of observations.
func (s PriceSeries) Len() int {
	return len(s.Observations)
}

// Prices returns the raw prices in chronological order.
func (s PriceSeries) Prices() []float64 {
	prices := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		prices[i] = o.Price
	}
	return prices
}

// SeriesPoint is one (date, price) pair of an analysis window.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// AnalysisResult holds the statistics derived from one price series.
// Percent fields keep full precision; rounding happens when rendering.
type AnalysisResult struct {
	Symbol         string        `json:"symbol"`
	CurrentPrice   float64       `json:"current_price"`
	StartPrice     float64       `json:"start_price"`
	PriceChange    float64       `json:"price_change"`
	PriceChangePct float64       `json:"price_change_pct"`
	Volatility     float64       `json:"volatility"`
	PeriodDays     int           `json:"analysis_period_days"`
	DataPoints     int           `json:"data_points"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	Series         []SeriesPoint `json:"historical_data"`
}

// Movement classifies the direction of a price change.
type Movement string

const (
	MovementUp   Movement = "up"
	MovementDown Movement = "down"
	MovementFlat Movement = "flat"
)

// Sentiment summarises the average percent change of a comparison.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Momentum grades the average percent change of a comparison.
type Momentum string

const (
	MomentumStrongUp           Momentum = "strong_up"
	MomentumModerateUp         Momentum = "moderate_up"
	MomentumSlightDown         Momentum = "slight_down"
	MomentumSignificantDecline Momentum = "significant_decline"
)

// SymbolFailure records why one symbol of a comparison produced no result.
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// MovementCounts counts symbols by movement.
type MovementCounts struct {
	Up   int `json:"up"`
	Down int `json:"down"`
	Flat int `json:"flat"`
}

// RankedMove is one entry of the movement ranking.
type RankedMove struct {
	Symbol         string  `json:"symbol"`
	PriceChange    float64 `json:"price_change"`
	PriceChangePct float64 `json:"price_change_pct"`
}

// ComparisonResult aggregates analyses of several symbols over one window.
// Aggregates cover Results only; Failures are reported but never averaged.
type ComparisonResult struct {
	PeriodDays          int                `json:"analysis_period_days"`
	Results             []AnalysisResult   `json:"results"`
	Failures            []SymbolFailure    `json:"failures"`
	TotalChange         float64            `json:"total_change"`
	AverageChangePct    float64            `json:"average_change_pct"`
	Movements           MovementCounts     `json:"movements"`
	MostVolatile        []RankedMove       `json:"most_volatile"`
	BestPerformer       RankedMove         `json:"best_performer"`
	WorstPerformer      RankedMove         `json:"worst_performer"`
	Sentiment           Sentiment          `json:"sentiment"`
	Momentum            Momentum           `json:"momentum"`
	SectorAverages      map[string]float64 `json:"sector_averages"`
	HighVolatilityCount int                `json:"high_volatility_count"`
}

// LatestPrices is the newest stored row projected onto instrument symbols.
type LatestPrices struct {
	Date   time.Time           `json:"date"`
	Prices map[string]*float64 `json:"prices"`
	Row    DailyRow            `json:"row"`
}

// ColumnStats summarises one column over the recent window.
type ColumnStats struct {
	Latest float64 `json:"latest"`
	Avg    float64 `json:"avg_30d"`
	Min    float64 `json:"min_30d"`
	Max    float64 `json:"max_30d"`
}

// MarketOverview combines the latest row with recent per-column statistics.
type MarketOverview struct {
	LatestDate   time.Time              `json:"latest_date"`
	LatestPrices DailyRow               `json:"latest_prices"`
	Statistics   map[string]ColumnStats `json:"statistics"`
	WindowRows   int                    `json:"window_rows"`
	AnalysisDate time.Time              `json:"analysis_date"`
}

// Instrument describes one tracked instrument for API consumers.
type Instrument struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	Sector       string   `json:"sector"`
	PriceColumn  string   `json:"price_column"`
	VolumeColumn string   `json:"volume_column,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
}
