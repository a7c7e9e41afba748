// Package analysis turns stored daily rows into per-instrument price series
// and derives change, volatility and cross-instrument comparison statistics.
//
// The engine keeps full floating point precision. Percentages are rounded
// only when results are rendered, see RoundedAnalysis and RoundedComparison.
package analysis
