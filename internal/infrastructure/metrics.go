package infrastructure

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nihalnihalani/EnrichedMMCP/internal/analysis"
	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
)

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Analysis metrics
	AnalysesTotal      metric.Int64Counter
	ComparisonsTotal   metric.Int64Counter
	ComparedSymbols    metric.Int64Counter
	ComparisonFailures metric.Int64Counter
	CacheLookups       metric.Int64Counter

	// Ingestion metrics
	IngestRunsTotal metric.Int64Counter
	IngestRows      metric.Int64Counter
	IngestDuration  metric.Float64Histogram
}

// NewBusinessMetrics creates application-specific metrics on meter.
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var (
		m   BusinessMetrics
		err error
	)
	counter := func(dst *metric.Int64Counter, name, desc string) {
		if err == nil {
			*dst, err = meter.Int64Counter(name, metric.WithDescription(desc))
		}
	}
	histogram := func(dst *metric.Float64Histogram, name, desc string) {
		if err == nil {
			*dst, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		}
	}

	counter(&m.HTTPRequestsTotal, "http_requests_total", "Total number of HTTP requests")
	histogram(&m.HTTPRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds")
	if err == nil {
		m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
			metric.WithDescription("Number of active HTTP requests"))
	}

	counter(&m.AnalysesTotal, "market_analyses_total", "Historical analyses by symbol and result")
	counter(&m.ComparisonsTotal, "market_comparisons_total", "Comparisons by result")
	counter(&m.ComparedSymbols, "market_compared_symbols_total", "Symbols requested across comparisons")
	counter(&m.ComparisonFailures, "market_comparison_symbol_failures_total", "Symbols excluded from comparisons")
	counter(&m.CacheLookups, "market_analysis_cache_lookups_total", "Analysis cache lookups by result")

	counter(&m.IngestRunsTotal, "market_ingest_runs_total", "Dataset loads by result")
	counter(&m.IngestRows, "market_ingest_rows_total", "Rows written by dataset loads")
	histogram(&m.IngestDuration, "market_ingest_duration_seconds", "Dataset load duration in seconds")

	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordAnalysis counts one historical analysis. Symbols outside the
// instrument table are folded into "other" to bound cardinality.
func (m *BusinessMetrics) RecordAnalysis(ctx context.Context, symbol string, err error) {
	m.AnalysesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", symbolLabel(symbol)),
		attribute.String("result", resultLabel(err)),
	))
}

// RecordComparison counts one comparison and the symbols it dropped.
func (m *BusinessMetrics) RecordComparison(ctx context.Context, requested, failed int, err error) {
	result := attribute.String("result", resultLabel(err))
	m.ComparisonsTotal.Add(ctx, 1, metric.WithAttributes(result))
	m.ComparedSymbols.Add(ctx, int64(requested))
	if failed > 0 {
		m.ComparisonFailures.Add(ctx, int64(failed))
	}
}

// RecordCacheLookup counts an analysis cache hit or miss.
func (m *BusinessMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordIngest counts one dataset load.
func (m *BusinessMetrics) RecordIngest(ctx context.Context, rows int, duration time.Duration, err error) {
	result := attribute.String("result", "ok")
	if err != nil {
		result = attribute.String("result", "error")
	}
	m.IngestRunsTotal.Add(ctx, 1, metric.WithAttributes(result))
	m.IngestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(result))
	if err == nil {
		m.IngestRows.Add(ctx, int64(rows))
	}
}

// RecordHTTPRequest records a completed request under its route pattern.
func (m *BusinessMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

func symbolLabel(symbol string) string {
	if inst, ok := market.Default().Lookup(symbol); ok {
		return inst.Symbol
	}
	return "other"
}

func resultLabel(err error) string {
	var symErr *analysis.SymbolError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &symErr):
		return symErr.Reason
	case errors.Is(err, analysis.ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, analysis.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, analysis.ErrNoValidSymbols):
		return "no_valid_symbols"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
