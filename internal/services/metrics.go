package services

import "context"

// Recorder receives analysis outcomes for metrics.
type Recorder interface {
	RecordAnalysis(ctx context.Context, symbol string, err error)
	RecordComparison(ctx context.Context, requested, failed int, err error)
	RecordCacheLookup(ctx context.Context, hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordAnalysis(context.Context, string, error) {}
func (nopRecorder) RecordComparison(context.Context, int, int, error) {}
func (nopRecorder) RecordCacheLookup(context.Context, bool) {}
