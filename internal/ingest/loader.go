package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/internal/files"
	"github.com/nihalnihalani/EnrichedMMCP/internal/infrastructure"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// Writer is the part of the store a load needs.
type Writer interface {
	ReplaceRows(ctx context.Context, rows []domain.DailyRow) error
}

// Recorder receives one observation per load.
type Recorder interface {
	RecordIngest(ctx context.Context, rows int, duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordIngest(context.Context, int, time.Duration, error) {}

// Result summarises a completed load.
type Result struct {
	Rows     int           `json:"rows"`
	Dropped  int           `json:"dropped"`
	Ignored  []string      `json:"ignored_columns,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Loader parses dataset files and replaces the stored rows with their
// contents.
type Loader struct {
	store   Writer
	metrics Recorder
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewLoader creates a loader. metrics may be nil.
func NewLoader(store Writer, metrics Recorder, logger *slog.Logger) *Loader {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Loader{
		store:   store,
		metrics: metrics,
		tracer:  otel.Tracer(infrastructure.InstrumentationName),
		logger:  infrastructure.WithComponent(logger, "ingest"),
	}
}

// Load reads the dataset at path, choosing the format from its extension.
// A directory resolves to its most recently modified dataset file.
func (l *Loader) Load(ctx context.Context, path string) (Result, error) {
	resolved, err := files.NewDiscovery("", Extensions...).Resolve(path)
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, files.ErrNoFiles):
		return Result{}, apierrors.NewNotFoundError("dataset", err).WithContext("path", path)
	case err != nil:
		return Result{}, apierrors.NewStorageError("locate dataset", err).WithContext("path", path)
	}
	path = resolved

	format, err := DetectFormat(path)
	if err != nil {
		return Result{}, apierrors.NewParsingError("detect dataset format", err).WithContext("path", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, apierrors.NewStorageError("open dataset", err).WithContext("path", path)
	}
	defer f.Close()

	l.logger.InfoContext(ctx, "loading dataset", slog.String("path", path), slog.String("format", string(format)))
	return l.LoadReader(ctx, f, format)
}

// LoadReader parses r and replaces every stored row. Nothing is written when
// parsing fails.
func (l *Loader) LoadReader(ctx context.Context, r io.Reader, format Format) (res Result, err error) {
	ctx, span := l.tracer.Start(ctx, "ingest.Load", trace.WithAttributes(attribute.String("format", string(format))))
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		l.metrics.RecordIngest(ctx, res.Rows, res.Duration, err)
		infrastructure.RecordError(ctx, err)
		span.End()
	}()

	records, err := readRecords(r, format)
	if err != nil {
		return Result{}, apierrors.NewParsingError("read dataset", err)
	}

	parsed, err := parseRecords(records, format == FormatXLSX, l.logger)
	if err != nil {
		return Result{}, apierrors.NewParsingError("parse dataset", err)
	}

	if err := l.store.ReplaceRows(ctx, parsed.Rows); err != nil {
		return Result{}, apierrors.NewStorageError("replace rows", err)
	}

	res = Result{Rows: len(parsed.Rows), Dropped: parsed.Dropped, Ignored: parsed.Ignored}
	span.SetAttributes(attribute.Int("rows", res.Rows), attribute.Int("dropped", res.Dropped))
	l.logger.InfoContext(ctx, "dataset loaded",
		slog.Int("rows", res.Rows),
		slog.Int("dropped", res.Dropped),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}
