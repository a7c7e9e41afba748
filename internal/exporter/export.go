package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/internal/infrastructure"
	"github.com/nihalnihalani/EnrichedMMCP/internal/ingest"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// DefaultPageSize is the number of rows read from the store per query.
const DefaultPageSize = 1000

// RowSource is the part of the store an export reads.
type RowSource interface {
	Rows(ctx context.Context, filter domain.RowFilter) ([]domain.DailyRow, int, error)
}

// Options selects what an export writes.
type Options struct {
	Format ingest.Format

	// From and To bound the exported dates, inclusive.
	From *time.Time
	To   *time.Time

	// Columns limits the numeric columns; empty means all of them.
	Columns []string

	// BOM prefixes CSV output with a UTF-8 byte order mark.
	BOM bool
}

type rowValues struct {
	date  time.Time
	cells []*float64
}

type rowWriter interface {
	WriteRow(rowValues) error
	Close() error
}

// Exporter streams stored rows to CSV or XLSX.
type Exporter struct {
	source   RowSource
	pageSize int
	logger   *slog.Logger
}

// New creates an exporter reading from source.
func New(source RowSource, logger *slog.Logger) *Exporter {
	return &Exporter{
		source:   source,
		pageSize: DefaultPageSize,
		logger:   infrastructure.WithComponent(logger, "exporter"),
	}
}

func header(columns []string) []string {
	return append([]string{domain.ColumnDate}, columns...)
}

func resolveColumns(requested []string) ([]string, error) {
	all := domain.NumericColumnNames()
	if len(requested) == 0 {
		return all, nil
	}
	known := make(map[string]bool, len(all))
	for _, name := range all {
		known[name] = true
	}
	for _, name := range requested {
		if !known[name] {
			return nil, apierrors.NewAppValidationError(fmt.Sprintf("unknown column %q", name))
		}
	}
	return requested, nil
}

// Export writes every matching row to w and returns the number written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, opts Options) (int, error) {
	columns, err := resolveColumns(opts.Columns)
	if err != nil {
		return 0, err
	}

	var out rowWriter
	switch opts.Format {
	case ingest.FormatCSV, "":
		out, err = newCSVRows(w, columns, opts.BOM)
	case ingest.FormatXLSX:
		out, err = newXLSXRows(w, columns)
	default:
		err = fmt.Errorf("unsupported export format %q", opts.Format)
	}
	if err != nil {
		return 0, err
	}

	written, err := e.copyRows(ctx, out, columns, opts)
	if err != nil {
		out.Close()
		return written, err
	}
	if err := out.Close(); err != nil {
		return written, err
	}

	e.logger.InfoContext(ctx, "rows exported",
		slog.Int("rows", written),
		slog.String("format", string(opts.Format)),
		slog.Int("columns", len(columns)))
	return written, nil
}

func (e *Exporter) copyRows(ctx context.Context, out rowWriter, columns []string, opts Options) (int, error) {
	filter := domain.RowFilter{Limit: e.pageSize, DateGte: opts.From, DateLte: opts.To}
	values := rowValues{cells: make([]*float64, len(columns))}

	written := 0
	for {
		rows, _, err := e.source.Rows(ctx, filter)
		if err != nil {
			return written, fmt.Errorf("read rows at offset %d: %w", filter.Offset, err)
		}
		for i := range rows {
			values.date = rows[i].Date
			for j, name := range columns {
				values.cells[j], _ = rows[i].Column(name)
			}
			if err := out.WriteRow(values); err != nil {
				return written, fmt.Errorf("write row %d: %w", written+1, err)
			}
			written++
		}
		if len(rows) < filter.Limit {
			return written, nil
		}
		filter.Offset += len(rows)
	}
}

// ExportFile writes the export to path, creating parent directories. The
// format follows the file extension unless opts.Format is set.
func (e *Exporter) ExportFile(ctx context.Context, path string, opts Options) (int, error) {
	if opts.Format == "" {
		format, err := ingest.DetectFormat(path)
		if err != nil {
			return 0, err
		}
		opts.Format = format
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := e.Export(ctx, f, opts)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}
