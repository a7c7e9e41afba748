// Package storage persists the daily market rows. A Store is a single
// table of dated rows; the SQL implementation serves SQLite and PostgreSQL,
// the memory implementation serves tests and the CLI.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// Storage errors.
var (
	ErrRowNotFound = errors.New("row not found")
	ErrEmpty       = errors.New("store is empty")
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DateLayout is the stored representation of a row date.
const DateLayout = "2006-01-02"

// Store reads and replaces the daily rows.
type Store interface {
	// LatestRows returns up to limit rows ordered by date, newest first.
	LatestRows(ctx context.Context, limit int) ([]domain.DailyRow, error)
	// Rows returns one page of rows ordered by date ascending and the number
	// of rows matching the filter.
	Rows(ctx context.Context, filter domain.RowFilter) ([]domain.DailyRow, int, error)
	RowByID(ctx context.Context, id int64) (domain.DailyRow, error)
	// MostRecentDate returns ErrEmpty when the store holds no rows.
	MostRecentDate(ctx context.Context) (time.Time, error)
	// ReplaceRows swaps the whole table for rows atomically.
	ReplaceRows(ctx context.Context, rows []domain.DailyRow) error
	InitSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and tunes a store.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open creates the store for opts.Driver and makes sure its schema exists.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		store Store
		err   error
	)
	switch strings.ToLower(opts.Driver) {
	case DriverSQLite, "":
		store, err = OpenSQLite(ctx, opts, logger)
	case DriverPostgres:
		store, err = OpenPostgres(ctx, opts, logger)
	case DriverMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// DayOf truncates t to its calendar day in UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func matches(row domain.DailyRow, f domain.RowFilter) bool {
	day := DayOf(row.Date)
	if f.DateEq != nil && !day.Equal(DayOf(*f.DateEq)) {
		return false
	}
	if f.DateGte != nil && day.Before(DayOf(*f.DateGte)) {
		return false
	}
	if f.DateLte != nil && day.After(DayOf(*f.DateLte)) {
		return false
	}
	return true
}
