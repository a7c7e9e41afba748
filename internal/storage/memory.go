package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// MemoryStore keeps rows in a slice sorted by date. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []domain.DailyRow
}

// NewMemoryStore creates a store holding rows.
func NewMemoryStore(rows ...domain.DailyRow) *MemoryStore {
	s := &MemoryStore{}
	s.set(rows)
	return s
}

func (s *MemoryStore) set(rows []domain.DailyRow) {
	sorted := append([]domain.DailyRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})
	s.rows = sorted
}

func (s *MemoryStore) LatestRows(ctx context.Context, limit int) ([]domain.DailyRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > len(s.rows) {
		limit = len(s.rows)
	}
	out := make([]domain.DailyRow, 0, limit)
	for i := len(s.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.rows[i])
	}
	return out, nil
}

func (s *MemoryStore) Rows(ctx context.Context, filter domain.RowFilter) ([]domain.DailyRow, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var selected []domain.DailyRow
	for _, row := range s.rows {
		if matches(row, filter) {
			selected = append(selected, row)
		}
	}
	total := len(selected)
	if filter.Offset >= total {
		return []domain.DailyRow{}, total, nil
	}
	selected = selected[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(selected) {
		selected = selected[:filter.Limit]
	}
	return selected, total, nil
}

func (s *MemoryStore) RowByID(ctx context.Context, id int64) (domain.DailyRow, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyRow{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return domain.DailyRow{}, ErrRowNotFound
}

func (s *MemoryStore) MostRecentDate(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rows) == 0 {
		return time.Time{}, ErrEmpty
	}
	return s.rows[len(s.rows)-1].Date, nil
}

func (s *MemoryStore) ReplaceRows(ctx context.Context, rows []domain.DailyRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(rows)
	return nil
}

func (s *MemoryStore) InitSchema(context.Context) error { return nil }

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }
