package testutil

import (
	"time"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// FixtureStart is the date of the first generated row.
var FixtureStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// PriceFunc returns the price of the i-th generated row, or nil for a gap.
type PriceFunc func(i int) *float64

// Linear returns start + step*i.
func Linear(start, step float64) PriceFunc {
	return func(i int) *float64 {
		return domain.Float(start + step*float64(i))
	}
}

// Values returns the listed prices and nil past their end.
func Values(prices ...float64) PriceFunc {
	return func(i int) *float64 {
		if i >= len(prices) {
			return nil
		}
		return domain.Float(prices[i])
	}
}

// WithGaps blanks the given row indexes of f.
func WithGaps(f PriceFunc, gaps ...int) PriceFunc {
	skip := make(map[int]bool, len(gaps))
	for _, g := range gaps {
		skip[g] = true
	}
	return func(i int) *float64 {
		if skip[i] {
			return nil
		}
		return f(i)
	}
}

// DailyRows builds n consecutive daily rows, oldest first, with IDs 1..n.
// columns maps a stored column name to its price generator.
func DailyRows(n int, columns map[string]PriceFunc) []domain.DailyRow {
	rows := make([]domain.DailyRow, n)
	for i := range rows {
		rows[i] = domain.DailyRow{ID: int64(i + 1), Date: FixtureStart.AddDate(0, 0, i)}
		for name, f := range columns {
			rows[i].SetColumn(name, f(i))
		}
	}
	return rows
}

// MarketRows returns a small, fully populated set of rows covering the
// instruments most tests touch.
func MarketRows() []domain.DailyRow {
	return DailyRows(5, map[string]PriceFunc{
		domain.ColApplePrice:   Values(100, 101, 102, 104, 105),
		domain.ColAppleVol:     Linear(50_000_000, 1_000_000),
		domain.ColTeslaPrice:   Values(200, 199, 197, 195, 194),
		domain.ColTeslaVol:     Linear(90_000_000, 500_000),
		domain.ColGoldPrice:    Values(2000, 2001, 2002, 2003, 2004),
		domain.ColBitcoinPrice: Values(42000, 43000, 41000, 44000, 46200),
		domain.ColSP500Price:   Linear(4700, 10),
	})
}
