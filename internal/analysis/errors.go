package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// Analysis errors. Callers inspect them with errors.Is.
var (
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrNoDataAvailable = errors.New("no data available")
	ErrNoValidSymbols  = errors.New("no valid symbols")
	ErrInvalidWindow   = errors.New("invalid analysis window")
	ErrInvalidInput    = errors.New("invalid input")
)

// Reasons attached to a SymbolError.
const (
	ReasonUnknownSymbol = "unknown_symbol"
	ReasonStoreEmpty    = "store_empty"
	ReasonNoPrices      = "no_prices_in_window"
)

// SymbolError ties an analysis failure to the symbol that caused it.
type SymbolError struct {
	Symbol string
	Reason string
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Symbol, e.Err, e.Reason)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

func unknownSymbol(symbol string) error {
	return &SymbolError{Symbol: symbol, Reason: ReasonUnknownSymbol, Err: ErrUnknownSymbol}
}

func noData(symbol, reason string) error {
	return &SymbolError{Symbol: symbol, Reason: reason, Err: ErrNoDataAvailable}
}

// ComparisonError is returned when every symbol of a comparison failed.
type ComparisonError struct {
	Failures []domain.SymbolFailure
}

func (e *ComparisonError) Error() string {
	symbols := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		symbols[i] = f.Symbol
	}
	return fmt.Sprintf("%s: all %d symbols failed (%s)", ErrNoValidSymbols, len(e.Failures), strings.Join(symbols, ", "))
}

func (e *ComparisonError) Unwrap() error {
	return ErrNoValidSymbols
}

// IsSymbolFailure reports whether err excludes a single symbol from a
// comparison rather than aborting it.
func IsSymbolFailure(err error) bool {
	return errors.Is(err, ErrUnknownSymbol) || errors.Is(err, ErrNoDataAvailable)
}
