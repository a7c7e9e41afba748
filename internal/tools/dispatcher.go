package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nihalnihalani/EnrichedMMCP/internal/analysis"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

var (
	// ErrUnknownTool is returned for a tool name the dispatcher does not serve.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments marks malformed tool arguments. It matches
	// analysis.ErrInvalidInput.
	ErrInvalidArguments = fmt.Errorf("%w: invalid tool arguments", analysis.ErrInvalidInput)
)

// Market is the subset of the market service the tools call.
type Market interface {
	LatestPrices(ctx context.Context) (domain.LatestPrices, error)
	MarketOverview(ctx context.Context) (domain.MarketOverview, error)
	ListRows(ctx context.Context, filter domain.RowFilter) ([]domain.DailyRow, int, error)
	GetRow(ctx context.Context, id int64) (domain.DailyRow, error)
	HistoricalAnalysis(ctx context.Context, symbol string, days int) (domain.AnalysisResult, error)
	Compare(ctx context.Context, symbols []string, days int) (domain.ComparisonResult, error)
}

// Dispatcher executes tool calls against the market service.
type Dispatcher struct {
	market Market
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over market.
func NewDispatcher(market Market, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		market: market,
		logger: logger.With(slog.String("component", "tool_dispatcher")),
	}
}

type stockDataArgs struct {
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	DateEq  string `json:"date_eq"`
	DateGte string `json:"date_gte"`
	DateLte string `json:"date_lte"`
}

type rowArgs struct {
	ID *int64 `json:"id"`
}

type analysisArgs struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`
}

type compareArgs struct {
	Symbols []string `json:"symbols"`
	Days    int      `json:"days"`
}

// Call executes the named tool with JSON arguments and returns the JSON
// result. Empty arguments are treated as an empty object.
func (d *Dispatcher) Call(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error) {
	start := time.Now()
	result, err := d.call(ctx, name, arguments)

	attrs := []any{
		slog.String("tool", name),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		d.logger.WarnContext(ctx, "tool call failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}
	d.logger.DebugContext(ctx, "tool call completed", attrs...)

	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	return out, nil
}

func (d *Dispatcher) call(ctx context.Context, name string, arguments json.RawMessage) (interface{}, error) {
	switch name {
	case ToolStockData:
		var args stockDataArgs
		if err := decodeArgs(arguments, &args); err != nil {
			return nil, err
		}
		filter := domain.RowFilter{Limit: args.Limit, Offset: args.Offset}
		var err error
		if filter.DateEq, err = parseDateArg("date_eq", args.DateEq); err != nil {
			return nil, err
		}
		if filter.DateGte, err = parseDateArg("date_gte", args.DateGte); err != nil {
			return nil, err
		}
		if filter.DateLte, err = parseDateArg("date_lte", args.DateLte); err != nil {
			return nil, err
		}
		rows, total, err := d.market.ListRows(ctx, filter)
		if err != nil {
			return nil, err
		}
		return domain.RowPage{Data: rows, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil

	case ToolStockDataByID:
		var args rowArgs
		if err := decodeArgs(arguments, &args); err != nil {
			return nil, err
		}
		if args.ID == nil {
			return nil, fmt.Errorf("%w: id is required", ErrInvalidArguments)
		}
		return d.market.GetRow(ctx, *args.ID)

	case ToolLatestPrices:
		return d.market.LatestPrices(ctx)

	case ToolMarketOverview:
		return d.market.MarketOverview(ctx)

	case ToolHistoricalAnalysis:
		var args analysisArgs
		if err := decodeArgs(arguments, &args); err != nil {
			return nil, err
		}
		if strings.TrimSpace(args.Symbol) == "" {
			return nil, fmt.Errorf("%w: symbol is required", ErrInvalidArguments)
		}
		result, err := d.market.HistoricalAnalysis(ctx, args.Symbol, orDefault(args.Days))
		if err != nil {
			return nil, err
		}
		return analysis.RoundedAnalysis(result), nil

	case ToolCompareSymbols:
		var args compareArgs
		if err := decodeArgs(arguments, &args); err != nil {
			return nil, err
		}
		result, err := d.market.Compare(ctx, args.Symbols, orDefault(args.Days))
		if err != nil {
			return nil, err
		}
		return analysis.RoundedComparison(result), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func parseDateArg(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidArguments, field)
	}
	return &t, nil
}

// orDefault keeps explicit non-positive windows so the engine rejects them.
func orDefault(days int) int {
	if days == 0 {
		return DefaultDays
	}
	return days
}
