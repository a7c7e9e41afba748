package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/nihalnihalani/EnrichedMMCP/internal/analysis"
	"github.com/nihalnihalani/EnrichedMMCP/internal/client"
	"github.com/nihalnihalani/EnrichedMMCP/internal/config"
	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
	"github.com/nihalnihalani/EnrichedMMCP/internal/services"
	"github.com/nihalnihalani/EnrichedMMCP/internal/storage"
	"github.com/nihalnihalani/EnrichedMMCP/internal/tools"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// backend answers the query commands, either from the local store or from a
// running server.
type backend interface {
	LatestPrices(ctx context.Context) (domain.LatestPrices, error)
	HistoricalAnalysis(ctx context.Context, symbol string, days int) (domain.AnalysisResult, error)
	Compare(ctx context.Context, symbols []string, days int) (domain.ComparisonResult, error)
	Tools(ctx context.Context) ([]json.RawMessage, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
	io.Closer
}

// localBackend runs the market service in process over the configured store.
type localBackend struct {
	store      storage.Store
	service    *services.MarketService
	dispatcher *tools.Dispatcher
}

func openLocal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*localBackend, error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	service := services.NewMarketService(store, nil, nil, services.MarketConfig{
		TopK:           cfg.Analysis.TopK,
		OverviewWindow: cfg.Analysis.OverviewWindow,
	}, logger)
	return &localBackend{
		store:      store,
		service:    service,
		dispatcher: tools.NewDispatcher(service, logger),
	}, nil
}

func (b *localBackend) LatestPrices(ctx context.Context) (domain.LatestPrices, error) {
	return b.service.LatestPrices(ctx)
}

func (b *localBackend) HistoricalAnalysis(ctx context.Context, symbol string, days int) (domain.AnalysisResult, error) {
	res, err := b.service.HistoricalAnalysis(ctx, symbol, days)
	return analysis.RoundedAnalysis(res), err
}

func (b *localBackend) Compare(ctx context.Context, symbols []string, days int) (domain.ComparisonResult, error) {
	res, err := b.service.Compare(ctx, symbols, days)
	return analysis.RoundedComparison(res), err
}

func (b *localBackend) Tools(context.Context) ([]json.RawMessage, error) {
	defs := tools.Definitions(market.Default())
	out := make([]json.RawMessage, 0, len(defs))
	for _, def := range defs {
		raw, err := json.Marshal(def)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (b *localBackend) CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	return b.dispatcher.Call(ctx, name, args)
}

func (b *localBackend) Close() error {
	return b.store.Close()
}

// remoteBackend forwards to a running server.
type remoteBackend struct {
	*client.Client
}

func (b remoteBackend) CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	if len(args) == 0 {
		return b.Client.CallTool(ctx, name, nil)
	}
	return b.Client.CallTool(ctx, name, args)
}

func (remoteBackend) Close() error { return nil }
