// Package cache stores computed analyses keyed by symbol, window and the
// most recent stored date. A newer date yields a different key, so entries
// become unreachable as soon as the store advances.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// Backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// AnalysisCache is a best-effort result cache.
type AnalysisCache interface {
	// Get reports whether key was present.
	Get(ctx context.Context, key string) (domain.AnalysisResult, bool, error)
	Set(ctx context.Context, key string, result domain.AnalysisResult) error
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and tunes a cache backend.
type Options struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Key builds the cache key of one analysis.
func Key(symbol string, days int, latest time.Time) string {
	return fmt.Sprintf("analysis:%s:%d:%s", strings.ToUpper(symbol), days, latest.Format("2006-01-02"))
}

// New returns the configured backend, or nil when caching is disabled.
func New(ctx context.Context, opts Options, logger *slog.Logger) (AnalysisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(opts.Backend) {
	case BackendNone, "":
		return nil, nil
	case BackendMemory:
		return NewMemoryCache(opts.TTL), nil
	case BackendRedis:
		c, err := NewRedisCache(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.TTL)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "redis analysis cache connected", slog.String("addr", opts.RedisAddr))
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", opts.Backend)
	}
}
