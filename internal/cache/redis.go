package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// RedisCache stores analyses as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, apierrors.NewNetworkError("connect to redis", err).WithContext("addr", addr)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.AnalysisResult, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AnalysisResult{}, false, nil
		}
		return domain.AnalysisResult{}, false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	result, err := decode(data)
	if err != nil {
		return domain.AnalysisResult{}, false, err
	}
	return result, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result domain.AnalysisResult) error {
	data, err := encode(result)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encode(result domain.AnalysisResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return data, nil
}

func decode(data []byte) (domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	return result, nil
}
