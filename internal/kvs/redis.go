package kvs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iotgw/device-gateway/internal/gwconfig"
)

// RedisPrimitives adapts a *redis.Client to the Primitives interface.
// Grounded on the teacher's pkg/database.Client: a thin struct wrapping
// the real driver handle, constructed from a typed Config and pinged
// once at startup to fail fast on a bad connection.
type RedisPrimitives struct {
	rdb *redis.Client
}

// NewRedis dials Redis per cfg and verifies connectivity with a PING,
// mirroring pkg/database.NewClient's "open then ping" startup sequence.
func NewRedis(ctx context.Context, cfg gwconfig.RedisConfig) (*RedisPrimitives, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr(), err)
	}

	return &RedisPrimitives{rdb: rdb}, nil
}

func (r *RedisPrimitives) Close() error {
	return r.rdb.Close()
}

// Raw exposes the underlying go-redis client for components that need
// native Redis features the narrow Primitives interface doesn't cover,
// such as internal/relay's pub/sub event tail.
func (r *RedisPrimitives) Raw() *redis.Client {
	return r.rdb
}

func (r *RedisPrimitives) Set(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, key, value, 0).Err()
}

func (r *RedisPrimitives) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisPrimitives) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *RedisPrimitives) LPush(ctx context.Context, key, value string) error {
	return r.rdb.LPush(ctx, key, value).Err()
}

func (r *RedisPrimitives) RPop(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisPrimitives) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (r *RedisPrimitives) ZRem(ctx context.Context, key, member string) error {
	return r.rdb.ZRem(ctx, key, member).Err()
}

func (r *RedisPrimitives) ZRank(ctx context.Context, key, member string) (int64, bool, error) {
	rank, err := r.rdb.ZRank(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

func (r *RedisPrimitives) ZCard(ctx context.Context, key string) (int64, error) {
	return r.rdb.ZCard(ctx, key).Result()
}

func (r *RedisPrimitives) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	return r.rdb.HSet(ctx, key, values...).Err()
}

func (r *RedisPrimitives) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := r.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisPrimitives) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.rdb.HGetAll(ctx, key).Result()
}

func (r *RedisPrimitives) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return r.rdb.HDel(ctx, key, fields...).Err()
}

// Publish implements Publisher via Redis PUBLISH, letting Client.AppendEvent
// mirror events to internal/relay's live WebSocket tail.
func (r *RedisPrimitives) Publish(ctx context.Context, channel, payload string) error {
	return r.rdb.Publish(ctx, channel, payload).Err()
}

// HealthStatus mirrors the teacher's database.HealthStatus shape:
// a PING round-trip plus the underlying pool's connection stats.
type HealthStatus struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	TotalConns   uint32 `json:"total_conns"`
	IdleConns    uint32 `json:"idle_conns"`
}

// Health checks KVS connectivity and reports pool statistics.
func Health(ctx context.Context, rp *RedisPrimitives) (*HealthStatus, error) {
	start := time.Now()
	if err := rp.rdb.Ping(ctx).Err(); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start).Milliseconds()}, err
	}
	stats := rp.rdb.PoolStats()
	return &HealthStatus{
		Status:       "healthy",
		ResponseTime: time.Since(start).Milliseconds(),
		TotalConns:   stats.TotalConns,
		IdleConns:    stats.IdleConns,
	}, nil
}
