// Package kvs wraps a Redis-like key-value store behind the narrow,
// single-key-atomic interface the device gateway's two frontends share
// (spec §4.5): set/get, list push/pop, sorted-set membership, hash
// fields, and del. All higher-level device/session semantics build on
// top of this primitive interface in registry.go, so the same logic
// runs against either the real go-redis client or the in-memory fake
// in kvstest for unit tests.
package kvs

import (
	"context"
	"time"
)

// Primitives is the narrow set of single-key atomic commands the wrapper
// assumes the underlying store provides.
type Primitives interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, keys ...string) error

	LPush(ctx context.Context, key, value string) error
	RPop(ctx context.Context, key string) (string, bool, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key, member string) error
	ZRank(ctx context.Context, key, member string) (int64, bool, error)
	ZCard(ctx context.Context, key string) (int64, error)

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error

	// Close releases any resources held by the backing store.
	Close() error
}

// Publisher is an optional capability a Primitives backend may offer
// beyond the core spec'd operations: a pub/sub broadcast used solely
// to mirror appended events for internal/relay's live WebSocket tail.
// It is intentionally not part of Primitives — relay is an ambient
// supplement, not one of the single-key operations spec §4.5 names.
type Publisher interface {
	Publish(ctx context.Context, channel, payload string) error
}

// Client is the device gateway's KVS wrapper. It embeds Primitives so
// callers can still reach the raw commands, and adds the compound
// operations and timestamp conventions both frontends rely on.
type Client struct {
	Primitives
}

// New wraps an existing Primitives implementation (a real redis.Client
// adapter or a kvstest.Fake) in the gateway's convenience layer.
func New(p Primitives) *Client {
	return &Client{Primitives: p}
}

// NowScore returns the current time as a sorted-set score with
// microsecond resolution, per spec §3's "seconds since epoch,
// microsecond fraction" score convention.
func NowScore() float64 {
	return float64(time.Now().UnixMicro()) / 1e6
}

// NowField formats the current time the way it is stored in device
// status hash fields (borntime/toggletime): a fixed-precision decimal
// string of the same score.
func NowField() string {
	return formatScore(NowScore())
}

// ZAddWithNow adds member to the sorted set at key, scored by the
// current time. Named after the teacher's compound-operation
// convention (spec §4.5).
func (c *Client) ZAddWithNow(ctx context.Context, key, member string) error {
	return c.ZAdd(ctx, key, NowScore(), member)
}

// HSetOnlineWithToggletime atomically (single HSET call) updates a
// device status hash's online flag and toggletime together, the
// compound operation spec §4.5 names explicitly.
func (c *Client) HSetOnlineWithToggletime(ctx context.Context, sn string, online bool) error {
	return c.HSet(ctx, StatusKey(sn), map[string]string{
		FieldOnline:     onlineString(online),
		FieldToggletime: NowField(),
	})
}
