package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"fortunex-api/internal/model"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "snapshot:"

// SnapshotCache keeps the last pair seen for a normalized query so repeated
// lookups do not hit the market data API.
type SnapshotCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, query string) (*model.Pair, error)
	Set(ctx context.Context, query string, pair *model.Pair) error
}

type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SnapshotCache = (*RedisSnapshotCache)(nil)

func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

// key keeps the query's case: base58 addresses are case sensitive.
func key(query string) string {
	return keyPrefix + strings.TrimSpace(query)
}

func (r *RedisSnapshotCache) Get(ctx context.Context, query string) (*model.Pair, error) {
	data, err := r.client.Get(ctx, key(query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var pair model.Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &pair, nil
}

func (r *RedisSnapshotCache) Set(ctx context.Context, query string, pair *model.Pair) error {
	if pair == nil {
		return nil
	}

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return r.client.Set(ctx, key(query), data, r.ttl).Err()
}

// Nop never stores anything. Used when no redis address is configured.
type Nop struct{}

var _ SnapshotCache = Nop{}

func (Nop) Get(context.Context, string) (*model.Pair, error) { return nil, nil }
func (Nop) Set(context.Context, string, *model.Pair) error   { return nil }
