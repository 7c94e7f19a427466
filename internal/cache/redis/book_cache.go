package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mintbook/mintbook/internal/domain"
)

// defaultSnapshotTTL bounds staleness when invalidation is missed; the read
// path rebuilds from the store on a miss.
const defaultSnapshotTTL = 30 * time.Second

// BookCache implements domain.BookCache by storing each market's order-book
// snapshot as one JSON value under a TTL.
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying(), ttl: defaultSnapshotTTL}
}

// WithTTL overrides the snapshot expiry.
func (bc *BookCache) WithTTL(ttl time.Duration) *BookCache {
	if ttl > 0 {
		bc.ttl = ttl
	}
	return bc
}

func bookKey(marketID string) string {
	return "book:" + marketID
}

// SetSnapshot stores the snapshot, replacing any previous one.
func (bc *BookCache) SetSnapshot(ctx context.Context, marketID string, snap domain.OrderBookSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal book snapshot %s: %w", marketID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(marketID), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book snapshot %s: %w", marketID, err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot, or domain.ErrNotFound on a miss.
func (bc *BookCache) GetSnapshot(ctx context.Context, marketID string) (domain.OrderBookSnapshot, error) {
	data, err := bc.rdb.Get(ctx, bookKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderBookSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get book snapshot %s: %w", marketID, err)
	}
	var snap domain.OrderBookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: unmarshal book snapshot %s: %w", marketID, err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot for a market.
func (bc *BookCache) Invalidate(ctx context.Context, marketID string) error {
	if err := bc.rdb.Del(ctx, bookKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate book snapshot %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
