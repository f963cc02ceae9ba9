package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

// BookCache implements domain.BookCache by storing each book snapshot as a
// single JSON value with a TTL.
//
// The book is small (bounded capacity) and its order is positional rather
// than price-sorted, so a whole-snapshot value is both simpler and more
// faithful than per-level sorted sets: readers always see a book state that
// actually existed.
//
// Key schema:
//
//	book:{marketID} - JSON-encoded domain.BookSnapshot
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookKey(marketID string) string {
	return "book:" + marketID
}

// SetSnapshot stores the snapshot for a market, replacing any previous one.
func (bc *BookCache) SetSnapshot(ctx context.Context, marketID string, snap domain.BookSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal book snapshot %s: %w", marketID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(marketID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book snapshot %s: %w", marketID, err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot for a market. It returns
// domain.ErrNotFound when no snapshot exists or it has expired.
func (bc *BookCache) GetSnapshot(ctx context.Context, marketID string) (domain.BookSnapshot, error) {
	data, err := bc.rdb.Get(ctx, bookKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BookSnapshot{}, domain.ErrNotFound
		}
		return domain.BookSnapshot{}, fmt.Errorf("redis: get book snapshot %s: %w", marketID, err)
	}

	var snap domain.BookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("redis: unmarshal book snapshot %s: %w", marketID, err)
	}
	return snap, nil
}

// Invalidate removes the cached snapshot for a market.
func (bc *BookCache) Invalidate(ctx context.Context, marketID string) error {
	if err := bc.rdb.Del(ctx, bookKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate book snapshot %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
