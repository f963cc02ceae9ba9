package domain

import (
	"context"
	"time"
)

// BookCache caches order book snapshots for read paths.
type BookCache interface {
	SetSnapshot(ctx context.Context, marketID string, snap BookSnapshot, ttl time.Duration) error
	GetSnapshot(ctx context.Context, marketID string) (BookSnapshot, error)
	Invalidate(ctx context.Context, marketID string) error
}

// RateLimiter provides sliding-window rate limiting.
type RateLimiter interface {
	// Allow reports whether another action under key is permitted within the
	// window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion. The exchange serializes
// conflicting operations on the same market through it.
type LockManager interface {
	// Acquire obtains the lock for key, returning an unlock function. It
	// returns ErrLockHeld if another holder has the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// EventBus publishes fill and resolution events to stream subscribers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload any) error
}
