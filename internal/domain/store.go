package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market records. The engine remains the source of
// truth; stores record state after each successful operation.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// OrderStore persists resident-order snapshots per book.
type OrderStore interface {
	// ReplaceBook atomically replaces the stored resident orders for a
	// market with the given set.
	ReplaceBook(ctx context.Context, marketID string, orders []Order) error
	ListByMarket(ctx context.Context, marketID string) ([]Order, error)
}

// FillStore persists the append-only fill history.
type FillStore interface {
	InsertBatch(ctx context.Context, fills []Fill) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Fill, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
