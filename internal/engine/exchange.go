// Package engine implements the exchange core: market lifecycle and
// collateral accounting, the resident order book, and the matching engine.
// All value movement is delegated to the ledger substrate; multi-leg
// operations run inside ledger.Transact so no failure leaves a partial
// effect. The engine has no internal concurrency of its own: a single mutex
// serializes every public operation, standing in for the substrate that
// serializes conflicting work in a deployed system.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/ledger"
	"github.com/gridironmarkets/gridiron/internal/price"
)

// DefaultBookCapacity bounds the number of resident orders per book.
const DefaultBookCapacity = 100

// marketState pairs a market record with the capability and book that only
// the engine may touch.
type marketState struct {
	market domain.Market
	auth   ledger.Authority // controls vault, claim mints, and side-vaults
	book   *book
}

// Exchange is the exchange core. It owns all market records and order books
// exclusively; callers only ever see snapshots.
type Exchange struct {
	mu       sync.Mutex
	ledger   ledger.Ledger
	scale    uint64
	capacity int
	now      func() time.Time
	logger   *slog.Logger
	markets  map[string]*marketState
}

// Option configures an Exchange.
type Option func(*Exchange)

// WithPriceScale sets the fixed-point price denominator. Non-positive values
// are ignored.
func WithPriceScale(scale uint64) Option {
	return func(e *Exchange) {
		if scale > 0 {
			e.scale = scale
		}
	}
}

// WithBookCapacity sets the resident-order capacity for new books.
func WithBookCapacity(n int) Option {
	return func(e *Exchange) {
		if n > 0 {
			e.capacity = n
		}
	}
}

// WithClock overrides the engine's clock, used to gate expiry. Tests use
// this to step time deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Exchange) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Exchange on top of the given ledger.
func New(l ledger.Ledger, logger *slog.Logger, opts ...Option) *Exchange {
	e := &Exchange{
		ledger:   l,
		scale:    price.DefaultScale,
		capacity: DefaultBookCapacity,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "engine")),
		markets:  make(map[string]*marketState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PriceScale returns the configured fixed-point denominator.
func (e *Exchange) PriceScale() uint64 {
	return e.scale
}

// Market returns a snapshot of the market record.
func (e *Exchange) Market(id string) (domain.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("engine: market %s: %w", id, domain.ErrNotFound)
	}
	return ms.market, nil
}

// Markets returns snapshots of all market records.
func (e *Exchange) Markets() []domain.Market {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Market, 0, len(e.markets))
	for _, ms := range e.markets {
		out = append(out, ms.market)
	}
	return out
}

func (e *Exchange) state(id string) (*marketState, error) {
	ms, ok := e.markets[id]
	if !ok {
		return nil, fmt.Errorf("engine: market %s: %w", id, domain.ErrNotFound)
	}
	return ms, nil
}

func newMarketID() string {
	return "mkt-" + uuid.New().String()
}
