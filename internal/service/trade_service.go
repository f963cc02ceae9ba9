package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/engine"
)

// TradeServiceDeps carries the side channels for a TradeService. Any field
// may be nil.
type TradeServiceDeps struct {
	Orders      domain.OrderStore
	Fills       domain.FillStore
	Audit       domain.AuditStore
	Cache       domain.BookCache
	Locks       domain.LockManager
	Bus         domain.EventBus
	LockTTL     time.Duration
	SnapshotTTL time.Duration
}

// TradeService handles the order book and matching paths: limit sells,
// market buys, price-capped buys, and book reads.
type TradeService struct {
	ex     *engine.Exchange
	deps   TradeServiceDeps
	logger *slog.Logger
}

// NewTradeService creates a TradeService around the given engine.
func NewTradeService(ex *engine.Exchange, deps TradeServiceDeps, logger *slog.Logger) *TradeService {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 10 * time.Second
	}
	if deps.SnapshotTTL <= 0 {
		deps.SnapshotTTL = 30 * time.Second
	}
	return &TradeService{ex: ex, deps: deps, logger: logger}
}

// PlaceLimitSell escrows the seller's claims and appends the order.
func (s *TradeService) PlaceLimitSell(ctx context.Context, req engine.SellRequest) (domain.Order, error) {
	var order domain.Order
	err := s.withMarketLock(ctx, req.MarketID, func() error {
		var err error
		order, err = s.ex.PlaceLimitSell(req)
		return err
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("trade_service: place limit sell: %w", err)
	}

	s.syncBook(ctx, req.MarketID)
	s.auditLog(ctx, "order.placed", map[string]any{
		"market":   req.MarketID,
		"order_id": order.ID,
		"seller":   req.Seller,
		"side":     string(req.Side),
		"price":    req.Price,
		"quantity": req.Quantity,
	})
	return order, nil
}

// MarketBuy fills up to the requested quantity at whatever the resident
// orders ask, and reports the fills.
func (s *TradeService) MarketBuy(ctx context.Context, req engine.BuyRequest) ([]domain.Fill, error) {
	var fills []domain.Fill
	err := s.withMarketLock(ctx, req.MarketID, func() error {
		var err error
		fills, err = s.ex.MarketBuy(req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("trade_service: market buy: %w", err)
	}

	s.recordFills(ctx, req, fills)
	return fills, nil
}

// BuyExact fills exactly the requested quantity with every fill at or under
// the price cap, or nothing at all.
func (s *TradeService) BuyExact(ctx context.Context, req engine.BuyExactRequest) ([]domain.Fill, error) {
	var fills []domain.Fill
	err := s.withMarketLock(ctx, req.MarketID, func() error {
		var err error
		fills, err = s.ex.BuyExact(req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("trade_service: buy exact: %w", err)
	}

	s.recordFills(ctx, req.BuyRequest, fills)
	return fills, nil
}

// Book returns the market's book snapshot, served from cache when fresh.
func (s *TradeService) Book(ctx context.Context, marketID string) (domain.BookSnapshot, error) {
	if s.deps.Cache != nil {
		snap, err := s.deps.Cache.GetSnapshot(ctx, marketID)
		if err == nil {
			return snap, nil
		}
	}

	snap, err := s.ex.BookSnapshot(marketID)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("trade_service: book %q: %w", marketID, err)
	}

	if s.deps.Cache != nil {
		if cacheErr := s.deps.Cache.SetSnapshot(ctx, marketID, snap, s.deps.SnapshotTTL); cacheErr != nil {
			s.logger.WarnContext(ctx, "trade_service: cache set failed",
				slog.String("market_id", marketID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return snap, nil
}

// Fills returns the recorded fill history for a market, newest first.
func (s *TradeService) Fills(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Fill, error) {
	if s.deps.Fills == nil {
		return nil, nil
	}
	fills, err := s.deps.Fills.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: fills %q: %w", marketID, err)
	}
	return fills, nil
}

// recordFills persists fills, refreshes the stored book, and announces the
// trade. The engine has already committed, so failures here are logged.
func (s *TradeService) recordFills(ctx context.Context, req engine.BuyRequest, fills []domain.Fill) {
	s.syncBook(ctx, req.MarketID)
	if len(fills) == 0 {
		return
	}

	if s.deps.Fills != nil {
		if err := s.deps.Fills.InsertBatch(ctx, fills); err != nil {
			s.logger.WarnContext(ctx, "trade_service: persist fills failed",
				slog.String("market_id", req.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.auditLog(ctx, "trade.filled", map[string]any{
		"market": req.MarketID,
		"buyer":  req.Buyer,
		"side":   string(req.Side),
		"fills":  len(fills),
	})
	s.publish(ctx, ChannelFills, FillEvent{
		MarketID: req.MarketID,
		Buyer:    req.Buyer,
		Side:     req.Side,
		Fills:    fills,
	})
}

// syncBook mirrors the engine's book into the order store and refreshes the
// snapshot cache after a mutation.
func (s *TradeService) syncBook(ctx context.Context, marketID string) {
	if s.deps.Orders == nil && s.deps.Cache == nil {
		return
	}

	snap, err := s.ex.BookSnapshot(marketID)
	if err != nil {
		s.logger.WarnContext(ctx, "trade_service: book snapshot failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.deps.Orders != nil {
		if err := s.deps.Orders.ReplaceBook(ctx, marketID, snap.Orders); err != nil {
			s.logger.WarnContext(ctx, "trade_service: persist book failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetSnapshot(ctx, marketID, snap, s.deps.SnapshotTTL); err != nil {
			s.logger.WarnContext(ctx, "trade_service: cache book failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *TradeService) withMarketLock(ctx context.Context, marketID string, fn func() error) error {
	if s.deps.Locks == nil {
		return fn()
	}
	unlock, err := s.deps.Locks.Acquire(ctx, "market:"+marketID, s.deps.LockTTL)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *TradeService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "trade_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) publish(ctx context.Context, channel string, payload any) {
	if s.deps.Bus == nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "trade_service: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
