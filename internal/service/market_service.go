package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/engine"
)

// MarketServiceDeps carries the side channels for a MarketService. Any field
// may be nil.
type MarketServiceDeps struct {
	Markets  domain.MarketStore
	Fills    domain.FillStore
	Audit    domain.AuditStore
	Locks    domain.LockManager
	Bus      domain.EventBus
	Archiver domain.SettlementArchiver
	Reports  domain.SettlementReader
	LockTTL  time.Duration
}

// MarketService handles market lifecycle and collateral accounting: create,
// mint pairs, resolve, redeem.
type MarketService struct {
	ex     *engine.Exchange
	deps   MarketServiceDeps
	logger *slog.Logger
}

// NewMarketService creates a MarketService around the given engine.
func NewMarketService(ex *engine.Exchange, deps MarketServiceDeps, logger *slog.Logger) *MarketService {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 10 * time.Second
	}
	return &MarketService{ex: ex, deps: deps, logger: logger}
}

// CreateMarket creates a market and its order book, persists the record, and
// announces it on the event bus.
func (s *MarketService) CreateMarket(ctx context.Context, authority string, collateral domain.AssetID, expiryTS int64) (domain.Market, error) {
	m, err := s.ex.CreateMarket(authority, collateral, expiryTS)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}
	if _, err := s.ex.InitOrderBook(m.ID); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: init book: %w", err)
	}

	s.persistMarket(ctx, m)
	s.auditLog(ctx, "market.created", map[string]any{
		"market":    m.ID,
		"authority": authority,
		"expiry_ts": expiryTS,
	})
	s.publish(ctx, ChannelMarkets, MarketEvent{Market: m})

	return m, nil
}

// GetMarket returns the market record. The engine is authoritative; the
// persistent store answers for markets the engine no longer holds.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.ex.Market(id)
	if err == nil {
		return m, nil
	}
	if s.deps.Markets == nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}

	m, err = s.deps.Markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}
	return m, nil
}

// ListMarkets returns market records, from the store when one is wired.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	if s.deps.Markets != nil {
		markets, err := s.deps.Markets.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("market_service: list: %w", err)
		}
		return markets, nil
	}
	return s.ex.Markets(), nil
}

// MintPairs deposits collateral and mints equal yes/no claims to the user.
func (s *MarketService) MintPairs(ctx context.Context, req engine.MintRequest) error {
	err := s.withMarketLock(ctx, req.MarketID, func() error {
		return s.ex.MintPairs(req)
	})
	if err != nil {
		return fmt.Errorf("market_service: mint pairs: %w", err)
	}

	s.auditLog(ctx, "market.mint_pairs", map[string]any{
		"market": req.MarketID,
		"user":   req.User,
		"amount": req.Amount,
	})
	return nil
}

// Resolve finalizes the market outcome, archives the settlement report, and
// announces the resolution.
func (s *MarketService) Resolve(ctx context.Context, marketID, caller string, outcome domain.Outcome) (domain.Market, error) {
	var m domain.Market
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		m, err = s.ex.ResolveMarket(marketID, caller, outcome)
		return err
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: resolve: %w", err)
	}

	s.persistMarket(ctx, m)
	s.auditLog(ctx, "market.resolved", map[string]any{
		"market":  marketID,
		"caller":  caller,
		"outcome": string(outcome),
	})

	archivePath := s.archiveSettlement(ctx, m)
	s.publish(ctx, ChannelResolutions, ResolutionEvent{
		MarketID:    marketID,
		Outcome:     m.Outcome,
		ArchivePath: archivePath,
	})

	return m, nil
}

// Redeem swaps the user's entire winning-side balance for collateral and
// returns the amount paid out.
func (s *MarketService) Redeem(ctx context.Context, req engine.RedeemRequest) (uint64, error) {
	var amount uint64
	err := s.withMarketLock(ctx, req.MarketID, func() error {
		var err error
		amount, err = s.ex.Redeem(req)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("market_service: redeem: %w", err)
	}

	s.auditLog(ctx, "market.redeemed", map[string]any{
		"market": req.MarketID,
		"user":   req.User,
		"amount": amount,
	})
	return amount, nil
}

// SettlementReport streams the archived settlement report for a resolved
// market. The caller must close the returned reader.
func (s *MarketService) SettlementReport(ctx context.Context, marketID string) (io.ReadCloser, error) {
	m, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Status != domain.MarketStatusResolved {
		return nil, fmt.Errorf("market_service: settlement report %q: %w", marketID, domain.ErrMarketNotResolved)
	}
	if s.deps.Reports == nil {
		return nil, fmt.Errorf("market_service: settlement report %q: %w", marketID, domain.ErrNotFound)
	}
	rc, err := s.deps.Reports.OpenSettlement(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("market_service: settlement report %q: %w", marketID, err)
	}
	return rc, nil
}

// withMarketLock serializes an operation on one market across instances. A
// nil lock manager degrades to running the operation directly; the engine's
// own mutex still protects in-process state.
func (s *MarketService) withMarketLock(ctx context.Context, marketID string, fn func() error) error {
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

// persistMarket mirrors the engine's market record into the store. The
// engine already committed, so store failures are logged rather than
// surfaced to the caller.
func (s *MarketService) persistMarket(ctx context.Context, m domain.Market) {
	if s.deps.Markets == nil {
		return
	}
	if err := s.deps.Markets.Upsert(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: persist market failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) archiveSettlement(ctx context.Context, m domain.Market) string {
	if s.deps.Archiver == nil {
		return ""
	}

	var fills []domain.Fill
	if s.deps.Fills != nil {
		var err error
		fills, err = s.deps.Fills.ListByMarket(ctx, m.ID, domain.ListOpts{})
		if err != nil {
			s.logger.WarnContext(ctx, "market_service: load fills for settlement failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	path, err := s.deps.Archiver.ArchiveSettlement(ctx, m, fills)
	if err != nil {
		s.logger.WarnContext(ctx, "market_service: settlement archive failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return path
}

func (s *MarketService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) publish(ctx context.Context, channel string, payload any) {
	if s.deps.Bus == nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
