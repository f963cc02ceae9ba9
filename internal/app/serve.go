package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridironmarkets/gridiron/internal/engine"
	"github.com/gridironmarkets/gridiron/internal/ledger"
	"github.com/gridironmarkets/gridiron/internal/server"
	"github.com/gridironmarkets/gridiron/internal/server/handler"
	"github.com/gridironmarkets/gridiron/internal/server/ws"
	"github.com/gridironmarkets/gridiron/internal/service"
)

// Serve builds the exchange engine and the service layer on top of the wired
// dependencies, then runs the WebSocket hub and the HTTP server until the
// context is cancelled.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	l := ledger.NewMemLedger()

	opts := []engine.Option{}
	if a.cfg.Exchange.PriceScale > 0 {
		opts = append(opts, engine.WithPriceScale(a.cfg.Exchange.PriceScale))
	}
	if a.cfg.Exchange.BookCapacity > 0 {
		opts = append(opts, engine.WithBookCapacity(a.cfg.Exchange.BookCapacity))
	}
	ex := engine.New(l, a.logger, opts...)

	// The hub always runs; it is also the event bus when no shared broker
	// is configured.
	hub := ws.NewHub(deps.Relay, a.logger)
	bus := deps.Bus
	if bus == nil {
		bus = hub
	}

	lockTTL := time.Duration(a.cfg.Exchange.LockTTLSeconds) * time.Second
	snapshotTTL := time.Duration(a.cfg.Exchange.SnapshotTTLSeconds) * time.Second

	marketSvc := service.NewMarketService(ex, service.MarketServiceDeps{
		Markets:  deps.MarketStore,
		Fills:    deps.FillStore,
		Audit:    deps.AuditStore,
		Locks:    deps.LockManager,
		Bus:      bus,
		Archiver: deps.Archiver,
		Reports:  deps.Reports,
		LockTTL:  lockTTL,
	}, a.logger)

	tradeSvc := service.NewTradeService(ex, service.TradeServiceDeps{
		Orders:      deps.OrderStore,
		Fills:       deps.FillStore,
		Audit:       deps.AuditStore,
		Cache:       deps.BookCache,
		Locks:       deps.LockManager,
		Bus:         bus,
		LockTTL:     lockTTL,
		SnapshotTTL: snapshotTTL,
	}, a.logger)

	bookCapacity := a.cfg.Exchange.BookCapacity
	if bookCapacity <= 0 {
		bookCapacity = engine.DefaultBookCapacity
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Status:  handler.NewStatusHandler(ex.PriceScale(), bookCapacity, a.cfg.Exchange.DevFaucet),
		Markets: handler.NewMarketHandler(marketSvc, a.logger),
		Orders:  handler.NewOrderHandler(tradeSvc, a.logger),
	}

	// Dev faucet, only for local development setups. It mints unbacked
	// collateral, so production configs keep it off.
	if a.cfg.Exchange.DevFaucet {
		faucet, err := a.buildFaucet(l)
		if err != nil {
			return err
		}
		handlers.Accounts = handler.NewAccountHandler(faucet, a.logger)
		a.logger.WarnContext(ctx, "dev faucet enabled; collateral can be minted freely")
	}

	srv := server.New(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerSec: a.cfg.Server.RateLimitPerSec,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// buildFaucet creates the faucet's minting capability and collateral asset on
// the fresh ledger.
func (a *App) buildFaucet(l *ledger.MemLedger) (*service.DevFaucet, error) {
	auth := l.NewAuthority()
	collateral, err := l.CreateAsset(auth)
	if err != nil {
		return nil, fmt.Errorf("app: create collateral asset: %w", err)
	}
	a.logger.Info("dev collateral asset created",
		slog.String("asset", string(collateral)))
	return service.NewDevFaucet(l, auth, collateral, a.logger), nil
}
