// Package server assembles the HTTP + WebSocket API for the exchange.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/server/handler"
	"github.com/gridironmarkets/gridiron/internal/server/middleware"
	"github.com/gridironmarkets/gridiron/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimitPerSec int    // if zero or no limiter wired, rate limiting is disabled
}

// Handlers aggregates all HTTP handlers the server registers. Accounts may
// be nil, in which case the dev faucet endpoints are not exposed.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Markets  *handler.MarketHandler
	Orders   *handler.OrderHandler
	Accounts *handler.AccountHandler
}

// Server is the HTTP + WebSocket API server for the exchange.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// New creates a Server with all routes registered on the ServeMux and the
// middleware chain (auth, rate limiting, logging, CORS) wired up. limiter
// may be nil.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required when fronted by a probe).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/mint", handlers.Markets.MintPairs)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/redeem", handlers.Markets.Redeem)
	mux.HandleFunc("GET /api/markets/{id}/settlement", handlers.Markets.SettlementReport)

	// Order book and trading.
	mux.HandleFunc("POST /api/markets/{id}/orders", handlers.Orders.PlaceLimitSell)
	mux.HandleFunc("POST /api/markets/{id}/buy", handlers.Orders.MarketBuy)
	mux.HandleFunc("POST /api/markets/{id}/buy-exact", handlers.Orders.BuyExact)
	mux.HandleFunc("GET /api/markets/{id}/book", handlers.Orders.Book)
	mux.HandleFunc("GET /api/markets/{id}/fills", handlers.Orders.Fills)

	// Dev faucet, only when enabled.
	if handlers.Accounts != nil {
		mux.HandleFunc("POST /api/accounts", handlers.Accounts.CreateAccount)
		mux.HandleFunc("GET /api/accounts/{id}/balance", handlers.Accounts.Balance)
		mux.HandleFunc("POST /api/faucet", handlers.Accounts.Fund)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimitPerSec > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerSec, time.Second)(h)
	}
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
