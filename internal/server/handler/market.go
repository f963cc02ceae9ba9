package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/engine"
)

// MarketService defines the lifecycle operations the market handler requires
// from the service layer.
type MarketService interface {
	CreateMarket(ctx context.Context, authority string, collateral domain.AssetID, expiryTS int64) (domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	MintPairs(ctx context.Context, req engine.MintRequest) error
	Resolve(ctx context.Context, marketID, caller string, outcome domain.Outcome) (domain.Market, error)
	Redeem(ctx context.Context, req engine.RedeemRequest) (uint64, error)
	SettlementReport(ctx context.Context, marketID string) (io.ReadCloser, error)
}

// MarketHandler serves market lifecycle endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

type createMarketRequest struct {
	Authority       string `json:"authority"`
	CollateralAsset string `json:"collateral_asset"`
	ExpiryTS        int64  `json:"expiry_ts"`
}

// CreateMarket creates a new binary market and its order book.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Authority == "" || req.CollateralAsset == "" {
		writeError(w, http.StatusBadRequest, "authority and collateral_asset are required")
		return
	}

	m, err := h.markets.CreateMarket(r.Context(), req.Authority, domain.AssetID(req.CollateralAsset), req.ExpiryTS)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMarkets returns markets with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type mintRequest struct {
	User           string `json:"user"`
	UserCollateral string `json:"user_collateral"`
	UserYes        string `json:"user_yes"`
	UserNo         string `json:"user_no"`
	Amount         uint64 `json:"amount"`
}

// MintPairs deposits collateral and mints equal yes/no claims.
// POST /api/markets/{id}/mint
func (h *MarketHandler) MintPairs(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.markets.MintPairs(r.Context(), engine.MintRequest{
		MarketID:       id,
		User:           req.User,
		UserCollateral: domain.AccountID(req.UserCollateral),
		UserYes:        domain.AccountID(req.UserYes),
		UserNo:         domain.AccountID(req.UserNo),
		Amount:         req.Amount,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"minted":    req.Amount,
	})
}

type resolveRequest struct {
	Caller  string `json:"caller"`
	Outcome string `json:"outcome"`
}

// Resolve finalizes the market outcome.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.markets.Resolve(r.Context(), id, req.Caller, domain.Outcome(req.Outcome))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type redeemRequest struct {
	User           string `json:"user"`
	UserCollateral string `json:"user_collateral"`
	UserYes        string `json:"user_yes"`
	UserNo         string `json:"user_no"`
}

// Redeem swaps the caller's entire winning-side balance for collateral.
// POST /api/markets/{id}/redeem
func (h *MarketHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := h.markets.Redeem(r.Context(), engine.RedeemRequest{
		MarketID:       id,
		User:           req.User,
		UserCollateral: domain.AccountID(req.UserCollateral),
		UserYes:        domain.AccountID(req.UserYes),
		UserNo:         domain.AccountID(req.UserNo),
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"redeemed":  amount,
	})
}

// SettlementReport streams the archived JSONL settlement report for a
// resolved market.
// GET /api/markets/{id}/settlement
func (h *MarketHandler) SettlementReport(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	rc, err := h.markets.SettlementReport(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "handler: stream settlement report",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}
