package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/engine"
)

// TradeService defines the book and matching operations the order handler
// requires from the service layer.
type TradeService interface {
	PlaceLimitSell(ctx context.Context, req engine.SellRequest) (domain.Order, error)
	MarketBuy(ctx context.Context, req engine.BuyRequest) ([]domain.Fill, error)
	BuyExact(ctx context.Context, req engine.BuyExactRequest) ([]domain.Fill, error)
	Book(ctx context.Context, marketID string) (domain.BookSnapshot, error)
	Fills(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Fill, error)
}

// OrderHandler serves order book and trading endpoints.
type OrderHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(trades TradeService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		trades: trades,
		logger: logger,
	}
}

type placeSellRequest struct {
	Seller      string `json:"seller"`
	SellerClaim string `json:"seller_claim"`
	Payout      string `json:"payout"`
	Price       uint64 `json:"price"`
	Quantity    uint64 `json:"quantity"`
	Side        string `json:"side"`
}

// PlaceLimitSell escrows claims and appends a resting sell order.
// POST /api/markets/{id}/orders
func (h *OrderHandler) PlaceLimitSell(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req placeSellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.trades.PlaceLimitSell(r.Context(), engine.SellRequest{
		MarketID:    id,
		Seller:      req.Seller,
		SellerClaim: domain.AccountID(req.SellerClaim),
		Payout:      domain.AccountID(req.Payout),
		Price:       req.Price,
		Quantity:    req.Quantity,
		Side:        domain.Side(req.Side),
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

type buyRequest struct {
	Buyer           string   `json:"buyer"`
	BuyerCollateral string   `json:"buyer_collateral"`
	BuyerClaim      string   `json:"buyer_claim"`
	Quantity        uint64   `json:"quantity"`
	Side            string   `json:"side"`
	Payouts         []string `json:"payouts"`

	// MaxPrice caps per-unit price for exact buys; ignored for market buys.
	MaxPrice uint64 `json:"max_price"`
}

func (req buyRequest) engineRequest(marketID string) engine.BuyRequest {
	payouts := make([]domain.AccountID, 0, len(req.Payouts))
	for _, p := range req.Payouts {
		payouts = append(payouts, domain.AccountID(p))
	}
	return engine.BuyRequest{
		MarketID:        marketID,
		Buyer:           req.Buyer,
		BuyerCollateral: domain.AccountID(req.BuyerCollateral),
		BuyerClaim:      domain.AccountID(req.BuyerClaim),
		Quantity:        req.Quantity,
		Side:            domain.Side(req.Side),
		Payouts:         payouts,
	}
}

type buyResponse struct {
	MarketID string        `json:"market_id"`
	Filled   uint64        `json:"filled"`
	Cost     uint64        `json:"cost"`
	Fills    []domain.Fill `json:"fills"`
}

func newBuyResponse(marketID string, fills []domain.Fill) buyResponse {
	resp := buyResponse{MarketID: marketID, Fills: fills}
	if resp.Fills == nil {
		resp.Fills = []domain.Fill{}
	}
	for _, f := range fills {
		resp.Filled += f.Quantity
		resp.Cost += f.Cost
	}
	return resp
}

// MarketBuy fills up to the requested quantity at the resident orders' asks.
// POST /api/markets/{id}/buy
func (h *OrderHandler) MarketBuy(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req buyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fills, err := h.trades.MarketBuy(r.Context(), req.engineRequest(id))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBuyResponse(id, fills))
}

// BuyExact fills exactly the requested quantity with every fill at or under
// max_price, or fails without effect.
// POST /api/markets/{id}/buy-exact
func (h *OrderHandler) BuyExact(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req buyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fills, err := h.trades.BuyExact(r.Context(), engine.BuyExactRequest{
		BuyRequest: req.engineRequest(id),
		MaxPrice:   req.MaxPrice,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBuyResponse(id, fills))
}

// Book returns the market's order book snapshot.
// GET /api/markets/{id}/book
func (h *OrderHandler) Book(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	snap, err := h.trades.Book(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Fills returns the recorded fill history for a market, newest first.
// GET /api/markets/{id}/fills?limit=50&offset=0
func (h *OrderHandler) Fills(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	opts := parseListOpts(r)

	fills, err := h.trades.Fills(r.Context(), id, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if fills == nil {
		fills = []domain.Fill{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"fills":     fills,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}
