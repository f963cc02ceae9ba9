package handler

import (
	"log/slog"
	"net/http"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

// AccountService defines the dev-faucet operations the account handler
// requires.
type AccountService interface {
	CollateralAsset() domain.AssetID
	CreateAccount(asset domain.AssetID) (domain.AccountID, error)
	Fund(account domain.AccountID, amount uint64) error
	Balance(account domain.AccountID) (uint64, error)
}

// AccountHandler serves development-only account and faucet endpoints. The
// server registers it only when the dev faucet is enabled in config.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and
// logger.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

type createAccountRequest struct {
	Asset string `json:"asset"`
}

// CreateAccount opens a ledger account for the given asset. An empty asset
// defaults to the faucet's collateral asset.
// POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset := domain.AssetID(req.Asset)
	if asset == "" {
		asset = h.accounts.CollateralAsset()
	}

	account, err := h.accounts.CreateAccount(asset)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"account": account,
		"asset":   asset,
	})
}

type fundRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// Fund mints test collateral into an account.
// POST /api/faucet
func (h *AccountHandler) Fund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.Fund(domain.AccountID(req.Account), req.Amount); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"funded":  req.Amount,
	})
}

// Balance reports an account's balance.
// GET /api/accounts/{id}/balance
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	bal, err := h.accounts.Balance(domain.AccountID(id))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": id,
		"balance": bal,
	})
}
