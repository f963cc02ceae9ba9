package service

import (
	"fmt"
	"log/slog"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/ledger"
)

// DevFaucet opens ledger accounts and hands out test collateral. It exists
// for development and demo deployments only and must not be wired in
// production; the server gates its endpoints behind a config flag.
type DevFaucet struct {
	ledger     ledger.Ledger
	authority  ledger.Authority
	collateral domain.AssetID
	logger     *slog.Logger
}

// NewDevFaucet creates a DevFaucet that mints the given collateral asset
// under the given authority.
func NewDevFaucet(l ledger.Ledger, authority ledger.Authority, collateral domain.AssetID, logger *slog.Logger) *DevFaucet {
	return &DevFaucet{ledger: l, authority: authority, collateral: collateral, logger: logger}
}

// CollateralAsset returns the asset the faucet mints.
func (f *DevFaucet) CollateralAsset() domain.AssetID {
	return f.collateral
}

// CreateAccount opens a non-custodial account holding the given asset.
func (f *DevFaucet) CreateAccount(asset domain.AssetID) (domain.AccountID, error) {
	account, err := f.ledger.CreateAccount(asset, nil)
	if err != nil {
		return "", fmt.Errorf("dev_faucet: create account: %w", err)
	}
	return account, nil
}

// Fund mints amount collateral into the given account.
func (f *DevFaucet) Fund(account domain.AccountID, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("dev_faucet: fund: %w", domain.ErrInvalidAmount)
	}
	if err := f.ledger.Mint(f.authority, f.collateral, account, amount); err != nil {
		return fmt.Errorf("dev_faucet: fund: %w", err)
	}
	f.logger.Info("faucet funded account",
		slog.String("account", string(account)),
		slog.Uint64("amount", amount),
	)
	return nil
}

// Balance reports the current balance of an account.
func (f *DevFaucet) Balance(account domain.AccountID) (uint64, error) {
	bal, err := f.ledger.Balance(account)
	if err != nil {
		return 0, fmt.Errorf("dev_faucet: balance: %w", err)
	}
	return bal, nil
}
