package engine

import (
	"fmt"
	"log/slog"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/ledger"
)

// MintRequest asks the engine to mint amount paired yes/no claims against
// collateral. Every account the operation touches is stated explicitly and
// checked against the identities recorded on the market.
type MintRequest struct {
	MarketID       string
	User           string
	UserCollateral domain.AccountID // debited
	UserYes        domain.AccountID // credited with yes claims
	UserNo         domain.AccountID // credited with no claims
	Amount         uint64
}

// RedeemRequest asks the engine to redeem the caller's entire winning-side
// balance for collateral.
type RedeemRequest struct {
	MarketID       string
	User           string
	UserCollateral domain.AccountID // receives collateral
	UserYes        domain.AccountID
	UserNo         domain.AccountID
}

// CreateMarket creates a new market: fresh yes/no claim assets and a
// collateral vault, all controlled by a capability held only by the engine.
// The expiry must be strictly in the future.
func (e *Exchange) CreateMarket(authority string, collateral domain.AssetID, expiryTS int64) (domain.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if expiryTS <= 0 || expiryTS <= now.Unix() {
		return domain.Market{}, fmt.Errorf("engine: expiry %d: %w", expiryTS, domain.ErrInvalidExpiry)
	}

	auth := e.ledger.NewAuthority()

	var m domain.Market
	err := e.ledger.Transact(func(tx ledger.Ledger) error {
		yesAsset, err := tx.CreateAsset(auth)
		if err != nil {
			return fmt.Errorf("engine: create yes asset: %w", err)
		}
		noAsset, err := tx.CreateAsset(auth)
		if err != nil {
			return fmt.Errorf("engine: create no asset: %w", err)
		}
		vault, err := tx.CreateAccount(collateral, &auth)
		if err != nil {
			return fmt.Errorf("engine: create vault: %w", err)
		}

		m = domain.Market{
			ID:              newMarketID(),
			Authority:       authority,
			CollateralAsset: collateral,
			YesAsset:        yesAsset,
			NoAsset:         noAsset,
			Vault:           vault,
			ExpiryTS:        expiryTS,
			Status:          domain.MarketStatusOpen,
			Outcome:         domain.OutcomePending,
			CreatedAt:       now.UTC(),
		}
		return nil
	})
	if err != nil {
		return domain.Market{}, err
	}

	e.markets[m.ID] = &marketState{market: m, auth: auth}

	e.logger.Info("market created",
		slog.String("market_id", m.ID),
		slog.String("authority", authority),
		slog.Int64("expiry_ts", expiryTS),
	)
	return m, nil
}

// MintPairs moves Amount collateral from the user into the vault and mints
// Amount of both claim assets to the user, as one atomic unit.
func (e *Exchange) MintPairs(req MintRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, err := e.state(req.MarketID)
	if err != nil {
		return err
	}
	m := ms.market

	if req.Amount == 0 {
		return fmt.Errorf("engine: mint pairs: %w", domain.ErrInvalidAmount)
	}
	if m.Status != domain.MarketStatusOpen {
		return fmt.Errorf("engine: mint pairs: %w", domain.ErrMarketNotOpen)
	}
	if err := e.checkAccountAsset(req.UserCollateral, m.CollateralAsset, domain.ErrCollateralAccountMismatch); err != nil {
		return fmt.Errorf("engine: mint pairs: %w", err)
	}
	if err := e.checkAccountAsset(req.UserYes, m.YesAsset, domain.ErrClaimAccountMismatch); err != nil {
		return fmt.Errorf("engine: mint pairs: %w", err)
	}
	if err := e.checkAccountAsset(req.UserNo, m.NoAsset, domain.ErrClaimAccountMismatch); err != nil {
		return fmt.Errorf("engine: mint pairs: %w", err)
	}

	return e.ledger.Transact(func(tx ledger.Ledger) error {
		if err := tx.Transfer(req.UserCollateral, m.Vault, req.Amount); err != nil {
			return fmt.Errorf("engine: deposit collateral: %w", err)
		}
		if err := tx.Mint(ms.auth, m.YesAsset, req.UserYes, req.Amount); err != nil {
			return fmt.Errorf("engine: mint yes: %w", err)
		}
		if err := tx.Mint(ms.auth, m.NoAsset, req.UserNo, req.Amount); err != nil {
			return fmt.Errorf("engine: mint no: %w", err)
		}
		return nil
	})
}

// ResolveMarket fixes the market's final outcome. Only the market authority
// may resolve, only after expiry, only once, and only to a terminal outcome.
func (e *Exchange) ResolveMarket(marketID, caller string, outcome domain.Outcome) (domain.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, err := e.state(marketID)
	if err != nil {
		return domain.Market{}, err
	}

	if caller != ms.market.Authority {
		return domain.Market{}, fmt.Errorf("engine: resolve market: %w", domain.ErrUnauthorized)
	}
	if ms.market.Status == domain.MarketStatusResolved {
		return domain.Market{}, fmt.Errorf("engine: resolve market: %w", domain.ErrMarketAlreadyResolved)
	}
	now := e.now()
	if !ms.market.Expired(now) {
		return domain.Market{}, fmt.Errorf("engine: resolve market: %w", domain.ErrMarketNotExpired)
	}
	if !outcome.Terminal() {
		return domain.Market{}, fmt.Errorf("engine: resolve market: %w", domain.ErrInvalidResolutionOutcome)
	}

	resolvedAt := now.UTC()
	ms.market.Status = domain.MarketStatusResolved
	ms.market.Outcome = outcome
	ms.market.ResolvedAt = &resolvedAt

	e.logger.Info("market resolved",
		slog.String("market_id", marketID),
		slog.String("outcome", string(outcome)),
		slog.Int64("unix_ts", now.Unix()),
	)
	return ms.market, nil
}

// Redeem burns the user's entire winning-side balance and pays out an equal
// amount of collateral from the vault. Because the whole balance is burned,
// a second call fails with ErrNothingToRedeem, making redemption at-most-once
// per principal.
func (e *Exchange) Redeem(req RedeemRequest) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, err := e.state(req.MarketID)
	if err != nil {
		return 0, err
	}
	m := ms.market

	if m.Status != domain.MarketStatusResolved {
		return 0, fmt.Errorf("engine: redeem: %w", domain.ErrMarketNotResolved)
	}

	var winnerAsset domain.AssetID
	var winnerAccount domain.AccountID
	switch m.Outcome {
	case domain.OutcomeYes:
		winnerAsset, winnerAccount = m.YesAsset, req.UserYes
	case domain.OutcomeNo:
		winnerAsset, winnerAccount = m.NoAsset, req.UserNo
	default:
		// Pending cannot happen on a resolved market; Invalid is refused by
		// design and leaves collateral locked pending manual recovery.
		return 0, fmt.Errorf("engine: redeem: %w", domain.ErrCannotRedeemForOutcome)
	}

	if err := e.checkAccountAsset(winnerAccount, winnerAsset, domain.ErrClaimAccountMismatch); err != nil {
		return 0, fmt.Errorf("engine: redeem: %w", err)
	}
	if err := e.checkAccountAsset(req.UserCollateral, m.CollateralAsset, domain.ErrCollateralAccountMismatch); err != nil {
		return 0, fmt.Errorf("engine: redeem: %w", err)
	}

	amount, err := e.ledger.Balance(winnerAccount)
	if err != nil {
		return 0, fmt.Errorf("engine: redeem: %w", err)
	}
	if amount == 0 {
		return 0, fmt.Errorf("engine: redeem: %w", domain.ErrNothingToRedeem)
	}

	err = e.ledger.Transact(func(tx ledger.Ledger) error {
		if err := tx.Burn(winnerAsset, winnerAccount, amount); err != nil {
			return fmt.Errorf("engine: burn winning claims: %w", err)
		}
		if err := tx.TransferAuthorized(ms.auth, m.Vault, req.UserCollateral, amount); err != nil {
			return fmt.Errorf("engine: pay out collateral: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("redeemed winning claims",
		slog.String("market_id", req.MarketID),
		slog.String("user", req.User),
		slog.String("outcome", string(m.Outcome)),
		slog.Uint64("amount", amount),
	)
	return amount, nil
}

// checkAccountAsset verifies that the stated account holds the recorded
// asset. This is an identity-equality check, not a trust decision.
func (e *Exchange) checkAccountAsset(account domain.AccountID, want domain.AssetID, mismatch error) error {
	got, err := e.ledger.AssetOf(account)
	if err != nil {
		return err
	}
	if got != want {
		return mismatch
	}
	return nil
}
