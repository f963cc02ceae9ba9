package engine

import (
	"fmt"
	"log/slog"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/ledger"
	"github.com/gridironmarkets/gridiron/internal/price"
)

// BuyRequest asks the engine to buy claims of one side against the resident
// book. Payouts must list the payout destination of each order that will be
// filled, in the order the engine will encounter them; callers inspect the
// book beforehand to build the list. Any misalignment aborts the whole call.
type BuyRequest struct {
	MarketID        string
	Buyer           string
	BuyerCollateral domain.AccountID // debited for each fill's cost
	BuyerClaim      domain.AccountID // credited with bought claims
	Quantity        uint64
	Side            domain.Side
	Payouts         []domain.AccountID
}

// BuyExactRequest is a BuyRequest with a price cap: the call either fills the
// full quantity with every matched order priced at or below MaxPrice, or
// fails without any effect.
type BuyExactRequest struct {
	BuyRequest
	MaxPrice uint64
}

// MarketBuy fills as much of the requested quantity as the book allows,
// walking resident orders in collection order. Leftover quantity with no
// matching orders left is not an error; the call reports whatever fills
// happened.
func (e *Exchange) MarketBuy(req BuyRequest) ([]domain.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, b, err := e.matchTarget(req)
	if err != nil {
		return nil, err
	}
	return e.executeFills(ms, b, req)
}

// BuyExact fills exactly the requested quantity or nothing. A read-only
// pre-pass walks matching-side orders in collection order: the first order
// priced above MaxPrice seen before the running need reaches zero fails the
// call with ErrTooExpensive, and unmet need after the scan fails it with
// ErrInsufficientLiquidity. Only then does the normal fill loop run, which
// the pre-pass guarantees will complete in full.
func (e *Exchange) BuyExact(req BuyExactRequest) ([]domain.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, b, err := e.matchTarget(req.BuyRequest)
	if err != nil {
		return nil, err
	}

	needed := req.Quantity
	for _, o := range b.orders {
		if o.Side != req.Side {
			continue
		}
		if needed == 0 {
			break
		}
		if o.Price > req.MaxPrice {
			return nil, fmt.Errorf("engine: buy exact: %w", domain.ErrTooExpensive)
		}
		if o.Quantity >= needed {
			needed = 0
		} else {
			needed -= o.Quantity
		}
	}
	if needed > 0 {
		return nil, fmt.Errorf("engine: buy exact: %w", domain.ErrInsufficientLiquidity)
	}

	return e.executeFills(ms, b, req.BuyRequest)
}

func (e *Exchange) matchTarget(req BuyRequest) (*marketState, *book, error) {
	ms, err := e.state(req.MarketID)
	if err != nil {
		return nil, nil, err
	}
	if ms.book == nil {
		return nil, nil, fmt.Errorf("engine: order book for %s: %w", req.MarketID, domain.ErrNotFound)
	}
	if !req.Side.Valid() {
		return nil, nil, fmt.Errorf("engine: buy: %w", domain.ErrInvalidAmount)
	}
	if err := e.checkAccountAsset(req.BuyerCollateral, ms.market.CollateralAsset, domain.ErrCollateralAccountMismatch); err != nil {
		return nil, nil, fmt.Errorf("engine: buy: %w", err)
	}
	sideAsset := ms.market.YesAsset
	if req.Side == domain.SideNo {
		sideAsset = ms.market.NoAsset
	}
	if err := e.checkAccountAsset(req.BuyerClaim, sideAsset, domain.ErrClaimAccountMismatch); err != nil {
		return nil, nil, fmt.Errorf("engine: buy: %w", err)
	}
	return ms, ms.book, nil
}

// executeFills runs the shared fill loop inside one ledger unit of work. The
// book's resident collection is snapshotted first so an aborted call leaves
// the book, not just the balances, untouched.
func (e *Exchange) executeFills(ms *marketState, b *book, req BuyRequest) ([]domain.Fill, error) {
	saved := make([]domain.Order, len(b.orders))
	copy(saved, b.orders)

	var fills []domain.Fill
	err := e.ledger.Transact(func(tx ledger.Ledger) error {
		var err error
		fills, err = e.fillLoop(tx, ms, b, req)
		return err
	})
	if err != nil {
		b.orders = saved
		return nil, err
	}

	if len(fills) > 0 {
		e.logger.Info("buy filled",
			slog.String("market_id", req.MarketID),
			slog.String("buyer", req.Buyer),
			slog.String("side", string(req.Side)),
			slog.Int("fills", len(fills)),
		)
	}
	return fills, nil
}

func (e *Exchange) fillLoop(tx ledger.Ledger, ms *marketState, b *book, req BuyRequest) ([]domain.Fill, error) {
	remaining := req.Quantity
	payouts := req.Payouts
	now := e.now().UTC()

	var fills []domain.Fill
	i := 0
	for i < len(b.orders) && remaining > 0 {
		o := &b.orders[i]

		if o.Side != req.Side {
			i++
			continue
		}
		if o.Quantity == 0 {
			b.swapRemove(i)
			continue
		}

		fill := o.Quantity
		if remaining < fill {
			fill = remaining
		}

		if len(payouts) == 0 {
			return nil, fmt.Errorf("engine: fill order %d: %w", o.ID, domain.ErrMissingSellerAccounts)
		}
		payout := payouts[0]
		payouts = payouts[1:]
		if payout != o.PayoutAccount {
			return nil, fmt.Errorf("engine: fill order %d: %w", o.ID, domain.ErrSellerAccountMismatch)
		}

		cost, err := price.Cost(o.Price, fill, e.scale)
		if err != nil {
			return nil, fmt.Errorf("engine: fill order %d cost: %w", o.ID, err)
		}

		if err := tx.Transfer(req.BuyerCollateral, payout, cost); err != nil {
			return nil, fmt.Errorf("engine: pay seller for order %d: %w", o.ID, err)
		}
		if err := tx.TransferAuthorized(ms.auth, b.sideVault(req.Side), req.BuyerClaim, fill); err != nil {
			return nil, fmt.Errorf("engine: release claims for order %d: %w", o.ID, err)
		}

		fills = append(fills, domain.Fill{
			MarketID:  ms.market.ID,
			OrderID:   o.ID,
			Side:      o.Side,
			Price:     o.Price,
			Quantity:  fill,
			Cost:      cost,
			Buyer:     req.Buyer,
			Seller:    o.Owner,
			CreatedAt: now,
		})

		o.Quantity -= fill
		remaining -= fill

		if o.Quantity == 0 {
			b.swapRemove(i)
		} else {
			i++
		}
	}
	return fills, nil
}
