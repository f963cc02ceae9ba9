package engine

import (
	"fmt"
	"log/slog"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/ledger"
)

// book is a market's resident order collection plus the side-vaults holding
// escrowed claims. It is owned exclusively by the Exchange; removal uses
// swap-and-pop, so collection order is positional, not chronological.
type book struct {
	nextOrderID uint64
	capacity    int
	orders      []domain.Order
	yesVault    domain.AccountID
	noVault     domain.AccountID
}

func (b *book) sideVault(side domain.Side) domain.AccountID {
	if side == domain.SideYes {
		return b.yesVault
	}
	return b.noVault
}

// swapRemove removes the order at index i by swapping the last resident
// order into its slot.
func (b *book) swapRemove(i int) {
	last := len(b.orders) - 1
	b.orders[i] = b.orders[last]
	b.orders = b.orders[:last]
}

// SellRequest places a limit sell: quantity units of one side's claims,
// escrowed from the seller into the side-vault until filled.
type SellRequest struct {
	MarketID    string
	Seller      string
	SellerClaim domain.AccountID // escrow source, must hold the side's claim asset
	Payout      domain.AccountID // receives collateral on fill
	Price       uint64
	Quantity    uint64
	Side        domain.Side
}

// InitOrderBook creates the market's order book and its two claim
// side-vaults. A market has exactly one book.
func (e *Exchange) InitOrderBook(marketID string) (domain.BookSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, err := e.state(marketID)
	if err != nil {
		return domain.BookSnapshot{}, err
	}
	if ms.book != nil {
		return domain.BookSnapshot{}, fmt.Errorf("engine: order book for %s: %w", marketID, domain.ErrAlreadyExists)
	}

	var yesVault, noVault domain.AccountID
	err = e.ledger.Transact(func(tx ledger.Ledger) error {
		if yesVault, err = tx.CreateAccount(ms.market.YesAsset, &ms.auth); err != nil {
			return fmt.Errorf("engine: create yes side-vault: %w", err)
		}
		if noVault, err = tx.CreateAccount(ms.market.NoAsset, &ms.auth); err != nil {
			return fmt.Errorf("engine: create no side-vault: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.BookSnapshot{}, err
	}

	ms.book = &book{
		capacity: e.capacity,
		yesVault: yesVault,
		noVault:  noVault,
	}

	e.logger.Info("order book initialized",
		slog.String("market_id", marketID),
		slog.Int("capacity", e.capacity),
	)
	return e.snapshotLocked(ms)
}

// PlaceLimitSell escrows the order's claims into the side-vault and appends
// the order to the book. No price ordering is imposed.
func (e *Exchange) PlaceLimitSell(req SellRequest) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, err := e.state(req.MarketID)
	if err != nil {
		return domain.Order{}, err
	}
	b := ms.book
	if b == nil {
		return domain.Order{}, fmt.Errorf("engine: order book for %s: %w", req.MarketID, domain.ErrNotFound)
	}

	if req.Quantity == 0 {
		return domain.Order{}, fmt.Errorf("engine: place limit sell: %w", domain.ErrInvalidAmount)
	}
	if !req.Side.Valid() {
		return domain.Order{}, fmt.Errorf("engine: place limit sell: %w", domain.ErrInvalidAmount)
	}
	if len(b.orders) >= b.capacity {
		return domain.Order{}, fmt.Errorf("engine: place limit sell: %w", domain.ErrOrderBookFull)
	}

	sideAsset := ms.market.YesAsset
	if req.Side == domain.SideNo {
		sideAsset = ms.market.NoAsset
	}
	if err := e.checkAccountAsset(req.SellerClaim, sideAsset, domain.ErrClaimAccountMismatch); err != nil {
		return domain.Order{}, fmt.Errorf("engine: place limit sell: %w", err)
	}
	if err := e.checkAccountAsset(req.Payout, ms.market.CollateralAsset, domain.ErrCollateralAccountMismatch); err != nil {
		return domain.Order{}, fmt.Errorf("engine: place limit sell: %w", err)
	}

	// Escrow is a single atomic leg; the order is only appended after it
	// lands, so the escrow invariant holds at every step.
	if err := e.ledger.Transfer(req.SellerClaim, b.sideVault(req.Side), req.Quantity); err != nil {
		return domain.Order{}, fmt.Errorf("engine: escrow claims: %w", err)
	}

	order := domain.Order{
		ID:            b.nextOrderID,
		Owner:         req.Seller,
		PayoutAccount: req.Payout,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Side:          req.Side,
	}
	b.nextOrderID++
	b.orders = append(b.orders, order)

	return order, nil
}

// BookSnapshot returns a read-only view of the market's book, including the
// escrowed side-vault balances.
func (e *Exchange) BookSnapshot(marketID string) (domain.BookSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, err := e.state(marketID)
	if err != nil {
		return domain.BookSnapshot{}, err
	}
	return e.snapshotLocked(ms)
}

func (e *Exchange) snapshotLocked(ms *marketState) (domain.BookSnapshot, error) {
	b := ms.book
	if b == nil {
		return domain.BookSnapshot{}, fmt.Errorf("engine: order book for %s: %w", ms.market.ID, domain.ErrNotFound)
	}

	escrowedYes, err := e.ledger.Balance(b.yesVault)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("engine: yes side-vault balance: %w", err)
	}
	escrowedNo, err := e.ledger.Balance(b.noVault)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("engine: no side-vault balance: %w", err)
	}

	orders := make([]domain.Order, len(b.orders))
	copy(orders, b.orders)

	return domain.BookSnapshot{
		MarketID:    ms.market.ID,
		NextOrderID: b.nextOrderID,
		Capacity:    b.capacity,
		Orders:      orders,
		YesVault:    b.yesVault,
		NoVault:     b.noVault,
		EscrowedYes: escrowedYes,
		EscrowedNo:  escrowedNo,
		Timestamp:   e.now().UTC(),
	}, nil
}
