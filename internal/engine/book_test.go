package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

func TestPlaceLimitSellEscrowsClaims(t *testing.T) {
	f := newFixture(t)
	u := f.newUser("alice", 1000)
	f.mintPairs(u, 100)

	order := f.sell(u, 50, 60, domain.SideYes)

	assert.Equal(t, uint64(0), order.ID)
	assert.Equal(t, uint64(50), order.Price)
	assert.Equal(t, uint64(60), order.Quantity)
	assert.Equal(t, domain.SideYes, order.Side)
	assert.Equal(t, u.collateral, order.PayoutAccount)

	assert.Equal(t, uint64(40), f.balance(u.yes))
	snap := f.book()
	assert.Equal(t, uint64(60), snap.EscrowedYes)
	assert.Equal(t, uint64(0), snap.EscrowedNo)
	require.Len(t, snap.Orders, 1)
	f.requireEscrowInvariant()

	// IDs come from the monotonic counter.
	second := f.sell(u, 45, 10, domain.SideNo)
	assert.Equal(t, uint64(1), second.ID)
	assert.Equal(t, uint64(2), f.book().NextOrderID)
}

func TestPlaceLimitSellValidation(t *testing.T) {
	f := newFixture(t)
	u := f.newUser("alice", 1000)
	f.mintPairs(u, 100)

	req := SellRequest{
		MarketID:    f.market.ID,
		Seller:      u.name,
		SellerClaim: u.yes,
		Payout:      u.collateral,
		Price:       50,
		Side:        domain.SideYes,
	}

	req.Quantity = 0
	_, err := f.ex.PlaceLimitSell(req)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	req.Quantity = 10
	req.SellerClaim = u.no // wrong side's claim account
	_, err = f.ex.PlaceLimitSell(req)
	require.ErrorIs(t, err, domain.ErrClaimAccountMismatch)

	req.SellerClaim = u.yes
	req.Payout = u.no // payout must hold collateral
	_, err = f.ex.PlaceLimitSell(req)
	require.ErrorIs(t, err, domain.ErrCollateralAccountMismatch)

	req.Payout = u.collateral
	req.Quantity = 500 // more claims than held
	_, err = f.ex.PlaceLimitSell(req)
	require.Error(t, err)

	// Nothing landed in the book.
	assert.Empty(t, f.book().Orders)
	assert.Equal(t, uint64(100), f.balance(u.yes))
}

func TestOrderBookCapacity(t *testing.T) {
	f := newFixture(t, WithBookCapacity(2))
	u := f.newUser("alice", 1000)
	f.mintPairs(u, 100)

	f.sell(u, 50, 10, domain.SideYes)
	f.sell(u, 51, 10, domain.SideYes)

	_, err := f.ex.PlaceLimitSell(SellRequest{
		MarketID:    f.market.ID,
		Seller:      u.name,
		SellerClaim: u.yes,
		Payout:      u.collateral,
		Price:       52,
		Quantity:    10,
		Side:        domain.SideYes,
	})
	require.ErrorIs(t, err, domain.ErrOrderBookFull)

	// Book and escrow unchanged by the rejected placement.
	snap := f.book()
	assert.Len(t, snap.Orders, 2)
	assert.Equal(t, uint64(20), snap.EscrowedYes)
	assert.Equal(t, uint64(80), f.balance(u.yes))
	f.requireEscrowInvariant()
}

func TestPlaceLimitSellRequiresBook(t *testing.T) {
	f := newFixture(t)

	// A second market without a book.
	m, err := f.ex.CreateMarket("admin", f.collateral, f.now.Unix()+3600)
	require.NoError(t, err)

	u := f.newUser("alice", 100)
	_, err = f.ex.PlaceLimitSell(SellRequest{
		MarketID:    m.ID,
		Seller:      u.name,
		SellerClaim: u.yes,
		Payout:      u.collateral,
		Price:       50,
		Quantity:    10,
		Side:        domain.SideYes,
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}
