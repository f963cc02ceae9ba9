package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture is a market with an initialized book on a fresh in-memory ledger.
// The faucet authority funds test users with collateral, and the fake clock
// starts one hour before market expiry.
type fixture struct {
	t          *testing.T
	ledger     *ledger.MemLedger
	ex         *Exchange
	now        time.Time
	collateral domain.AssetID
	faucet     ledger.Authority
	market     domain.Market
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	l := ledger.NewMemLedger()
	f := &fixture{
		t:      t,
		ledger: l,
		now:    time.Unix(1_700_000_000, 0),
	}

	f.faucet = l.NewAuthority()
	collateral, err := l.CreateAsset(f.faucet)
	require.NoError(t, err)
	f.collateral = collateral

	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.ex = New(l, testLogger(), opts...)

	m, err := f.ex.CreateMarket("admin", collateral, f.now.Add(time.Hour).Unix())
	require.NoError(t, err)
	_, err = f.ex.InitOrderBook(m.ID)
	require.NoError(t, err)
	f.market = m

	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

type user struct {
	name       string
	collateral domain.AccountID
	yes        domain.AccountID
	no         domain.AccountID
}

// newUser opens collateral and claim accounts for a principal and funds the
// collateral account from the faucet.
func (f *fixture) newUser(name string, funding uint64) *user {
	f.t.Helper()

	col, err := f.ledger.CreateAccount(f.collateral, nil)
	require.NoError(f.t, err)
	yes, err := f.ledger.CreateAccount(f.market.YesAsset, nil)
	require.NoError(f.t, err)
	no, err := f.ledger.CreateAccount(f.market.NoAsset, nil)
	require.NoError(f.t, err)

	if funding > 0 {
		require.NoError(f.t, f.ledger.Mint(f.faucet, f.collateral, col, funding))
	}
	return &user{name: name, collateral: col, yes: yes, no: no}
}

func (f *fixture) mintPairs(u *user, amount uint64) {
	f.t.Helper()
	require.NoError(f.t, f.ex.MintPairs(MintRequest{
		MarketID:       f.market.ID,
		User:           u.name,
		UserCollateral: u.collateral,
		UserYes:        u.yes,
		UserNo:         u.no,
		Amount:         amount,
	}))
}

func (f *fixture) sell(u *user, price, quantity uint64, side domain.Side) domain.Order {
	f.t.Helper()
	claim := u.yes
	if side == domain.SideNo {
		claim = u.no
	}
	order, err := f.ex.PlaceLimitSell(SellRequest{
		MarketID:    f.market.ID,
		Seller:      u.name,
		SellerClaim: claim,
		Payout:      u.collateral,
		Price:       price,
		Quantity:    quantity,
		Side:        side,
	})
	require.NoError(f.t, err)
	return order
}

func (f *fixture) buyReq(u *user, quantity uint64, side domain.Side, payouts ...domain.AccountID) BuyRequest {
	claim := u.yes
	if side == domain.SideNo {
		claim = u.no
	}
	return BuyRequest{
		MarketID:        f.market.ID,
		Buyer:           u.name,
		BuyerCollateral: u.collateral,
		BuyerClaim:      claim,
		Quantity:        quantity,
		Side:            side,
		Payouts:         payouts,
	}
}

func (f *fixture) balance(a domain.AccountID) uint64 {
	f.t.Helper()
	bal, err := f.ledger.Balance(a)
	require.NoError(f.t, err)
	return bal
}

func (f *fixture) supply(a domain.AssetID) uint64 {
	f.t.Helper()
	s, err := f.ledger.Supply(a)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) book() domain.BookSnapshot {
	f.t.Helper()
	snap, err := f.ex.BookSnapshot(f.market.ID)
	require.NoError(f.t, err)
	return snap
}

// requireEscrowInvariant asserts that, per side, the resident order
// quantities sum to exactly the side-vault's escrowed balance.
func (f *fixture) requireEscrowInvariant() {
	f.t.Helper()
	snap := f.book()
	require.Equal(f.t, snap.SideQuantity(domain.SideYes), snap.EscrowedYes, "yes escrow invariant")
	require.Equal(f.t, snap.SideQuantity(domain.SideNo), snap.EscrowedNo, "no escrow invariant")
}
