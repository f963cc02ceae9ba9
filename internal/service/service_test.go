package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/engine"
	"github.com/gridironmarkets/gridiron/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// in-memory fakes
// ---------------------------------------------------------------------------

type memMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[string]domain.Market)}
}

func (s *memMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out, nil
}

func (s *memMarketStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.markets)), nil
}

type memFillStore struct {
	mu    sync.Mutex
	fills []domain.Fill
}

func (s *memFillStore) InsertBatch(_ context.Context, fills []domain.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, fills...)
	return nil
}

func (s *memFillStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Fill
	for _, f := range s.fills {
		if f.MarketID == marketID {
			out = append(out, f)
		}
	}
	return out, nil
}

type memOrderStore struct {
	mu    sync.Mutex
	books map[string][]domain.Order
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{books: make(map[string][]domain.Order)}
}

func (s *memOrderStore) ReplaceBook(_ context.Context, marketID string, orders []domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[marketID] = append([]domain.Order(nil), orders...)
	return nil
}

func (s *memOrderStore) ListByMarket(_ context.Context, marketID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Order(nil), s.books[marketID]...), nil
}

type memBus struct {
	mu     sync.Mutex
	events map[string][]any
}

func newMemBus() *memBus {
	return &memBus{events: make(map[string][]any)}
}

func (b *memBus) Publish(_ context.Context, channel string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[channel] = append(b.events[channel], payload)
	return nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events[channel])
}

type memArchiver struct {
	mu      sync.Mutex
	markets []domain.Market
	fills   [][]domain.Fill
}

func (a *memArchiver) ArchiveSettlement(_ context.Context, m domain.Market, fills []domain.Fill) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markets = append(a.markets, m)
	a.fills = append(a.fills, fills)
	return "settlements/test/" + m.ID + ".jsonl", nil
}

func (a *memArchiver) OpenSettlement(_ context.Context, m domain.Market) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, archived := range a.markets {
		if archived.ID == m.ID {
			return io.NopCloser(strings.NewReader(`{"kind":"settlement","market_id":"` + m.ID + `"}` + "\n")), nil
		}
	}
	return nil, domain.ErrNotFound
}

// heldLock always reports the lock as taken.
type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

// ---------------------------------------------------------------------------
// fixture
// ---------------------------------------------------------------------------

type serviceFixture struct {
	t          *testing.T
	ledger     *ledger.MemLedger
	ex         *engine.Exchange
	now        time.Time
	collateral domain.AssetID
	faucet     ledger.Authority

	marketStore *memMarketStore
	orderStore  *memOrderStore
	fillStore   *memFillStore
	bus         *memBus
	archiver    *memArchiver

	markets *MarketService
	trades  *TradeService
	market  domain.Market
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	l := ledger.NewMemLedger()
	f := &serviceFixture{
		t:      t,
		ledger: l,
		now:    time.Unix(1_700_000_000, 0),
	}

	f.faucet = l.NewAuthority()
	collateral, err := l.CreateAsset(f.faucet)
	require.NoError(t, err)
	f.collateral = collateral

	f.ex = engine.New(l, testLogger(), engine.WithClock(func() time.Time { return f.now }))

	f.marketStore = newMemMarketStore()
	f.orderStore = newMemOrderStore()
	f.fillStore = &memFillStore{}
	f.bus = newMemBus()
	f.archiver = &memArchiver{}

	f.markets = NewMarketService(f.ex, MarketServiceDeps{
		Markets:  f.marketStore,
		Fills:    f.fillStore,
		Bus:      f.bus,
		Archiver: f.archiver,
		Reports:  f.archiver,
	}, testLogger())
	f.trades = NewTradeService(f.ex, TradeServiceDeps{
		Orders: f.orderStore,
		Fills:  f.fillStore,
		Bus:    f.bus,
	}, testLogger())

	m, err := f.markets.CreateMarket(context.Background(), "admin", collateral, f.now.Add(time.Hour).Unix())
	require.NoError(t, err)
	f.market = m

	return f
}

type testUser struct {
	name       string
	collateral domain.AccountID
	yes        domain.AccountID
	no         domain.AccountID
}

func (f *serviceFixture) newUser(name string, funding uint64) *testUser {
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
	return &testUser{name: name, collateral: col, yes: yes, no: no}
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestCreateMarketPersistsAndAnnounces(t *testing.T) {
	f := newServiceFixture(t)

	stored, err := f.marketStore.GetByID(context.Background(), f.market.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusOpen, stored.Status)
	require.Equal(t, 1, f.bus.count(ChannelMarkets))

	// The book exists and is empty.
	snap, err := f.trades.Book(context.Background(), f.market.ID)
	require.NoError(t, err)
	require.Empty(t, snap.Orders)
}

func TestPlaceLimitSellSyncsStoredBook(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	seller := f.newUser("seller", 500)
	require.NoError(t, f.markets.MintPairs(ctx, engine.MintRequest{
		MarketID:       f.market.ID,
		User:           seller.name,
		UserCollateral: seller.collateral,
		UserYes:        seller.yes,
		UserNo:         seller.no,
		Amount:         200,
	}))

	order, err := f.trades.PlaceLimitSell(ctx, engine.SellRequest{
		MarketID:    f.market.ID,
		Seller:      seller.name,
		SellerClaim: seller.yes,
		Payout:      seller.collateral,
		Price:       60,
		Quantity:    150,
		Side:        domain.SideYes,
	})
	require.NoError(t, err)

	stored, err := f.orderStore.ListByMarket(ctx, f.market.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, order.ID, stored[0].ID)
	require.Equal(t, uint64(150), stored[0].Quantity)
}

func TestMarketBuyRecordsFillsAndPublishes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	seller := f.newUser("seller", 500)
	buyer := f.newUser("buyer", 1000)

	require.NoError(t, f.markets.MintPairs(ctx, engine.MintRequest{
		MarketID:       f.market.ID,
		User:           seller.name,
		UserCollateral: seller.collateral,
		UserYes:        seller.yes,
		UserNo:         seller.no,
		Amount:         200,
	}))
	_, err := f.trades.PlaceLimitSell(ctx, engine.SellRequest{
		MarketID:    f.market.ID,
		Seller:      seller.name,
		SellerClaim: seller.yes,
		Payout:      seller.collateral,
		Price:       5,
		Quantity:    100,
		Side:        domain.SideYes,
	})
	require.NoError(t, err)

	fills, err := f.trades.MarketBuy(ctx, engine.BuyRequest{
		MarketID:        f.market.ID,
		Buyer:           buyer.name,
		BuyerCollateral: buyer.collateral,
		BuyerClaim:      buyer.yes,
		Quantity:        100,
		Side:            domain.SideYes,
		Payouts:         []domain.AccountID{seller.collateral},
	})
	require.NoError(t, err)
	require.Len(t, fills, 1)

	recorded, err := f.fillStore.ListByMarket(ctx, f.market.ID, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	require.Equal(t, uint64(500), recorded[0].Cost)
	require.Equal(t, 1, f.bus.count(ChannelFills))

	// The filled order is gone from the stored book.
	stored, err := f.orderStore.ListByMarket(ctx, f.market.ID)
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestResolveArchivesSettlementWithFills(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	seller := f.newUser("seller", 500)
	buyer := f.newUser("buyer", 1000)

	require.NoError(t, f.markets.MintPairs(ctx, engine.MintRequest{
		MarketID:       f.market.ID,
		User:           seller.name,
		UserCollateral: seller.collateral,
		UserYes:        seller.yes,
		UserNo:         seller.no,
		Amount:         200,
	}))
	_, err := f.trades.PlaceLimitSell(ctx, engine.SellRequest{
		MarketID:    f.market.ID,
		Seller:      seller.name,
		SellerClaim: seller.yes,
		Payout:      seller.collateral,
		Price:       5,
		Quantity:    100,
		Side:        domain.SideYes,
	})
	require.NoError(t, err)
	_, err = f.trades.MarketBuy(ctx, engine.BuyRequest{
		MarketID:        f.market.ID,
		Buyer:           buyer.name,
		BuyerCollateral: buyer.collateral,
		BuyerClaim:      buyer.yes,
		Quantity:        100,
		Side:            domain.SideYes,
		Payouts:         []domain.AccountID{seller.collateral},
	})
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)

	m, err := f.markets.Resolve(ctx, f.market.ID, "admin", domain.OutcomeYes)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusResolved, m.Status)

	require.Len(t, f.archiver.markets, 1)
	require.Equal(t, f.market.ID, f.archiver.markets[0].ID)
	require.Len(t, f.archiver.fills[0], 1)
	require.Equal(t, 1, f.bus.count(ChannelResolutions))

	stored, err := f.marketStore.GetByID(ctx, f.market.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusResolved, stored.Status)
	require.Equal(t, domain.OutcomeYes, stored.Outcome)
}

func TestSettlementReportRequiresResolution(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.markets.SettlementReport(ctx, f.market.ID)
	require.ErrorIs(t, err, domain.ErrMarketNotResolved)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.markets.Resolve(ctx, f.market.ID, "admin", domain.OutcomeNo)
	require.NoError(t, err)

	rc, err := f.markets.SettlementReport(ctx, f.market.ID)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Contains(t, string(data), f.market.ID)
}

func TestRedeemThroughService(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	holder := f.newUser("holder", 500)
	require.NoError(t, f.markets.MintPairs(ctx, engine.MintRequest{
		MarketID:       f.market.ID,
		User:           holder.name,
		UserCollateral: holder.collateral,
		UserYes:        holder.yes,
		UserNo:         holder.no,
		Amount:         300,
	}))

	f.now = f.now.Add(2 * time.Hour)
	_, err := f.markets.Resolve(ctx, f.market.ID, "admin", domain.OutcomeYes)
	require.NoError(t, err)

	amount, err := f.markets.Redeem(ctx, engine.RedeemRequest{
		MarketID:       f.market.ID,
		User:           holder.name,
		UserCollateral: holder.collateral,
		UserYes:        holder.yes,
		UserNo:         holder.no,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(300), amount)

	bal, err := f.ledger.Balance(holder.collateral)
	require.NoError(t, err)
	require.Equal(t, uint64(500), bal)
}

func TestHeldLockBlocksMutation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	blocked := NewMarketService(f.ex, MarketServiceDeps{Locks: heldLock{}}, testLogger())
	user := f.newUser("user", 100)

	err := blocked.MintPairs(ctx, engine.MintRequest{
		MarketID:       f.market.ID,
		User:           user.name,
		UserCollateral: user.collateral,
		UserYes:        user.yes,
		UserNo:         user.no,
		Amount:         50,
	})
	require.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestGetMarketFallsBackToStore(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Unknown to both engine and store.
	_, err := f.markets.GetMarket(ctx, "mkt-missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Known only to the store.
	ghost := domain.Market{ID: "mkt-ghost", Status: domain.MarketStatusResolved, Outcome: domain.OutcomeNo}
	require.NoError(t, f.marketStore.Upsert(ctx, ghost))

	m, err := f.markets.GetMarket(ctx, "mkt-ghost")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeNo, m.Outcome)
}
