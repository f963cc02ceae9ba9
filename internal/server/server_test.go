package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/engine"
	"github.com/gridironmarkets/gridiron/internal/ledger"
	"github.com/gridironmarkets/gridiron/internal/server/handler"
	"github.com/gridironmarkets/gridiron/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// apiFixture runs the full HTTP stack over a real engine on an in-memory
// ledger, with the dev faucet enabled so accounts can be created over the
// API.
type apiFixture struct {
	t      *testing.T
	srv    *httptest.Server
	now    time.Time
	faucet *service.DevFaucet
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	l := ledger.NewMemLedger()
	f := &apiFixture{t: t, now: time.Unix(1_700_000_000, 0)}

	auth := l.NewAuthority()
	collateral, err := l.CreateAsset(auth)
	require.NoError(t, err)

	ex := engine.New(l, testLogger(), engine.WithClock(func() time.Time { return f.now }))
	f.faucet = service.NewDevFaucet(l, auth, collateral, testLogger())

	markets := service.NewMarketService(ex, service.MarketServiceDeps{}, testLogger())
	trades := service.NewTradeService(ex, service.TradeServiceDeps{}, testLogger())

	s := New(Config{Port: 0}, Handlers{
		Health:   handler.NewHealthHandler(testLogger()),
		Status:   handler.NewStatusHandler(ex.PriceScale(), engine.DefaultBookCapacity, true),
		Markets:  handler.NewMarketHandler(markets, testLogger()),
		Orders:   handler.NewOrderHandler(trades, testLogger()),
		Accounts: handler.NewAccountHandler(f.faucet, testLogger()),
	}, nil, nil, testLogger())

	f.srv = httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *apiFixture) do(method, path string, body any) (*http.Response, map[string]any) {
	f.t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(f.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)

	defer resp.Body.Close()
	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	if len(data) > 0 {
		require.NoError(f.t, json.Unmarshal(data, &out), "body: %s", data)
	}
	return resp, out
}

// createAccount opens an account over the faucet API; empty asset means
// collateral.
func (f *apiFixture) createAccount(asset string) string {
	f.t.Helper()
	resp, body := f.do(http.MethodPost, "/api/accounts", map[string]any{"asset": asset})
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
	return body["account"].(string)
}

func TestHealthAndStatus(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	resp, body = f.do(http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(engine.DefaultBookCapacity), body["book_capacity"])
}

func TestMarketLifecycleOverAPI(t *testing.T) {
	f := newAPIFixture(t)

	// Create a market expiring in an hour.
	resp, body := f.do(http.MethodPost, "/api/markets", map[string]any{
		"authority":        "admin",
		"collateral_asset": string(f.faucet.CollateralAsset()),
		"expiry_ts":        f.now.Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	marketID := body["ID"].(string)
	yesAsset := body["YesAsset"].(string)

	// Past expiry is rejected.
	resp, _ = f.do(http.MethodPost, "/api/markets", map[string]any{
		"authority":        "admin",
		"collateral_asset": string(f.faucet.CollateralAsset()),
		"expiry_ts":        f.now.Add(-time.Hour).Unix(),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Fund a user and mint pairs.
	userCol := f.createAccount("")
	userYes := f.createAccount(yesAsset)
	userNo := f.createAccount(body["NoAsset"].(string))

	resp, _ = f.do(http.MethodPost, "/api/faucet", map[string]any{
		"account": userCol, "amount": 1000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/api/markets/"+marketID+"/mint", map[string]any{
		"user":            "alice",
		"user_collateral": userCol,
		"user_yes":        userYes,
		"user_no":         userNo,
		"amount":          400,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(http.MethodGet, "/api/accounts/"+userYes+"/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(400), body["balance"])

	// Sell, then buy across the book.
	resp, _ = f.do(http.MethodPost, "/api/markets/"+marketID+"/orders", map[string]any{
		"seller":       "alice",
		"seller_claim": userYes,
		"payout":       userCol,
		"price":        3,
		"quantity":     200,
		"side":         "yes",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	buyerCol := f.createAccount("")
	buyerYes := f.createAccount(yesAsset)
	resp, _ = f.do(http.MethodPost, "/api/faucet", map[string]any{
		"account": buyerCol, "amount": 1000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(http.MethodPost, "/api/markets/"+marketID+"/buy", map[string]any{
		"buyer":            "bob",
		"buyer_collateral": buyerCol,
		"buyer_claim":      buyerYes,
		"quantity":         150,
		"side":             "yes",
		"payouts":          []string{userCol},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(150), body["filled"])
	require.Equal(t, float64(450), body["cost"])

	// The book shows the remainder.
	resp, body = f.do(http.MethodGet, "/api/markets/"+marketID+"/book", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	orders := body["Orders"].([]any)
	require.Len(t, orders, 1)

	// Settlement report only exists once resolved.
	resp, _ = f.do(http.MethodGet, "/api/markets/"+marketID+"/settlement", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Resolve after expiry and redeem.
	f.now = f.now.Add(2 * time.Hour)

	resp, _ = f.do(http.MethodPost, "/api/markets/"+marketID+"/resolve", map[string]any{
		"caller": "intruder", "outcome": "yes",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = f.do(http.MethodPost, "/api/markets/"+marketID+"/resolve", map[string]any{
		"caller": "admin", "outcome": "yes",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(http.MethodPost, "/api/markets/"+marketID+"/redeem", map[string]any{
		"user":            "bob",
		"user_collateral": buyerCol,
		"user_yes":        buyerYes,
		"user_no":         f.createAccount(body["NoAsset"].(string)),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(150), body["redeemed"])
}

func TestBuyExactTooExpensiveOverAPI(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(http.MethodPost, "/api/markets", map[string]any{
		"authority":        "admin",
		"collateral_asset": string(f.faucet.CollateralAsset()),
		"expiry_ts":        f.now.Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	marketID := body["ID"].(string)
	yesAsset := body["YesAsset"].(string)
	noAsset := body["NoAsset"].(string)

	sellerCol := f.createAccount("")
	sellerYes := f.createAccount(yesAsset)
	sellerNo := f.createAccount(noAsset)
	resp, _ = f.do(http.MethodPost, "/api/faucet", map[string]any{"account": sellerCol, "amount": 500})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/api/markets/"+marketID+"/mint", map[string]any{
		"user": "seller", "user_collateral": sellerCol,
		"user_yes": sellerYes, "user_no": sellerNo, "amount": 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/api/markets/"+marketID+"/orders", map[string]any{
		"seller": "seller", "seller_claim": sellerYes, "payout": sellerCol,
		"price": 80, "quantity": 100, "side": "yes",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	buyerCol := f.createAccount("")
	buyerYes := f.createAccount(yesAsset)
	resp, _ = f.do(http.MethodPost, "/api/faucet", map[string]any{"account": buyerCol, "amount": 10000})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(http.MethodPost, "/api/markets/"+marketID+"/buy-exact", map[string]any{
		"buyer": "buyer", "buyer_collateral": buyerCol, "buyer_claim": buyerYes,
		"quantity": 50, "side": "yes", "max_price": 40,
		"payouts": []string{sellerCol},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, fmt.Sprint(body["error"]), domain.ErrTooExpensive.Error())
}

func TestAuthMiddleware(t *testing.T) {
	l := ledger.NewMemLedger()
	ex := engine.New(l, testLogger())
	markets := service.NewMarketService(ex, service.MarketServiceDeps{}, testLogger())
	trades := service.NewTradeService(ex, service.TradeServiceDeps{}, testLogger())

	s := New(Config{Port: 0, APIKey: "secret"}, Handlers{
		Health:  handler.NewHealthHandler(testLogger()),
		Status:  handler.NewStatusHandler(1, engine.DefaultBookCapacity, false),
		Markets: handler.NewMarketHandler(markets, testLogger()),
		Orders:  handler.NewOrderHandler(trades, testLogger()),
	}, nil, nil, testLogger())

	srv := httptest.NewServer(s.httpServer.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/markets")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/markets", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
