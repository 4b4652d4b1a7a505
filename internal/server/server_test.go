package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/activity"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/flags"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/helius"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/market"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/pricing"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/stream"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/swapengine"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/synthetic"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
)

type testEnv struct {
	srv      *Server
	upstream bool
}

type envOption func(*Handlers, *ServerConfig)

func withFlags(t *testing.T) envOption {
	return func(h *Handlers, _ *ServerConfig) {
		mr := miniredis.RunT(t)
		store, err := flags.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), h.Logger)
		require.NoError(t, err)
		h.Flags = store
	}
}

func withAPIKey(key string) envOption {
	return func(_ *Handlers, cfg *ServerConfig) { cfg.APIKey = key }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	return newTestEnvWindow(t, 0, opts...)
}

func newTestEnvWindow(t *testing.T, window time.Duration, opts ...envOption) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	env := &testEnv{upstream: true}

	quotes := pricing.NewChain(pricing.ChainConfig{Name: "quote", Logger: logger},
		pricing.Step[pricing.QuoteRequest, pricing.QuotePayload]{
			Provider: pricing.ProviderFunc[pricing.QuoteRequest, pricing.QuotePayload]{
				ID: "jupiter",
				Fn: func(_ context.Context, req pricing.QuoteRequest) (pricing.QuotePayload, error) {
					if !env.upstream {
						return pricing.QuotePayload{}, errors.New("503 from upstream")
					}
					// 150 USDC per SOL
					out := new(big.Int).Mul(req.Amount, big.NewInt(150))
					out.Div(out, big.NewInt(1000))
					return pricing.QuotePayload{OutAmount: out, PriceImpactPct: decimal.RequireFromString("0.02"), Label: "Whirlpool"}, nil
				},
			},
			Timeout: time.Second,
		})

	m := metrics.NewMetrics("test")
	engine, err := swapengine.NewEngine(swapengine.EngineConfig{
		Catalog:         tokens.Default(logger),
		Quoter:          quotes,
		Metrics:         m,
		Logger:          logger,
		ReferencePrices: map[string]decimal.Decimal{"SOL": decimal.NewFromInt(139), "USDC": decimal.NewFromInt(1)},
		CoalesceWindow:  window,
	})
	require.NoError(t, err)

	failing := func(context.Context, tokens.Record) (decimal.Decimal, error) { return decimal.Zero, errors.New("down") }
	sol, _ := tokens.Default(logger).Lookup("SOL")
	refresher, err := market.NewRefresher(context.Background(), market.Config{
		Token: sol,
		Spot: pricing.NewChain(pricing.ChainConfig{Logger: logger}, pricing.Step[tokens.Record, decimal.Decimal]{
			Provider: pricing.ProviderFunc[tokens.Record, decimal.Decimal]{ID: "birdeye", Fn: failing},
			Timeout:  time.Second,
		}),
		Stats:  pricing.NewChain[tokens.Record, pricing.Stats](pricing.ChainConfig{Logger: logger}),
		Logger: logger,
		Defaults: market.Defaults{
			Price:     decimal.NewFromInt(139),
			TVL:       decimal.NewFromInt(8_147_494_971),
			Volume24h: decimal.NewFromInt(8_088_935_016),
			Trades24h: 26_929_839,
		},
	})
	require.NoError(t, err)

	h := &Handlers{
		Engine:    engine,
		Sessions:  swapengine.NewSessions(engine),
		Market:    refresher,
		Synthetic: synthetic.NewSeeded(1),
		Providers: []string{"jupiter", "birdeye", "coingecko"},
		Metrics:   m,
		Logger:    logger,
	}
	cfg := ServerConfig{QuoteRateLimit: 100, QuoteRateBurst: 100}
	for _, opt := range opts {
		opt(h, &cfg)
	}

	env.srv, err = NewServer(ServerDeps{Handlers: h, Config: cfg})
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(method, target, session, body string) *httptest.ResponseRecorder {
	return e.doFrom("192.0.2.1:40000", method, target, session, body)
}

func (e *testEnv) doFrom(remote, method, target, session, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = remote
	if session != "" {
		req.Header.Set(constants.HeaderSessionID, session)
	}
	rec := httptest.NewRecorder()
	e.srv.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndTokens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])

	rec = env.do(http.MethodGet, "/v1/tokens", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 4)
	assert.Equal(t, "SOL", items[0].(map[string]any)["symbol"])
}

func TestQuote_Live(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/quote?from=SOL&to=USDC&amount=1.25", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "alice", body["session"])
	assert.Equal(t, "187.5000", body["estimatedOutput"])
	assert.Equal(t, "186.5625", body["minimumReceived"])
	assert.Equal(t, false, body["estimated"])
	quote := body["quote"].(map[string]any)
	assert.Equal(t, "live", quote["source"])
	assert.Equal(t, "187500000", quote["outAmount"])
}

func TestQuote_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		query  string
		reason string
	}{
		{"from=SOL&to=USDC&amount=abc", "INVALID_AMOUNT"},
		{"from=SOL&to=USDC&amount=-2", "INVALID_AMOUNT"},
		{"from=DOGE&to=USDC&amount=1", "UNSUPPORTED_TOKEN"},
		{"from=SOL&to=USDC&amount=5&balance=2", "INSUFFICIENT_BALANCE"},
		{"from=SOL&to=USDC&amount=1&slippage=9", "INVALID_SLIPPAGE"},
		{"from=SOL&to=USDC&amount=1&balance=lots", "INVALID_AMOUNT"},
	}
	for _, tc := range cases {
		t.Run(tc.reason+"/"+tc.query, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/v1/quote?"+tc.query, "", "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.reason, decode(t, rec)["reason"])
		})
	}
}

func TestQuote_ZeroAmount(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/quote?from=SOL&to=USDC&amount=0", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "default", body["session"])
	assert.Equal(t, "0.0000", body["estimatedOutput"])
}

func TestQuote_UpstreamDownServesEstimate(t *testing.T) {
	env := newTestEnv(t)
	env.upstream = false

	rec := env.do(http.MethodGet, "/v1/quote?from=SOL&to=USDC&amount=2", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["estimated"])
	assert.Equal(t, "278.0000", body["estimatedOutput"])
	assert.Equal(t, "estimated", body["quote"].(map[string]any)["source"])
	assert.NotEmpty(t, body["failures"])
}

func TestSlippage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/v1/slippage", "carol", `{"value": 0.05}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SLIPPAGE", decode(t, rec)["reason"])

	rec = env.do(http.MethodPut, "/v1/slippage", "carol", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/v1/slippage", "carol", "")
	assert.Equal(t, "0.5", decode(t, rec)["value"])

	env.do(http.MethodGet, "/v1/quote?from=SOL&to=USDC&amount=1.25", "carol", "")
	rec = env.do(http.MethodPut, "/v1/slippage", "carol", `{"value": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "1", body["value"])
	assert.Equal(t, "185.6250", body["current"].(map[string]any)["minimumReceived"])
}

func TestMarketAndSynthetic(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/market", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "default", decode(t, rec)["source"])

	rec = env.do(http.MethodPost, "/v1/market/refresh", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "139", decode(t, rec)["price"])

	rec = env.do(http.MethodGet, "/v1/orderbook?mid=150.30", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	book := decode(t, rec)
	assert.Len(t, book["asks"], 12)
	assert.Len(t, book["bids"], 12)
	assert.Equal(t, "synthetic", book["source"])
	assert.Equal(t, "0.05", book["spread"])

	rec = env.do(http.MethodGet, "/v1/orderbook?mid=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/v1/candles?timeframe=1H", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["candles"], 24)

	rec = env.do(http.MethodGet, "/v1/candles", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "15m", decode(t, rec)["timeframe"])

	rec = env.do(http.MethodGet, "/v1/candles?timeframe=2m", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TIMEFRAME", decode(t, rec)["reason"])
}

func TestWallet_NotInstalled(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/wallet/connect", "", "")
	assert.Equal(t, http.StatusFailedDependency, rec.Code)
	assert.Equal(t, "WALLET_NOT_INSTALLED", decode(t, rec)["reason"])

	rec = env.do(http.MethodGet, "/v1/wallet/balance", "", "")
	assert.Equal(t, http.StatusFailedDependency, rec.Code)
}

func TestSwapSign_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/v1/swap/sign", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CONFIGURATION_ERROR", decode(t, rec)["reason"])
}

func TestFlags_Unconfigured(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/flags", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFlagsAndProviders(t *testing.T) {
	env := newTestEnv(t, withFlags(t))

	rec := env.do(http.MethodPost, "/v1/flags", "", `{"key":"maintenance","value":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/flags/maintenance", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["value"])

	rec = env.do(http.MethodGet, "/v1/flags/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/v1/flags", "", `{"key":"bad key!","value":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/v1/providers/birdeye", "", `{"disabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/providers", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, map[string]any{"name": "birdeye", "disabled": true}, items[1])
	assert.Equal(t, map[string]any{"name": "jupiter", "disabled": false}, items[0])

	rec = env.do(http.MethodPut, "/v1/providers/nope", "", `{"disabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/v1/flags/maintenance", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIKey(t *testing.T) {
	env := newTestEnv(t, withAPIKey("secret"))

	rec := env.do(http.MethodGet, "/v1/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/tokens", nil)
	req.Header.Set("X-API-Key", "wrong")
	out := httptest.NewRecorder()
	env.srv.e.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/tokens", nil)
	req.Header.Set("X-API-Key", "secret")
	out = httptest.NewRecorder()
	env.srv.e.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestMetricsAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/v1/quote?from=SOL&to=USDC&amount=1", "", "")

	rec := env.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_quotes_served_total")

	rec = env.do(http.MethodGet, "/v2/nothing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeTicker struct {
	trade stream.Trade
	has   bool
}

func (f *fakeTicker) Connected() bool                { return f.has }
func (f *fakeTicker) Symbol() string                 { return "SOL" }
func (f *fakeTicker) Snapshot() (stream.Trade, bool) { return f.trade, f.has }

func TestPrice(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/price", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	feed := &fakeTicker{}
	env = newTestEnv(t, func(h *Handlers, _ *ServerConfig) { h.Ticker = feed })
	rec = env.do(http.MethodGet, "/v1/price", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	feed.trade = stream.Trade{Price: decimal.RequireFromString("151.25"), ChangePct: decimal.RequireFromString("0.5"), At: time.Unix(1700000000, 0)}
	feed.has = true
	rec = env.do(http.MethodGet, "/v1/price", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "SOL", body["symbol"])
	assert.Equal(t, "151.25", body["price"])
	assert.Equal(t, "0.5", body["changePct"])
	assert.Equal(t, true, body["connected"])

	rec = env.do(http.MethodGet, "/v1/health", "", "")
	assert.Equal(t, true, decode(t, rec)["components"].(map[string]any)["ticker"])
}

func TestQuote_AnonymousClientsDoNotShareSessions(t *testing.T) {
	env := newTestEnvWindow(t, 500*time.Millisecond)

	rec := env.doFrom("198.51.100.7:5000", http.MethodGet, "/v1/quote?from=SOL&to=USDC&amount=1.25", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode(t, rec)

	rec = env.doFrom("203.0.113.9:5000", http.MethodGet, "/v1/quote?from=USDC&to=SOL&amount=7", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode(t, rec)

	assert.NotEqual(t, a["session"], b["session"])
	assert.Nil(t, b["coalesced"])
	quote := b["quote"].(map[string]any)
	assert.Equal(t, "USDC", quote["inputToken"])
	assert.Equal(t, "7000000", quote["inAmount"])

	// A header in the anonymous namespace does not reach the IP-keyed session.
	rec = env.doFrom("192.0.2.50:5000", http.MethodGet, "/v1/quote?from=SOL&to=USDC&amount=2", "ip:198.51.100.7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, a["session"], decode(t, rec)["session"])
}

func withHelius(t *testing.T, baseURL, apiKey string) envOption {
	return func(h *Handlers, _ *ServerConfig) {
		catalog := tokens.Default(h.Logger)
		chain := pricing.NewChain(pricing.ChainConfig{Name: "activity", Logger: h.Logger},
			pricing.Step[tokens.Record, activity.Report]{
				Provider: activity.NewProvider(helius.NewClient(baseURL, apiKey), catalog, h.Logger),
				Timeout:  time.Second,
			})
		svc, err := activity.NewService(activity.Config{Catalog: catalog, Resolver: chain, Logger: h.Logger})
		require.NoError(t, err)
		h.Activity = svc
	}
}

func TestTokenActivity(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("api-key"))
		switch r.URL.Path {
		case "/v0/token-metadata":
			_, _ = w.Write([]byte(`[{"account":"` + tokens.MintRAY + `","legacyMetadata":{"name":"Raydium"}}]`))
		case "/v0/addresses/" + tokens.MintRAY + "/transactions":
			_, _ = w.Write([]byte(`[{"signature":"sig1","timestamp":1700000000,"type":"SWAP","source":"RAYDIUM",
				"tokenTransfers":[{"mint":"` + tokens.MintRAY + `","tokenAmount":10},{"mint":"` + tokens.MintUSDC + `","tokenAmount":21.5}]}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	rec := newTestEnv(t).do(http.MethodGet, "/v1/tokens/RAY/activity", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env := newTestEnv(t, withHelius(t, upstream.URL, "key"))
	rec = env.do(http.MethodGet, "/v1/tokens/ray/activity", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "RAY", body["symbol"])
	assert.Equal(t, "helius", body["provider"])
	assert.Equal(t, "live", body["source"])
	swaps := body["swaps"].([]any)
	require.Len(t, swaps, 1)
	transfers := swaps[0].(map[string]any)["transfers"].([]any)
	require.Len(t, transfers, 2)
	assert.Equal(t, "USDC", transfers[1].(map[string]any)["symbol"])

	rec = env.do(http.MethodGet, "/v1/tokens/DOGE/activity", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_TOKEN", decode(t, rec)["reason"])

	rec = newTestEnv(t, withHelius(t, upstream.URL, "")).do(http.MethodGet, "/v1/tokens/RAY/activity", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ALL_SOURCES_EXHAUSTED", decode(t, rec)["reason"])
}
