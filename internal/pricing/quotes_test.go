package pricing

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/birdeye"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/coingecko"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/jupiter"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/quotecache"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
)

var (
	sol  = tokens.Record{Symbol: "SOL", Mint: tokens.MintSOL, Decimals: 9, PriceSourceID: "solana"}
	usdc = tokens.Record{Symbol: "USDC", Mint: tokens.MintUSDC, Decimals: 6, PriceSourceID: "usd-coin"}
)

type fakeQuoteClient struct {
	resp *jupiter.QuoteResponse
	err  error
	got  jupiter.QuoteRequest
}

func (f *fakeQuoteClient) Quote(_ context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestJupiterQuotes(t *testing.T) {
	client := &fakeQuoteClient{resp: &jupiter.QuoteResponse{
		InputMint:      tokens.MintSOL,
		OutputMint:     tokens.MintUSDC,
		InAmount:       "1250000000",
		OutAmount:      "187500000",
		PriceImpactPct: "-0.012",
	}}
	p := NewJupiterQuotes(client)

	out, err := p.Fetch(context.Background(), QuoteRequest{Input: sol, Output: usdc, Amount: big.NewInt(1_250_000_000), SlippageBps: 50})
	require.NoError(t, err)
	assert.Equal(t, "187500000", out.OutAmount.String())
	assert.Equal(t, "0.012", out.PriceImpactPct.String())
	assert.Equal(t, "Jupiter", out.Label)
	assert.Equal(t, "1250000000", client.got.Amount)
	assert.Equal(t, uint16(50), *client.got.SlippageBps)
}

func TestJupiterQuotes_Rejects(t *testing.T) {
	cases := map[string]*fakeQuoteClient{
		"upstream error": {err: errors.New("down")},
		"pair mismatch":  {resp: &jupiter.QuoteResponse{InputMint: "x", OutputMint: tokens.MintUSDC, OutAmount: "1"}},
		"bad out":        {resp: &jupiter.QuoteResponse{InputMint: tokens.MintSOL, OutputMint: tokens.MintUSDC, OutAmount: "1.5"}},
		"bad impact":     {resp: &jupiter.QuoteResponse{InputMint: tokens.MintSOL, OutputMint: tokens.MintUSDC, OutAmount: "1", PriceImpactPct: "n/a"}},
	}
	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewJupiterQuotes(client).Fetch(context.Background(), QuoteRequest{Input: sol, Output: usdc, Amount: big.NewInt(1)})
			assert.Error(t, err)
		})
	}

	_, err := NewJupiterQuotes(&fakeQuoteClient{}).Fetch(context.Background(), QuoteRequest{Input: sol, Output: usdc, Amount: big.NewInt(0)})
	assert.Error(t, err)
}

func TestDeriveOut(t *testing.T) {
	out, err := DeriveOut(big.NewInt(1_250_000_000), sol, usdc, decimal.NewFromInt(150), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "187500000", out.String())

	// 1 USDC at 150 SOL/USD is 0.006666666.. SOL, rounded down to base units.
	out, err = DeriveOut(big.NewInt(1_000_000), usdc, sol, decimal.NewFromInt(1), decimal.NewFromInt(150))
	require.NoError(t, err)
	assert.Equal(t, "6666666", out.String())

	_, err = DeriveOut(big.NewInt(1), sol, usdc, decimal.Zero, decimal.NewFromInt(1))
	assert.Error(t, err)
}

type staticPrices map[string]decimal.Decimal

func (s staticPrices) USDPrices(_ context.Context, records ...tokens.Record) (map[string]decimal.Decimal, error) {
	return s, nil
}

func TestDerivedQuotes(t *testing.T) {
	p := NewDerivedQuotes("coingecko", "CoinGecko Prices", staticPrices{
		"SOL":  decimal.NewFromInt(150),
		"USDC": decimal.NewFromInt(1),
	})

	out, err := p.Fetch(context.Background(), QuoteRequest{Input: sol, Output: usdc, Amount: big.NewInt(1_250_000_000)})
	require.NoError(t, err)
	assert.Equal(t, "187500000", out.OutAmount.String())
	assert.Equal(t, "0.1", out.PriceImpactPct.String())
	assert.Equal(t, "CoinGecko Prices", out.Label)
}

func TestDerivedQuotes_MissingPriceFails(t *testing.T) {
	p := NewDerivedQuotes("coingecko", "CoinGecko Prices", staticPrices{"SOL": decimal.NewFromInt(150)})
	_, err := p.Fetch(context.Background(), QuoteRequest{Input: sol, Output: usdc, Amount: big.NewInt(1)})
	assert.Error(t, err)
}

func TestCoinGeckoPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"solana":{"usd":139},"usd-coin":{"usd":1}}`))
	}))
	defer srv.Close()

	f := NewCoinGeckoPrices(coingecko.NewClient(srv.URL, "", false))
	prices, err := f.USDPrices(context.Background(), sol, usdc)
	require.NoError(t, err)
	assert.Equal(t, "139", prices["SOL"].String())
	assert.Equal(t, "1", prices["USDC"].String())

	_, err = f.USDPrices(context.Background(), tokens.Record{Symbol: "X"})
	assert.Error(t, err)
}

func TestBirdeyePrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("address") {
		case tokens.MintSOL:
			_, _ = w.Write([]byte(`{"success":true,"data":{"value":140.5}}`))
		default:
			_, _ = w.Write([]byte(`{"success":true,"data":{"value":1}}`))
		}
	}))
	defer srv.Close()

	f := NewBirdeyePrices(birdeye.NewClient(srv.URL, "key"))
	prices, err := f.USDPrices(context.Background(), sol, usdc)
	require.NoError(t, err)
	assert.Equal(t, "140.5", prices["SOL"].String())

	_, err = NewBirdeyePrices(birdeye.NewClient(srv.URL, "")).USDPrices(context.Background(), sol)
	assert.ErrorIs(t, err, birdeye.ErrMissingAPIKey)
}

type countingPrices struct {
	calls int
}

func (c *countingPrices) USDPrices(_ context.Context, records ...tokens.Record) (map[string]decimal.Decimal, error) {
	c.calls++
	return map[string]decimal.Decimal{"SOL": decimal.NewFromInt(150), "USDC": decimal.NewFromInt(1)}, nil
}

func TestWithPriceCache(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	cache := quotecache.New[map[string]decimal.Decimal](quotecache.NewMemoryBackend(), quotecache.WithClock(clock))
	inner := &countingPrices{}
	f := WithPriceCache("coingecko", inner, cache)

	for i := 0; i < 3; i++ {
		prices, err := f.USDPrices(context.Background(), usdc, sol)
		require.NoError(t, err)
		assert.True(t, prices["SOL"].Equal(decimal.NewFromInt(150)))
	}
	assert.Equal(t, 1, inner.calls)

	now = now.Add(quotecache.TTLPrices)
	_, err := f.USDPrices(context.Background(), sol, usdc)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
