package pricing

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/jupiter"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/quotecache"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/units"
)

// Impact reported for quotes derived from spot prices rather than routed liquidity.
var derivedImpactPct = decimal.RequireFromString("0.1")

type QuoteRequest struct {
	Input       tokens.Record
	Output      tokens.Record
	Amount      *big.Int
	SlippageBps uint16
}

type QuotePayload struct {
	OutAmount      *big.Int
	PriceImpactPct decimal.Decimal
	Label          string
}

type QuoteChain = Chain[QuoteRequest, QuotePayload]

// QuoteClient is the subset of the aggregator client used for quoting.
type QuoteClient interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
}

type jupiterQuotes struct {
	client QuoteClient
}

// NewJupiterQuotes quotes through the aggregator's routed liquidity.
func NewJupiterQuotes(client QuoteClient) Provider[QuoteRequest, QuotePayload] {
	return &jupiterQuotes{client: client}
}

func (j *jupiterQuotes) Name() string { return "jupiter" }

func (j *jupiterQuotes) Fetch(ctx context.Context, req QuoteRequest) (QuotePayload, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return QuotePayload{}, fmt.Errorf("amount must be positive")
	}
	bps := req.SlippageBps
	resp, err := j.client.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   req.Input.Mint,
		OutputMint:  req.Output.Mint,
		Amount:      req.Amount.String(),
		SlippageBps: &bps,
	})
	if err != nil {
		return QuotePayload{}, err
	}
	if resp.InputMint != req.Input.Mint || resp.OutputMint != req.Output.Mint {
		return QuotePayload{}, fmt.Errorf("jupiter quote pair mismatch: %s/%s", resp.InputMint, resp.OutputMint)
	}

	out, ok := new(big.Int).SetString(resp.OutAmount, 10)
	if !ok || out.Sign() < 0 {
		return QuotePayload{}, fmt.Errorf("jupiter quote has invalid outAmount %q", resp.OutAmount)
	}
	impact := decimal.Zero
	if resp.PriceImpactPct != "" {
		f, err := strconv.ParseFloat(resp.PriceImpactPct, 64)
		if err != nil {
			return QuotePayload{}, fmt.Errorf("jupiter quote has invalid priceImpactPct %q", resp.PriceImpactPct)
		}
		impact = decimal.NewFromFloat(f).Abs()
	}

	return QuotePayload{
		OutAmount:      out,
		PriceImpactPct: impact,
		Label:          resp.RouteLabel(),
	}, nil
}

// PriceFetcher returns USD prices keyed by token symbol.
type PriceFetcher interface {
	USDPrices(ctx context.Context, records ...tokens.Record) (map[string]decimal.Decimal, error)
}

type derivedQuotes struct {
	name   string
	label  string
	prices PriceFetcher
}

// NewDerivedQuotes quotes from the ratio of two USD spot prices.
func NewDerivedQuotes(name, label string, prices PriceFetcher) Provider[QuoteRequest, QuotePayload] {
	return &derivedQuotes{name: name, label: label, prices: prices}
}

func (d *derivedQuotes) Name() string { return d.name }

func (d *derivedQuotes) Fetch(ctx context.Context, req QuoteRequest) (QuotePayload, error) {
	prices, err := d.prices.USDPrices(ctx, req.Input, req.Output)
	if err != nil {
		return QuotePayload{}, err
	}
	out, err := DeriveOut(req.Amount, req.Input, req.Output, prices[req.Input.Symbol], prices[req.Output.Symbol])
	if err != nil {
		return QuotePayload{}, err
	}
	return QuotePayload{
		OutAmount:      out,
		PriceImpactPct: derivedImpactPct,
		Label:          d.label,
	}, nil
}

// DeriveOut converts amount of in into base units of out at the given USD prices,
// rounding down.
func DeriveOut(amount *big.Int, in, out tokens.Record, priceIn, priceOut decimal.Decimal) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if !priceIn.IsPositive() || !priceOut.IsPositive() {
		return nil, fmt.Errorf("missing price for %s/%s", in.Symbol, out.Symbol)
	}
	human, err := units.ToHumanAmount(amount, in.Decimals)
	if err != nil {
		return nil, err
	}
	return units.ToBaseUnits(human.Mul(priceIn).Div(priceOut), out.Decimals)
}

// CoinGeckoAPI is the subset of the CoinGecko client used for prices.
type CoinGeckoAPI interface {
	SimplePrice(ctx context.Context, ids ...string) (map[string]decimal.Decimal, error)
}

type coinGeckoPrices struct {
	api CoinGeckoAPI
}

// NewCoinGeckoPrices resolves prices by each record's PriceSourceID in one request.
func NewCoinGeckoPrices(api CoinGeckoAPI) PriceFetcher {
	return &coinGeckoPrices{api: api}
}

func (c *coinGeckoPrices) USDPrices(ctx context.Context, records ...tokens.Record) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.PriceSourceID == "" {
			return nil, fmt.Errorf("%s has no coingecko id", r.Symbol)
		}
		ids = append(ids, r.PriceSourceID)
	}
	byID, err := c.api.SimplePrice(ctx, ids...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(records))
	for _, r := range records {
		out[r.Symbol] = byID[r.PriceSourceID]
	}
	return out, nil
}

type birdeyePrices struct {
	api BirdeyeAPI
}

// NewBirdeyePrices resolves prices by mint, one request per token.
func NewBirdeyePrices(api BirdeyeAPI) PriceFetcher {
	return &birdeyePrices{api: api}
}

func (b *birdeyePrices) USDPrices(ctx context.Context, records ...tokens.Record) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(records))
	for _, r := range records {
		p, err := b.api.Price(ctx, r.Mint)
		if err != nil {
			return nil, fmt.Errorf("%s price: %w", r.Symbol, err)
		}
		out[r.Symbol] = *p.Value
	}
	return out, nil
}

type cachedPrices struct {
	name  string
	inner PriceFetcher
	cache *quotecache.Cache[map[string]decimal.Decimal]
}

// WithPriceCache memoizes price tables for quotecache.TTLPrices so bursts of quotes
// stay under upstream rate limits.
func WithPriceCache(name string, inner PriceFetcher, cache *quotecache.Cache[map[string]decimal.Decimal]) PriceFetcher {
	return &cachedPrices{name: name, inner: inner, cache: cache}
}

func (c *cachedPrices) USDPrices(ctx context.Context, records ...tokens.Record) (map[string]decimal.Decimal, error) {
	symbols := make([]string, 0, len(records))
	for _, r := range records {
		symbols = append(symbols, r.Symbol)
	}
	sort.Strings(symbols)
	key := "prices:" + c.name + ":" + strings.Join(symbols, ",")

	if e, ok := c.cache.Get(ctx, key); ok {
		return e.Value, nil
	}
	prices, err := c.inner.USDPrices(ctx, records...)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Put(ctx, key, prices, quotecache.TTLPrices)
	return prices, nil
}
