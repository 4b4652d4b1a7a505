package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/birdeye"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
)

// BirdeyeAPI is the subset of the Birdeye client used here.
type BirdeyeAPI interface {
	Price(ctx context.Context, address string) (*birdeye.Price, error)
	TokenOverview(ctx context.Context, address string) (*birdeye.TokenOverview, error)
}

type SpotChain = Chain[tokens.Record, decimal.Decimal]

type fetcherSpot struct {
	name    string
	fetcher PriceFetcher
}

// NewSpotProvider exposes a PriceFetcher as a single-token spot price provider.
func NewSpotProvider(name string, fetcher PriceFetcher) Provider[tokens.Record, decimal.Decimal] {
	return &fetcherSpot{name: name, fetcher: fetcher}
}

func (f *fetcherSpot) Name() string { return f.name }

func (f *fetcherSpot) Fetch(ctx context.Context, token tokens.Record) (decimal.Decimal, error) {
	prices, err := f.fetcher.USDPrices(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	p, ok := prices[token.Symbol]
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("no %s price for %s", f.name, token.Symbol)
	}
	return p, nil
}

// LastPricer is a realtime feed tracking the last traded price of one token.
type LastPricer interface {
	Symbol() string
	Last() (price decimal.Decimal, at time.Time, ok bool)
}

type tickerSpot struct {
	feed   LastPricer
	maxAge time.Duration
	now    func() time.Time
}

// NewTickerSpot serves the feed's last trade while it is younger than maxAge.
func NewTickerSpot(feed LastPricer, maxAge time.Duration) Provider[tokens.Record, decimal.Decimal] {
	return &tickerSpot{feed: feed, maxAge: maxAge, now: time.Now}
}

func (t *tickerSpot) Name() string { return "ticker" }

func (t *tickerSpot) Fetch(_ context.Context, token tokens.Record) (decimal.Decimal, error) {
	if token.Symbol != t.feed.Symbol() {
		return decimal.Zero, fmt.Errorf("ticker tracks %s, not %s", t.feed.Symbol(), token.Symbol)
	}
	price, at, ok := t.feed.Last()
	if !ok {
		return decimal.Zero, fmt.Errorf("ticker has no trades yet")
	}
	if age := t.now().Sub(at); t.maxAge > 0 && age > t.maxAge {
		return decimal.Zero, fmt.Errorf("ticker price is stale (%s old)", age.Truncate(time.Second))
	}
	return price, nil
}

// Stats are liquidity and 24h activity figures. Nil fields were not reported.
type Stats struct {
	Liquidity *decimal.Decimal
	Volume24h *decimal.Decimal
	Trades24h *int64
}

type StatsChain = Chain[tokens.Record, Stats]

type birdeyeStats struct {
	api BirdeyeAPI
}

func NewBirdeyeStats(api BirdeyeAPI) Provider[tokens.Record, Stats] {
	return &birdeyeStats{api: api}
}

func (b *birdeyeStats) Name() string { return "birdeye" }

func (b *birdeyeStats) Fetch(ctx context.Context, token tokens.Record) (Stats, error) {
	o, err := b.api.TokenOverview(ctx, token.Mint)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Liquidity: o.Liquidity,
		Volume24h: o.Volume24h,
		Trades24h: o.Trades24h,
	}, nil
}
