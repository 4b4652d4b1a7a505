// Package synthetic generates decorative market depth and price history. Nothing it
// returns is live data; every result carries Source "synthetic".
package synthetic

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
)

// Source tags every generated value.
const Source = "synthetic"

const (
	bookDepth = 12
	// DefaultSeedPrice starts the candle walk when no seed is given.
	DefaultSeedPrice = 150
)

var (
	priceStep = decimal.RequireFromString("0.05")
	hundred   = decimal.NewFromInt(100)
	two       = decimal.NewFromInt(2)
)

// Generator draws from a single random source. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a generator over rnd, or over a randomly seeded source when nil.
func New(rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rnd: rnd}
}

// NewSeeded returns a deterministic generator, for tests and demos.
func NewSeeded(seed uint64) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func (g *Generator) float() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64()
}

// Row is one price level.
type Row struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Total  decimal.Decimal `json:"total"`
}

// OrderBook is a two-sided book around a mid price. Asks ascend and bids descend,
// both moving away from mid.
type OrderBook struct {
	Asks          []Row           `json:"asks"`
	Bids          []Row           `json:"bids"`
	Spread        decimal.Decimal `json:"spread"`
	SpreadPercent decimal.Decimal `json:"spreadPercent"`
	MidPrice      decimal.Decimal `json:"midPrice"`
	Source        string          `json:"source"`
}

// OrderBook generates a book with the first bid at mid and the first ask one
// step above it.
func (g *Generator) OrderBook(mid decimal.Decimal) (OrderBook, error) {
	if !mid.IsPositive() {
		return OrderBook{}, apperror.Validation(apperror.CodeInvalidInput, "mid price must be positive")
	}

	book := OrderBook{
		Asks:   make([]Row, 0, bookDepth),
		Bids:   make([]Row, 0, bookDepth),
		Source: Source,
	}
	for i := 0; i < bookDepth; i++ {
		offset := priceStep.Mul(decimal.NewFromInt(int64(i)))
		book.Asks = append(book.Asks, g.row(mid.Add(priceStep).Add(offset)))

		if bid := mid.Sub(offset); bid.IsPositive() {
			book.Bids = append(book.Bids, g.row(bid))
		}
	}

	lowestAsk := book.Asks[0].Price
	highestBid := book.Bids[0].Price
	book.Spread = lowestAsk.Sub(highestBid).Round(2)
	book.SpreadPercent = book.Spread.Div(lowestAsk).Mul(hundred).Round(3)
	book.MidPrice = lowestAsk.Add(highestBid).Div(two).Round(2)
	return book, nil
}

func (g *Generator) row(price decimal.Decimal) Row {
	price = price.Round(2)
	amount := decimal.NewFromFloat(g.float()*50 + 5).Round(2)
	return Row{
		Price:  price,
		Amount: amount,
		Total:  price.Mul(amount).Round(2),
	}
}

// MaxAmount returns the largest amount in rows, or 1 when rows is empty.
func MaxAmount(rows []Row) decimal.Decimal {
	if len(rows) == 0 {
		return decimal.NewFromInt(1)
	}
	m := rows[0].Amount
	for _, r := range rows[1:] {
		if r.Amount.GreaterThan(m) {
			m = r.Amount
		}
	}
	return m
}

// Timeframe names a candle bucket width.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1H  Timeframe = "1H"
	Timeframe4H  Timeframe = "4H"
	Timeframe1D  Timeframe = "1D"
)

type shape struct {
	count    int
	interval time.Duration
}

var shapes = map[Timeframe]shape{
	Timeframe1m:  {60, time.Minute},
	Timeframe5m:  {48, 5 * time.Minute},
	Timeframe15m: {24, 15 * time.Minute},
	Timeframe1H:  {24, time.Hour},
	Timeframe4H:  {42, 4 * time.Hour},
	Timeframe1D:  {30, 24 * time.Hour},
}

// Timeframes lists the supported timeframes from shortest to longest.
func Timeframes() []Timeframe {
	return []Timeframe{Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1H, Timeframe4H, Timeframe1D}
}

// ParseTimeframe validates s.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := shapes[tf]; !ok {
		return "", apperror.New(apperror.CodeInvalidTimeframe, apperror.WithContext(s))
	}
	return tf, nil
}

// Candle is one OHLCV bucket.
type Candle struct {
	Time   time.Time       `json:"time"`
	Label  string          `json:"label"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Series is a candle sequence, oldest first.
type Series struct {
	Timeframe Timeframe `json:"timeframe"`
	Candles   []Candle  `json:"candles"`
	Source    string    `json:"source"`
}

// Candles walks from seed with steps in [-2, 2) and wicks up to 2 beyond the body.
// The last candle is stamped now. A non-positive seed starts at DefaultSeedPrice.
func (g *Generator) Candles(tf Timeframe, seed decimal.Decimal, now time.Time) (Series, error) {
	sh, ok := shapes[tf]
	if !ok {
		return Series{}, apperror.New(apperror.CodeInvalidTimeframe, apperror.WithContext(string(tf)))
	}
	if !seed.IsPositive() {
		seed = decimal.NewFromInt(DefaultSeedPrice)
	}

	out := Series{Timeframe: tf, Candles: make([]Candle, 0, sh.count), Source: Source}
	last := seed.InexactFloat64()
	for i := sh.count - 1; i >= 0; i-- {
		at := now.Add(-time.Duration(i) * sh.interval)

		open := last
		closePrice := open + (g.float()-0.5)*4
		high := max(open, closePrice) + g.float()*2
		low := max(min(open, closePrice)-g.float()*2, 0)
		volume := g.float()*1_000_000 + 50_000

		out.Candles = append(out.Candles, Candle{
			Time:   at,
			Label:  label(at, tf),
			Open:   decimal.NewFromFloat(open).Round(2),
			High:   decimal.NewFromFloat(high).Round(2),
			Low:    decimal.NewFromFloat(low).Round(2),
			Close:  decimal.NewFromFloat(closePrice).Round(2),
			Volume: decimal.NewFromFloat(volume).Round(2),
		})
		last = closePrice
	}
	return out, nil
}

func label(t time.Time, tf Timeframe) string {
	if tf == Timeframe1D {
		return t.Format("Jan 2")
	}
	return t.Format("15:04")
}
