package synthetic

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
)

func TestOrderBook(t *testing.T) {
	g := NewSeeded(7)
	book, err := g.OrderBook(decimal.RequireFromString("150.30"))
	require.NoError(t, err)

	require.Len(t, book.Asks, 12)
	require.Len(t, book.Bids, 12)
	assert.Equal(t, Source, book.Source)

	assert.Equal(t, "150.35", book.Asks[0].Price.StringFixed(2))
	assert.Equal(t, "150.90", book.Asks[11].Price.StringFixed(2))
	assert.Equal(t, "150.30", book.Bids[0].Price.StringFixed(2))
	assert.Equal(t, "149.75", book.Bids[11].Price.StringFixed(2))

	for i := 1; i < 12; i++ {
		assert.True(t, book.Asks[i].Price.GreaterThan(book.Asks[i-1].Price), "asks ascend")
		assert.True(t, book.Bids[i].Price.LessThan(book.Bids[i-1].Price), "bids descend")
	}

	five, fiftyFive := decimal.NewFromInt(5), decimal.NewFromInt(55)
	for _, r := range append(book.Asks, book.Bids...) {
		assert.True(t, r.Amount.GreaterThanOrEqual(five) && r.Amount.LessThanOrEqual(fiftyFive), r.Amount.String())
		assert.True(t, r.Total.Equal(r.Price.Mul(r.Amount).Round(2)))
	}

	assert.Equal(t, "0.05", book.Spread.StringFixed(2))
	assert.False(t, book.Spread.IsNegative())
	assert.Equal(t, "0.033", book.SpreadPercent.StringFixed(3))
	assert.Equal(t, "150.33", book.MidPrice.StringFixed(2))
}

func TestOrderBook_RejectsNonPositiveMid(t *testing.T) {
	_, err := NewSeeded(1).OrderBook(decimal.Zero)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestOrderBook_LowMidTruncatesBids(t *testing.T) {
	book, err := NewSeeded(1).OrderBook(decimal.RequireFromString("0.2"))
	require.NoError(t, err)
	assert.Len(t, book.Asks, 12)
	assert.Len(t, book.Bids, 4)
}

func TestMaxAmount(t *testing.T) {
	assert.Equal(t, "1", MaxAmount(nil).String())
	rows := []Row{{Amount: decimal.NewFromInt(3)}, {Amount: decimal.NewFromInt(9)}, {Amount: decimal.NewFromInt(4)}}
	assert.Equal(t, "9", MaxAmount(rows).String())
}

func TestCandles_Shapes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	want := map[Timeframe]struct {
		count    int
		interval time.Duration
	}{
		Timeframe1m:  {60, time.Minute},
		Timeframe5m:  {48, 5 * time.Minute},
		Timeframe15m: {24, 15 * time.Minute},
		Timeframe1H:  {24, time.Hour},
		Timeframe4H:  {42, 4 * time.Hour},
		Timeframe1D:  {30, 24 * time.Hour},
	}

	g := NewSeeded(42)
	for _, tf := range Timeframes() {
		s, err := g.Candles(tf, decimal.NewFromInt(150), now)
		require.NoError(t, err, tf)

		w := want[tf]
		require.Len(t, s.Candles, w.count, tf)
		assert.Equal(t, Source, s.Source)
		assert.Equal(t, now, s.Candles[len(s.Candles)-1].Time)
		assert.Equal(t, w.interval, s.Candles[1].Time.Sub(s.Candles[0].Time))
	}
}

func TestCandles_Walk(t *testing.T) {
	s, err := NewSeeded(3).Candles(Timeframe15m, decimal.NewFromInt(150), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "150.00", s.Candles[0].Open.StringFixed(2))
	for i, c := range s.Candles {
		assert.True(t, c.High.GreaterThanOrEqual(decimal.Max(c.Open, c.Close)), i)
		assert.True(t, c.Low.LessThanOrEqual(decimal.Min(c.Open, c.Close)), i)
		assert.True(t, c.Close.Sub(c.Open).Abs().LessThanOrEqual(decimal.NewFromInt(2)), i)
		assert.True(t, c.Volume.GreaterThanOrEqual(decimal.NewFromInt(50_000)), i)
		assert.True(t, c.Volume.LessThanOrEqual(decimal.NewFromInt(1_050_000)), i)
		if i > 0 {
			assert.True(t, c.Open.Equal(s.Candles[i-1].Close), "close-to-close walk")
		}
	}
}

func TestCandles_Deterministic(t *testing.T) {
	now := time.Now()
	a, _ := NewSeeded(9).Candles(Timeframe1H, decimal.Zero, now)
	b, _ := NewSeeded(9).Candles(Timeframe1H, decimal.Zero, now)
	assert.Equal(t, a, b)
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("4H")
	require.NoError(t, err)
	assert.Equal(t, Timeframe4H, tf)

	_, err = ParseTimeframe("2m")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTimeframe))

	_, err = NewSeeded(1).Candles("1W", decimal.Zero, time.Now())
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTimeframe))
}
