package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/synthetic"
)

const defaultTimeframe = "15m"

// GetMarket returns the current market snapshot without fetching
func (h *Handlers) GetMarket(c echo.Context) error {
	return c.JSON(http.StatusOK, MarketResponse{MarketSnapshot: h.Market.Snapshot()})
}

// Price returns the last trade seen on the realtime feed
func (h *Handlers) Price(c echo.Context) error {
	if h.Ticker == nil {
		return h.err(c, http.StatusServiceUnavailable, "price feed is not configured", nil)
	}
	trade, ok := h.Ticker.Snapshot()
	if !ok {
		return h.err(c, http.StatusServiceUnavailable, "no trade received yet", nil)
	}
	return c.JSON(http.StatusOK, PriceResponse{
		Symbol:    h.Ticker.Symbol(),
		Trade:     trade,
		Connected: h.Ticker.Connected(),
	})
}

// TokenActivity returns the latest swaps touching a token's mint
func (h *Handlers) TokenActivity(c echo.Context) error {
	if h.Activity == nil {
		return h.err(c, http.StatusServiceUnavailable, "activity feed is not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	rep, err := h.Activity.Activity(ctx, c.Param("symbol"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ActivityResponse{Report: rep})
}

// RefreshMarket fetches a new snapshot unless the cached one is still fresh
// If a refresh is already running the current snapshot is returned
func (h *Handlers) RefreshMarket(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	return c.JSON(http.StatusOK, MarketResponse{MarketSnapshot: h.Market.Refresh(ctx)})
}

// OrderBook returns a synthetic book around mid, defaulting to the market price
func (h *Handlers) OrderBook(c echo.Context) error {
	mid := h.Market.Snapshot().Price
	if v := strings.TrimSpace(c.QueryParam("mid")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return h.fail(c, apperror.Validation(apperror.CodeInvalidInput, "mid must be a number"))
		}
		mid = d
	}

	book, err := h.Synthetic.OrderBook(mid)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, OrderBookResponse{
		OrderBook:    book,
		MaxAskAmount: synthetic.MaxAmount(book.Asks),
		MaxBidAmount: synthetic.MaxAmount(book.Bids),
	})
}

// Candles returns synthetic price history seeded from the market price
func (h *Handlers) Candles(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("timeframe"))
	if raw == "" {
		raw = defaultTimeframe
	}
	tf, err := synthetic.ParseTimeframe(raw)
	if err != nil {
		return h.fail(c, err)
	}

	series, err := h.Synthetic.Candles(tf, h.Market.Snapshot().Price, time.Now())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, series)
}
