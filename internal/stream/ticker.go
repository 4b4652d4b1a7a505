// Package stream follows a realtime trade feed and keeps the last traded price.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
)

const DefaultBinanceURL = "wss://stream.binance.com:9443/ws/solusdt@trade"

// Trade is one print from the feed, with the percent move from the previous print.
type Trade struct {
	Price     decimal.Decimal `json:"price"`
	ChangePct decimal.Decimal `json:"changePct"`
	At        time.Time       `json:"at"`
}

type Config struct {
	URL            string
	Symbol         string // catalog symbol the feed prices, e.g. SOL
	ReconnectDelay time.Duration
	ReadTimeout    time.Duration
	Logger         *logrus.Logger
	Metrics        *metrics.Metrics
	OnTrade        func(Trade)
}

// Ticker consumes a Binance trade stream. It reconnects after ReconnectDelay
// whenever the connection drops, until its context ends.
type Ticker struct {
	cfg    Config
	dialer *websocket.Dialer

	connected atomic.Bool

	mu   sync.RWMutex
	last Trade
	has  bool
}

func NewTicker(cfg Config) *Ticker {
	if cfg.URL == "" {
		cfg.URL = DefaultBinanceURL
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "SOL"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Ticker{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

func (t *Ticker) Symbol() string { return t.cfg.Symbol }

// Connected reports whether a stream connection is currently open.
func (t *Ticker) Connected() bool { return t.connected.Load() }

// Last returns the most recent traded price.
func (t *Ticker) Last() (decimal.Decimal, time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last.Price, t.last.At, t.has
}

// Snapshot returns the most recent trade.
func (t *Ticker) Snapshot() (Trade, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.has
}

// Run blocks until ctx is done.
func (t *Ticker) Run(ctx context.Context) error {
	log := t.cfg.Logger.WithField("url", t.cfg.URL)
	for {
		err := t.session(ctx)
		t.connected.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).WithField("retry_in", t.cfg.ReconnectDelay).Warn("price stream disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.ReconnectDelay):
		}
	}
}

func (t *Ticker) session(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.cfg.URL, http.Header{})
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	t.connected.Store(true)
	t.cfg.Logger.WithField("url", t.cfg.URL).Info("price stream connected")

	for {
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}
		trade, err := t.apply(data)
		if err != nil {
			t.cfg.Logger.WithError(err).Debug("skipping stream message")
			continue
		}
		t.cfg.Metrics.TickerMessage()
		if t.cfg.OnTrade != nil {
			t.cfg.OnTrade(trade)
		}
	}
}

type tradeMessage struct {
	Event     string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

func (t *Ticker) apply(data []byte) (Trade, error) {
	var msg tradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Trade{}, err
	}
	if msg.Event != "" && !strings.EqualFold(msg.Event, "trade") {
		return Trade{}, fmt.Errorf("unexpected event %q", msg.Event)
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return Trade{}, fmt.Errorf("bad price %q: %w", msg.Price, err)
	}
	if !price.IsPositive() {
		return Trade{}, fmt.Errorf("non-positive price %s", price)
	}
	at := time.Now()
	if msg.TradeTime > 0 {
		at = time.UnixMilli(msg.TradeTime)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	change := decimal.Zero
	if t.has && t.last.Price.IsPositive() {
		change = price.Sub(t.last.Price).Div(t.last.Price).Mul(decimal.NewFromInt(100))
	}
	t.last = Trade{Price: price, ChangePct: change, At: at}
	t.has = true
	return t.last, nil
}
