package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
)

// QuoteJournal defines the interface for persistent quote history
type QuoteJournal interface {
	// InsertQuote records a quote served from a live upstream
	InsertQuote(ctx context.Context, quote models.Quote) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// EventPublisher fans quote and market updates out to subscribers
type EventPublisher interface {
	// PublishQuote publishes a quote to the live and per-pair channels
	PublishQuote(ctx context.Context, quote models.Quote) error

	// PublishMarket publishes a refreshed market snapshot
	PublishMarket(ctx context.Context, snap models.MarketSnapshot) error
}

// Event is one message received from the event channels
type Event struct {
	Channel string                 `json:"-"`
	Type    string                 `json:"type"`
	Quote   *models.Quote          `json:"quote,omitempty"`
	Market  *models.MarketSnapshot `json:"market,omitempty"`
}

// Event types
const (
	EventQuote  = "quote"
	EventMarket = "market"
)

// EventHandler processes received events
type EventHandler func(Event)

// Nop discards journal writes and events.
type Nop struct{}

func (Nop) InsertQuote(context.Context, models.Quote) error            { return nil }
func (Nop) PublishQuote(context.Context, models.Quote) error           { return nil }
func (Nop) PublishMarket(context.Context, models.MarketSnapshot) error { return nil }
func (Nop) Ping(context.Context) error                                 { return nil }
func (Nop) Close() error                                               { return nil }
