package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/storage"
)

type PubSubManager struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

func NewPubSubManager(client redis.UniversalClient, logger *logrus.Logger) (*PubSubManager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}, nil
}

// PublishQuote publishes a quote to the live channel and its pair channel.
func (p *PubSubManager) PublishQuote(ctx context.Context, quote models.Quote) error {
	data, err := json.Marshal(storage.Event{Type: storage.EventQuote, Quote: &quote})
	if err != nil {
		return err
	}

	channels := []string{
		constants.PubSubChannelQuotes,
		constants.PairChannel(quote.InputToken, quote.OutputToken),
	}

	pipe := p.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// PublishMarket publishes a market snapshot.
func (p *PubSubManager) PublishMarket(ctx context.Context, snap models.MarketSnapshot) error {
	data, err := json.Marshal(storage.Event{Type: storage.EventMarket, Market: &snap})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, constants.PubSubChannelMarket, data).Err()
}

// Subscribe delivers events from a channel until ctx ends.
func (p *PubSubManager) Subscribe(ctx context.Context, channel string, handler storage.EventHandler) error {
	pubsub := p.client.Subscribe(ctx, channel)
	return p.consume(ctx, pubsub, channel, handler)
}

// PSubscribe delivers events from channels matching pattern (e.g. "quotes:pair:*").
func (p *PubSubManager) PSubscribe(ctx context.Context, pattern string, handler storage.EventHandler) error {
	pubsub := p.client.PSubscribe(ctx, pattern)
	return p.consume(ctx, pubsub, pattern, handler)
}

func (p *PubSubManager) consume(ctx context.Context, pubsub *redis.PubSub, name string, handler storage.EventHandler) error {
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting it.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", name, err)
	}
	p.logger.WithField("channel", name).Info("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev storage.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.logger.WithError(err).WithField("channel", msg.Channel).Warn("error unmarshaling event")
				continue
			}
			ev.Channel = msg.Channel
			handler(ev)
		}
	}
}
