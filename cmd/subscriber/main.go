package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/cache"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/config"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/storage"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

// main follows the quote and market event channels and logs every message
func main() {
	loadEnv()

	pattern := flag.String("pattern", constants.PubSubPatternAll, "channel pattern to follow")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	cfg := config.Load()
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down subscriber")
		cancel()
	}()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", addr).Fatal("failed to connect to Redis")
	}

	ps, err := cache.NewPubSubManager(client, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create pubsub manager")
	}

	logger.WithField("pattern", *pattern).Info("subscriber running, press Ctrl+C to stop")
	err = ps.PSubscribe(ctx, *pattern, func(ev storage.Event) {
		entry := logger.WithFields(logrus.Fields{"channel": ev.Channel, "type": ev.Type})
		switch {
		case ev.Quote != nil:
			q := ev.Quote
			entry.WithFields(logrus.Fields{
				"pair":   q.InputToken + "/" + q.OutputToken,
				"in":     q.InAmount,
				"out":    q.OutAmount,
				"min":    q.MinimumOut,
				"source": q.Source,
				"route":  q.SourceLabel,
			}).Info("quote")
		case ev.Market != nil:
			m := ev.Market
			entry.WithFields(logrus.Fields{
				"price":     m.Price.String(),
				"tvl":       m.TVL.String(),
				"volume24h": m.Volume24h.String(),
				"trades24h": m.Trades24h,
				"source":    m.Source,
			}).Info("market")
		default:
			entry.Warn("unrecognised event")
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("subscription failed")
	}
}
