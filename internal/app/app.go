// Package app assembles the quote service from configuration: upstream clients,
// provider chains, caches, storage and the quote engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/activity"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/birdeye"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/cache"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/coingecko"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/config"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/flags"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/helius"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/jupiter"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/market"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/pricing"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/quotecache"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/storage"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/stream"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/swapengine"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/wallet"
)

// Provider names as they appear in metrics, failures and toggles.
const (
	ProviderJupiter   = "jupiter"
	ProviderBirdeye   = "birdeye"
	ProviderCoinGecko = "coingecko"
	ProviderHelius    = "helius"
	ProviderTicker    = "ticker"
)

// App is the assembled service.
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Metrics   *metrics.Metrics
	Catalog   *tokens.Catalog
	Engine    *swapengine.Engine
	Sessions  *swapengine.Sessions
	Market    *market.Refresher
	Activity  *activity.Service
	Ticker    *stream.Ticker // nil when disabled
	Wallet    wallet.Provider
	Flags     *flags.Store         // nil without Redis
	PubSub    *cache.PubSubManager // nil without Redis
	Journal   storage.QuoteJournal // storage.Nop without ClickHouse
	Providers []string

	redis *redis.Client
}

// New wires every component. Redis and ClickHouse are optional: without Redis the
// caches live in memory and events are dropped; a ClickHouse that cannot be reached
// at startup disables the journal with a warning.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewMetrics(cfg.MetricsNamespace),
		Catalog: tokens.Default(logger),
		Journal: storage.Nop{},
	}

	var backend quotecache.Backend = quotecache.NewMemoryBackend()
	var publisher storage.EventPublisher = storage.Nop{}
	var toggles pricing.Toggles

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}

		rb, err := quotecache.NewRedisBackend(a.redis)
		if err != nil {
			return nil, err
		}
		backend = rb

		if a.PubSub, err = cache.NewPubSubManager(a.redis, logger); err != nil {
			return nil, err
		}
		publisher = a.PubSub

		if a.Flags, err = flags.NewStore(a.redis, logger); err != nil {
			return nil, err
		}
		toggles = a.Flags
	}

	if cfg.ClickHouseAddr != "" {
		store, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("clickhouse unavailable, quote journal disabled")
		} else {
			a.Journal = store
		}
	}

	jup := jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterAPIKey)
	bird := birdeye.NewClient(cfg.BirdeyeBaseURL, cfg.BirdeyeAPIKey)
	gecko := coingecko.NewClient(cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey, cfg.CoinGeckoPro)
	hel := helius.NewClient(cfg.HeliusBaseURL, cfg.HeliusAPIKey)

	cacheOpts := func(name string) []quotecache.Option {
		return []quotecache.Option{quotecache.WithLogger(logger), quotecache.WithObserver(name, a.Metrics)}
	}
	priceCache := quotecache.New[map[string]decimal.Decimal](backend, cacheOpts("prices")...)
	birdPrices := pricing.WithPriceCache(ProviderBirdeye, pricing.NewBirdeyePrices(bird), priceCache)
	geckoPrices := pricing.WithPriceCache(ProviderCoinGecko, pricing.NewCoinGeckoPrices(gecko), priceCache)

	breaker := pricing.BreakerConfig{
		MaxFailures: uint32(cfg.BreakerMaxFailures),
		OpenTimeout: cfg.BreakerOpenTimeout,
		Logger:      logger,
		Metrics:     a.Metrics,
	}
	chainCfg := func(name string) pricing.ChainConfig {
		return pricing.ChainConfig{Name: name, Logger: logger, Metrics: a.Metrics}
	}

	quoteChain := pricing.NewChain(chainCfg("quote"),
		quoteStep(pricing.NewJupiterQuotes(jup), toggles, breaker.Scoped("quote"), cfg.ProviderTimeout),
		quoteStep(pricing.NewDerivedQuotes(ProviderBirdeye, "Birdeye Prices", birdPrices), toggles, breaker.Scoped("quote"), cfg.ProviderTimeout),
		quoteStep(pricing.NewDerivedQuotes(ProviderCoinGecko, "CoinGecko Prices", geckoPrices), toggles, breaker.Scoped("quote"), cfg.ProviderTimeout),
	)

	spotSteps := []pricing.Step[tokens.Record, decimal.Decimal]{
		spotStep(pricing.NewSpotProvider(ProviderBirdeye, birdPrices), toggles, breaker.Scoped("spot"), cfg.ProviderTimeout),
	}
	if cfg.TickerEnabled {
		a.Ticker = stream.NewTicker(stream.Config{
			URL:     cfg.TickerURL,
			Symbol:  "SOL",
			Logger:  logger,
			Metrics: a.Metrics,
		})
		spotSteps = append(spotSteps, spotStep(pricing.NewTickerSpot(a.Ticker, cfg.TickerMaxAge), toggles, breaker.Scoped("spot"), cfg.ProviderTimeout))
	}
	spotSteps = append(spotSteps, spotStep(pricing.NewSpotProvider(ProviderCoinGecko, geckoPrices), toggles, breaker.Scoped("spot"), cfg.ProviderTimeout))
	spotChain := pricing.NewChain(chainCfg("spot"), spotSteps...)

	statsChain := pricing.NewChain(chainCfg("stats"), pricing.Step[tokens.Record, pricing.Stats]{
		Provider: pricing.WithToggle(pricing.WithBreaker(pricing.NewBirdeyeStats(bird), breaker.Scoped("stats")), toggles),
		Timeout:  cfg.ProviderTimeout,
	})

	// Without HELIUS_API_KEY every fetch fails and the route answers 503.
	activityChain := pricing.NewChain(chainCfg("activity"), pricing.Step[tokens.Record, activity.Report]{
		Provider: pricing.WithToggle(pricing.WithBreaker[tokens.Record, activity.Report](activity.NewProvider(hel, a.Catalog, logger), breaker.Scoped("activity")), toggles),
		Timeout:  cfg.ProviderTimeout,
	})
	var err error
	a.Activity, err = activity.NewService(activity.Config{
		Catalog:  a.Catalog,
		Resolver: activityChain,
		Cache:    quotecache.New[activity.Report](backend, cacheOpts("activity")...),
		TTL:      cfg.ActivityTTL,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	a.Providers = []string{ProviderJupiter, ProviderBirdeye, ProviderCoinGecko, ProviderHelius}
	if a.Ticker != nil {
		a.Providers = append(a.Providers, ProviderTicker)
	}

	engine, err := swapengine.NewEngine(swapengine.EngineConfig{
		Catalog:         a.Catalog,
		Quoter:          quoteChain,
		Cache:           quotecache.New[models.Quote](backend, cacheOpts("quotes")...),
		Swaps:           jup,
		Journal:         a.Journal,
		Publisher:       publisher,
		Metrics:         a.Metrics,
		Logger:          logger,
		ReferencePrices: cfg.ReferencePrices,
		QuoteTTL:        cfg.QuoteTTL,
		CoalesceWindow:  cfg.CoalesceWindow,
		DefaultSlippage: cfg.DefaultSlippage,
	})
	if err != nil {
		return nil, err
	}
	a.Engine = engine
	a.Sessions = swapengine.NewSessions(engine)

	sol, err := a.Catalog.Lookup("SOL")
	if err != nil {
		return nil, err
	}
	a.Market, err = market.NewRefresher(ctx, market.Config{
		Token:     sol,
		Spot:      spotChain,
		Stats:     statsChain,
		Cache:     quotecache.New[models.MarketSnapshot](backend, cacheOpts("market")...),
		Publisher: publisher,
		Metrics:   a.Metrics,
		Logger:    logger,
		Defaults: market.Defaults{
			Price:     cfg.MarketDefaultPrice,
			TVL:       cfg.MarketDefaultTVL,
			Volume24h: cfg.MarketDefaultVolume,
			Trades24h: cfg.MarketDefaultTrades,
		},
		TTL: cfg.MarketTTL,
	})
	if err != nil {
		return nil, err
	}

	a.Wallet, err = wallet.New(wallet.WalletConfig{
		RPCURL:            cfg.RPCUrl,
		Timeout:           cfg.HTTPTimeout,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		PrivateKey:        cfg.WalletPrivateKey,
		DefaultCommitment: "confirmed",
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"providers": a.Providers,
		"redis":     a.redis != nil,
		"journal":   cfg.ClickHouseAddr != "",
	}).Info("quote service assembled")
	return a, nil
}

// Run starts the background workers: realtime ticker, market refresher and the
// idle session sweeper. It blocks until ctx is done.
func (a *App) Run(ctx context.Context) {
	done := make(chan struct{})
	workers := 1

	if a.Ticker != nil {
		workers++
		go func() {
			defer func() { done <- struct{}{} }()
			if err := a.Ticker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.WithError(err).Warn("ticker stopped")
			}
		}()
	}

	go func() {
		defer func() { done <- struct{}{} }()
		a.Market.Run(ctx, a.Config.MarketRefreshInterval)
	}()

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			for i := 0; i < workers; i++ {
				<-done
			}
			return
		case <-sweep.C:
			if n := a.Sessions.Sweep(a.Config.SessionIdleTTL); n > 0 {
				a.Logger.WithField("sessions", n).Debug("swept idle sessions")
			}
		}
	}
}

// Redis returns the shared client, or nil when Redis is not configured.
func (a *App) Redis() *redis.Client { return a.redis }

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	if a.Journal != nil {
		errs = append(errs, a.Journal.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

func quoteStep(p pricing.Provider[pricing.QuoteRequest, pricing.QuotePayload], toggles pricing.Toggles, b pricing.BreakerConfig, timeout time.Duration) pricing.Step[pricing.QuoteRequest, pricing.QuotePayload] {
	return pricing.Step[pricing.QuoteRequest, pricing.QuotePayload]{
		Provider: pricing.WithToggle(pricing.WithBreaker(p, b), toggles),
		Timeout:  timeout,
	}
}

func spotStep(p pricing.Provider[tokens.Record, decimal.Decimal], toggles pricing.Toggles, b pricing.BreakerConfig, timeout time.Duration) pricing.Step[tokens.Record, decimal.Decimal] {
	return pricing.Step[tokens.Record, decimal.Decimal]{
		Provider: pricing.WithToggle(pricing.WithBreaker(p, b), toggles),
		Timeout:  timeout,
	}
}
