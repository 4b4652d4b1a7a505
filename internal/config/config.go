package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/quotecache"
)

const defaultReferencePrices = "SOL=139,USDC=1,USDT=1,RAY=1.5"

type Config struct {
	// API server settings
	APIAddr string
	APIKey  string
	DevMode bool

	// Quote endpoint rate limit per client, requests per second
	QuoteRateLimit float64
	QuoteRateBurst int

	// Redis settings. Empty disables the Redis cache backend, pub/sub and flags.
	RedisAddr string

	// ClickHouse settings. Empty disables the quote journal.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// RPC and wallet settings
	RPCUrl           string
	WalletPrivateKey string
	HTTPTimeout      time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration

	// Upstream providers
	JupiterBaseURL   string
	JupiterAPIKey    string
	BirdeyeBaseURL   string
	BirdeyeAPIKey    string
	CoinGeckoBaseURL string
	CoinGeckoAPIKey  string
	CoinGeckoPro     bool
	HeliusBaseURL    string
	HeliusAPIKey     string
	ProviderTimeout  time.Duration

	// Circuit breaker, per provider
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration

	// Realtime ticker
	TickerEnabled bool
	TickerURL     string
	TickerMaxAge  time.Duration

	// Quote engine
	QuoteTTL        time.Duration
	CoalesceWindow  time.Duration
	DefaultSlippage decimal.Decimal
	ReferencePrices map[string]decimal.Decimal
	SessionIdleTTL  time.Duration

	// Market data
	MarketRefreshInterval time.Duration
	MarketTTL             time.Duration
	MarketDefaultPrice    decimal.Decimal
	MarketDefaultTVL      decimal.Decimal
	MarketDefaultVolume   decimal.Decimal
	MarketDefaultTrades   int64

	// Token swap activity
	ActivityTTL time.Duration

	MetricsNamespace string

	// parse errors surfaced by Validate
	errs []error
}

func Load() *Config {
	cfg := &Config{
		// API
		APIAddr:        getEnv("API_ADDR", ":8090"),
		APIKey:         getEnv("API_KEY", ""),
		DevMode:        getBoolEnv("DEV_MODE", false),
		QuoteRateLimit: getFloatEnv("QUOTE_RATE_LIMIT", 5),
		QuoteRateBurst: getIntEnv("QUOTE_RATE_BURST", 10),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solana"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// RPC / wallet
		RPCUrl:           getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
		HTTPTimeout:      getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:       getIntEnv("MAX_RETRIES", 5),
		RetryBackoff:     getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// Providers
		JupiterBaseURL:   getEnv("JUPITER_BASE_URL", ""),
		JupiterAPIKey:    getEnv("JUPITER_API_KEY", ""),
		BirdeyeBaseURL:   getEnv("BIRDEYE_BASE_URL", ""),
		BirdeyeAPIKey:    getEnv("BIRDEYE_API_KEY", ""),
		CoinGeckoBaseURL: getEnv("COINGECKO_BASE_URL", ""),
		CoinGeckoAPIKey:  getEnv("COINGECKO_API_KEY", ""),
		CoinGeckoPro:     getBoolEnv("COINGECKO_PRO", false),
		HeliusBaseURL:    getEnv("HELIUS_BASE_URL", ""),
		HeliusAPIKey:     getEnv("HELIUS_API_KEY", ""),
		ProviderTimeout:  getDurationEnv("PROVIDER_TIMEOUT", constants.DefaultProviderTimeout),

		BreakerMaxFailures: getIntEnv("BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: getDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		// Ticker
		TickerEnabled: getBoolEnv("TICKER_ENABLED", true),
		TickerURL:     getEnv("TICKER_URL", ""),
		TickerMaxAge:  getDurationEnv("TICKER_MAX_AGE", constants.TickerMaxAge),

		// Engine
		QuoteTTL:       getDurationEnv("QUOTE_TTL", quotecache.TTLQuote),
		CoalesceWindow: getDurationEnv("COALESCE_WINDOW", constants.DefaultCoalesceWindow),
		SessionIdleTTL: getDurationEnv("SESSION_IDLE_TTL", 30*time.Minute),

		// Market
		MarketRefreshInterval: getDurationEnv("MARKET_REFRESH_INTERVAL", quotecache.TTLMarket),
		MarketTTL:             getDurationEnv("MARKET_TTL", quotecache.TTLMarket),
		MarketDefaultTrades:   int64(getIntEnv("MARKET_DEFAULT_TRADES_24H", constants.DefaultMarketTrades24h)),

		ActivityTTL: getDurationEnv("ACTIVITY_TTL", quotecache.TTLActivity),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "quote_engine"),
	}

	cfg.DefaultSlippage = cfg.decimalEnv("DEFAULT_SLIPPAGE", constants.DefaultSlippagePct)
	cfg.MarketDefaultPrice = cfg.decimalEnv("MARKET_DEFAULT_PRICE", constants.DefaultMarketPrice)
	cfg.MarketDefaultTVL = cfg.decimalEnv("MARKET_DEFAULT_TVL", constants.DefaultMarketTVL)
	cfg.MarketDefaultVolume = cfg.decimalEnv("MARKET_DEFAULT_VOLUME_24H", constants.DefaultMarketVolume24h)

	refs, err := ParseReferencePrices(getEnv("REFERENCE_PRICES", defaultReferencePrices))
	if err != nil {
		cfg.errs = append(cfg.errs, fmt.Errorf("REFERENCE_PRICES: %w", err))
	}
	cfg.ReferencePrices = refs

	return cfg
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.errs...)

	if strings.TrimSpace(c.APIAddr) == "" {
		errs = append(errs, errors.New("API_ADDR must not be empty"))
	}
	if c.QuoteRateLimit <= 0 || c.QuoteRateBurst <= 0 {
		errs = append(errs, errors.New("QUOTE_RATE_LIMIT and QUOTE_RATE_BURST must be positive"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.QuoteTTL <= 0 || c.MarketTTL <= 0 {
		errs = append(errs, errors.New("QUOTE_TTL and MARKET_TTL must be positive"))
	}
	if c.CoalesceWindow < 0 {
		errs = append(errs, errors.New("COALESCE_WINDOW must not be negative"))
	}
	if c.MarketRefreshInterval <= 0 {
		errs = append(errs, errors.New("MARKET_REFRESH_INTERVAL must be positive"))
	}
	if c.BreakerMaxFailures <= 0 {
		errs = append(errs, errors.New("BREAKER_MAX_FAILURES must be positive"))
	}

	lo := decimal.RequireFromString(constants.MinSlippagePct)
	hi := decimal.RequireFromString(constants.MaxSlippagePct)
	if c.DefaultSlippage.LessThan(lo) || c.DefaultSlippage.GreaterThan(hi) {
		errs = append(errs, fmt.Errorf("DEFAULT_SLIPPAGE %s outside [%s, %s]", c.DefaultSlippage, lo, hi))
	}
	if !c.MarketDefaultPrice.IsPositive() {
		errs = append(errs, errors.New("MARKET_DEFAULT_PRICE must be positive"))
	}

	return errors.Join(errs...)
}

// ParseReferencePrices parses "SYM=price,SYM=price". Symbols are upper-cased.
func ParseReferencePrices(s string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sym, raw, ok := strings.Cut(pair, "=")
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if !ok || sym == "" {
			return nil, fmt.Errorf("malformed entry %q", pair)
		}
		p, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", sym, err)
		}
		if !p.IsPositive() {
			return nil, fmt.Errorf("price for %s must be positive", sym)
		}
		out[sym] = p
	}
	return out, nil
}

// ReferenceSymbols returns the configured symbols, sorted.
func (c *Config) ReferenceSymbols() []string {
	syms := make([]string, 0, len(c.ReferencePrices))
	for s := range c.ReferencePrices {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

func (c *Config) decimalEnv(key, defaultVal string) decimal.Decimal {
	raw := getEnv(key, defaultVal)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("%s: %q is not a number", key, raw))
		return decimal.RequireFromString(defaultVal)
	}
	return d
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
