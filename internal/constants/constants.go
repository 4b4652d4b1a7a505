package constants

import "time"

// Redis Pub/Sub channels
const (
	PubSubChannelQuotes     = "quotes:live"
	PubSubChannelPairPrefix = "quotes:pair:"
	PubSubChannelMarket     = "market:updates"
	PubSubPatternAll        = "*:*"
)

// HTTP
const (
	HeaderSessionID  = "X-Session-ID"
	DefaultSessionID = "default"
)

// Quote engine defaults
const (
	DefaultSlippagePct     = "0.5"
	MinSlippagePct         = "0.1"
	MaxSlippagePct         = "5.0"
	DefaultCoalesceWindow  = 500 * time.Millisecond
	DefaultProviderTimeout = 5 * time.Second
	TickerMaxAge           = 30 * time.Second
)

// Market data defaults, served before the first successful refresh
const (
	DefaultMarketPrice     = "139"
	DefaultMarketTVL       = "8147494971"
	DefaultMarketVolume24h = "8088935016"
	DefaultMarketTrades24h = 26929839
)

// PairChannel is the channel carrying quotes for one pair.
func PairChannel(input, output string) string {
	return PubSubChannelPairPrefix + input + "/" + output
}
