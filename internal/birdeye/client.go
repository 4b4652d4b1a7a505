// Package birdeye is a minimal client for the Birdeye public market data API.
package birdeye

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingAPIKey is returned by every call when no key is configured.
var ErrMissingAPIKey = errors.New("birdeye api key not configured")

type Client struct {
	BaseURL string
	APIKey  string
	Chain   string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://public-api.birdeye.so"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		Chain:   "solana",
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("birdeye http %d", e.StatusCode)
	}
	return fmt.Sprintf("birdeye http %d: %s", e.StatusCode, b)
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *T     `json:"data"`
}

type Price struct {
	Value          *decimal.Decimal `json:"value"`
	UpdateUnixTime int64            `json:"updateUnixTime"`
	PriceChange24h *decimal.Decimal `json:"priceChange24h,omitempty"`
}

type TokenOverview struct {
	Address   string           `json:"address"`
	Symbol    string           `json:"symbol"`
	Price     *decimal.Decimal `json:"price"`
	Liquidity *decimal.Decimal `json:"liquidity"`
	Volume24h *decimal.Decimal `json:"v24hUSD"`
	Trades24h *int64           `json:"trade24h"`
}

// Price returns the USD spot price of a token mint.
func (c *Client) Price(ctx context.Context, address string) (*Price, error) {
	out, err := get[Price](ctx, c, "/defi/price", address)
	if err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, fmt.Errorf("birdeye price for %s missing value", address)
	}
	if !out.Value.IsPositive() {
		return nil, fmt.Errorf("birdeye price for %s is not positive: %s", address, out.Value)
	}
	return out, nil
}

// TokenOverview returns liquidity and 24h activity for a token mint.
func (c *Client) TokenOverview(ctx context.Context, address string) (*TokenOverview, error) {
	out, err := get[TokenOverview](ctx, c, "/defi/token_overview", address)
	if err != nil {
		return nil, err
	}
	if out.Liquidity == nil && out.Volume24h == nil && out.Trades24h == nil {
		return nil, fmt.Errorf("birdeye overview for %s has no statistics", address)
	}
	return out, nil
}

func get[T any](ctx context.Context, c *Client, path, address string) (*T, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("address is required")
	}

	q := url.Values{}
	q.Set("address", address)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set("X-API-KEY", c.APIKey)
	httpReq.Header.Set("x-chain", c.Chain)

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode birdeye response: %w", err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "success=false"
		}
		return nil, fmt.Errorf("birdeye %s: %s", path, msg)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("birdeye %s: missing data", path)
	}
	return env.Data, nil
}
