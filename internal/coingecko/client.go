// Package coingecko is a minimal client for the CoinGecko simple price endpoint.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PublicBaseURL = "https://api.coingecko.com/api/v3"
	ProBaseURL    = "https://pro-api.coingecko.com/api/v3"
)

type Client struct {
	BaseURL string
	APIKey  string
	Pro     bool
	HTTP    *http.Client
}

// NewClient builds a client. Without a key the public tier is used; pro selects the
// pro host and header when baseURL is empty.
func NewClient(baseURL, apiKey string, pro bool) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = PublicBaseURL
		if pro {
			baseURL = ProBaseURL
		}
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		Pro:     pro,
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
		return fmt.Sprintf("coingecko http %d", e.StatusCode)
	}
	return fmt.Sprintf("coingecko http %d: %s", e.StatusCode, b)
}

// SimplePrice returns USD prices keyed by CoinGecko id. Every requested id must be
// present and positive in the response.
func (c *Client) SimplePrice(ctx context.Context, ids ...string) (map[string]decimal.Decimal, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one id is required")
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("empty coingecko id")
		}
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		if c.Pro {
			httpReq.Header.Set("x-cg-pro-api-key", c.APIKey)
		} else {
			httpReq.Header.Set("x-cg-demo-api-key", c.APIKey)
		}
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var raw map[string]map[string]*decimal.Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode coingecko response: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		usd := raw[id]["usd"]
		if usd == nil {
			return nil, fmt.Errorf("coingecko response missing usd price for %s", id)
		}
		if !usd.IsPositive() {
			return nil, fmt.Errorf("coingecko price for %s is not positive: %s", id, usd)
		}
		out[id] = *usd
	}
	return out, nil
}
