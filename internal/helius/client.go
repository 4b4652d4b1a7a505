// Package helius is a minimal client for the Helius enhanced Solana API: token
// metadata and parsed transaction history.
package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingAPIKey is returned by every call when no key is configured.
var ErrMissingAPIKey = errors.New("helius api key not configured")

// TypeSwap filters transaction history to DEX swaps.
const TypeSwap = "SWAP"

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.helius.xyz"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
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
		return fmt.Sprintf("helius http %d", e.StatusCode)
	}
	return fmt.Sprintf("helius http %d: %s", e.StatusCode, b)
}

type metadataRequest struct {
	MintAccounts    []string `json:"mintAccounts"`
	IncludeOffChain bool     `json:"includeOffChain"`
	DisableCache    bool     `json:"disableCache"`
}

// TokenMetadata is the subset of the token-metadata response the service reads.
type TokenMetadata struct {
	Account string `json:"account"`

	OnChainMetadata *struct {
		Metadata struct {
			Data struct {
				Name   string `json:"name"`
				Symbol string `json:"symbol"`
				URI    string `json:"uri"`
			} `json:"data"`
		} `json:"metadata"`
	} `json:"onChainMetadata,omitempty"`

	OffChainMetadata *struct {
		Metadata struct {
			Name        string `json:"name"`
			Symbol      string `json:"symbol"`
			Image       string `json:"image"`
			Description string `json:"description"`
		} `json:"metadata"`
	} `json:"offChainMetadata,omitempty"`

	LegacyMetadata *struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
		LogoURI  string `json:"logoURI"`
	} `json:"legacyMetadata,omitempty"`
}

// Name prefers on-chain metadata, then off-chain, then the legacy token list.
func (m *TokenMetadata) Name() string {
	switch {
	case m.OnChainMetadata != nil && trimPadding(m.OnChainMetadata.Metadata.Data.Name) != "":
		return trimPadding(m.OnChainMetadata.Metadata.Data.Name)
	case m.OffChainMetadata != nil && m.OffChainMetadata.Metadata.Name != "":
		return m.OffChainMetadata.Metadata.Name
	case m.LegacyMetadata != nil:
		return m.LegacyMetadata.Name
	}
	return ""
}

// on-chain metadata strings are fixed width, NUL padded
func trimPadding(s string) string {
	return strings.Trim(s, "\x00 ")
}

// Image returns the off-chain image, falling back to the legacy logo.
func (m *TokenMetadata) Image() string {
	if m.OffChainMetadata != nil && m.OffChainMetadata.Metadata.Image != "" {
		return m.OffChainMetadata.Metadata.Image
	}
	if m.LegacyMetadata != nil {
		return m.LegacyMetadata.LogoURI
	}
	return ""
}

// TokenTransfer is one SPL token movement inside a parsed transaction.
type TokenTransfer struct {
	FromUserAccount string          `json:"fromUserAccount"`
	ToUserAccount   string          `json:"toUserAccount"`
	Mint            string          `json:"mint"`
	TokenAmount     decimal.Decimal `json:"tokenAmount"`
}

// Transaction is an enhanced (parsed) transaction.
type Transaction struct {
	Signature      string          `json:"signature"`
	Timestamp      int64           `json:"timestamp"`
	Type           string          `json:"type"`
	Source         string          `json:"source"`
	Description    string          `json:"description"`
	Fee            uint64          `json:"fee"`
	FeePayer       string          `json:"feePayer"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers"`
}

// TokenMetadata returns metadata for a single mint, including off-chain data.
func (c *Client) TokenMetadata(ctx context.Context, mint string) (*TokenMetadata, error) {
	if strings.TrimSpace(mint) == "" {
		return nil, fmt.Errorf("mint is required")
	}
	body, err := json.Marshal(metadataRequest{MintAccounts: []string{mint}, IncludeOffChain: true})
	if err != nil {
		return nil, err
	}

	var out []TokenMetadata
	if err := c.do(ctx, http.MethodPost, "/v0/token-metadata", nil, body, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Account == mint {
			return &out[i], nil
		}
	}
	return nil, fmt.Errorf("helius metadata for %s missing", mint)
}

// RecentSwaps returns up to limit of the latest swap transactions touching address,
// newest first. An address with no swaps yields an empty slice.
func (c *Client) RecentSwaps(ctx context.Context, address string, limit int) ([]Transaction, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("address is required")
	}
	q := url.Values{}
	q.Set("type", TypeSwap)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out []Transaction
	if err := c.do(ctx, http.MethodGet, "/v0/addresses/"+url.PathEscape(address)+"/transactions", q, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Transaction{}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("api-key", c.APIKey)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path+"?"+q.Encode(), rd)
	if err != nil {
		return err
	}
	httpReq.Header.Set("accept", "application/json")
	if body != nil {
		httpReq.Header.Set("content-type", "application/json")
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		// url.Error carries the full URL, api key included
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("helius %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: raw}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode helius response: %w", err)
	}
	return nil
}
