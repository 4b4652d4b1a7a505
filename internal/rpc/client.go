// Package rpc is a small Solana JSON-RPC client used for account reads.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
)

// Client issues JSON-RPC calls with bounded retries on rate limits and server errors.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	logger       *logrus.Logger
	nextID       atomic.Uint64
}

type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}

	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      cfg.BaseURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger,
	}
}

// Call sends method with params and decodes the result field into out.
// A node-side error is returned as *RPCError and is never retried.
func (c *Client) Call(ctx context.Context, method string, out any, params ...any) error {
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	backoff := c.retryBackoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff
			var se *StatusError
			if errors.As(lastErr, &se) && se.Status == http.StatusTooManyRequests {
				wait = max(wait, retryAfter(lastErr))
			}
			c.logger.WithFields(logrus.Fields{"method": method, "attempt": attempt, "wait": wait}).
				Debug("retrying rpc call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			backoff *= 2
		}

		env, err := c.post(ctx, body)
		if err == nil {
			if env.Error != nil {
				return env.Error
			}
			if len(env.Result) == 0 || string(env.Result) == "null" {
				return apperror.New(apperror.CodeUpstreamFailure, apperror.WithContext(method+": empty result"))
			}
			if err := json.Unmarshal(env.Result, out); err != nil {
				return apperror.Wrap(err, apperror.CodeUpstreamFailure, method+": malformed result")
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			break
		}
	}

	return apperror.Wrap(lastErr, apperror.CodeUpstreamFailure, method+" failed")
}

type retryAfterError struct {
	*StatusError
	after time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.StatusError }

func retryAfter(err error) time.Duration {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.after
	}
	return 0
}

func (c *Client) post(ctx context.Context, body []byte) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		se := &StatusError{Status: resp.StatusCode}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return nil, &retryAfterError{StatusError: se, after: time.Duration(secs) * time.Second}
		}
		return nil, se
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	return &env, nil
}

// GetBalance returns the lamport balance of an account at commitment
// ("confirmed" when empty).
func (c *Client) GetBalance(ctx context.Context, pubkey, commitment string) (uint64, error) {
	if commitment == "" {
		commitment = "confirmed"
	}
	var res WithContext[uint64]
	if err := c.Call(ctx, "getBalance", &res, pubkey, map[string]string{"commitment": commitment}); err != nil {
		return 0, err
	}
	return res.Value, nil
}
