package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/activity"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/flags"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/market"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/storage"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/stream"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/swapengine"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/synthetic"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/wallet"
)

// TickerStatus is the realtime price feed as seen by the API.
type TickerStatus interface {
	Connected() bool
	Symbol() string
	Snapshot() (stream.Trade, bool)
}

// ActivityFeed reports recent swaps of a catalog token.
type ActivityFeed interface {
	Activity(ctx context.Context, symbol string) (activity.Report, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine    *swapengine.Engine   // Quote engine shared by all sessions
	Sessions  *swapengine.Sessions // Per-caller quoting state keyed by X-Session-ID
	Market    *market.Refresher    // Market snapshot owner
	Synthetic *synthetic.Generator // Order book and candle generator
	Wallet    wallet.Provider      // Signing wallet (NotInstalled when no key is configured)
	Flags     *flags.Store         // Redis-backed provider toggles (optional)
	Providers []string             // Upstream provider names, for the toggle listing
	Journal   storage.QuoteJournal // Quote journal, pinged by health (optional)
	Ticker    TickerStatus         // Realtime feed, reported by health (optional)
	Activity  ActivityFeed         // On-chain swap activity per token (optional)
	Metrics   *metrics.Metrics     // Prometheus metrics (optional)
	DevMode   bool                 // Enable detailed error responses in development
	Logger    *logrus.Logger       // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail renders err with the status and reason of its application code.
func (h *Handlers) fail(c echo.Context, err error) error {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		h.Logger.WithError(err).WithField("path", c.Path()).Error("request failed")
		return h.err(c, http.StatusInternalServerError, "internal server error", err.Error())
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		h.Logger.WithFields(logrus.Fields(appErr.ToLog())).WithField("path", c.Path()).Error("request failed")
	}

	resp := ErrorResponse{Error: appErr.Message, Code: appErr.StatusCode, Reason: string(appErr.Code)}
	if h.DevMode && appErr.Context != "" {
		resp.Details = map[string]any{"context": appErr.Context}
	}
	return c.JSON(appErr.StatusCode, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// anonymousSessionPrefix namespaces sessions of callers without X-Session-ID.
// Header values in that namespace are ignored so they cannot address them.
const anonymousSessionPrefix = "ip:"

// session returns the caller's session from the X-Session-ID header, or one
// keyed by client IP when the header is absent
func (h *Handlers) session(c echo.Context) *swapengine.Session {
	id := strings.TrimSpace(c.Request().Header.Get(constants.HeaderSessionID))
	if id != "" && !strings.HasPrefix(id, anonymousSessionPrefix) {
		return h.Sessions.Get(id)
	}
	return h.Sessions.Get(anonymousSessionPrefix + c.RealIP())
}

// Health reports liveness plus the state of optional components
// A failing component never makes the service unhealthy: quotes degrade instead
func (h *Handlers) Health(c echo.Context) error {
	components := map[string]bool{}
	if h.Journal != nil {
		ctx, cancel := h.withTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		components["journal"] = h.Journal.Ping(ctx) == nil
	}
	if h.Ticker != nil {
		components["ticker"] = h.Ticker.Connected()
	}
	if h.Flags != nil {
		components["flags"] = true
	}
	return c.JSON(http.StatusOK, HealthResponse{OK: true, Components: components})
}

// Tokens returns every supported token in catalog order
func (h *Handlers) Tokens(c echo.Context) error {
	return c.JSON(http.StatusOK, TokensResponse{Items: h.Engine.Tokens()})
}
