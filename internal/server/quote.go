package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/swapengine"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/units"
)

// Quote returns a quote for the caller's session
// Query: from, to, amount (human units), optional balance and slippage (percent)
// Upstream failures never surface here: the response is then stale or estimated
func (h *Handlers) Quote(c echo.Context) error {
	in := swapengine.QuoteInput{
		From:   strings.TrimSpace(c.QueryParam("from")),
		To:     strings.TrimSpace(c.QueryParam("to")),
		Amount: c.QueryParam("amount"),
	}

	if v := strings.TrimSpace(c.QueryParam("balance")); v != "" {
		b, err := units.ParseAmount(v)
		if err != nil {
			return h.fail(c, err)
		}
		in.Balance = &b
	}
	if v := strings.TrimSpace(c.QueryParam("slippage")); v != "" {
		pct, err := decimal.NewFromString(v)
		if err != nil {
			return h.fail(c, apperror.New(apperror.CodeInvalidSlippage, apperror.WithContext(v)))
		}
		in.SlippagePct = &pct
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	s := h.session(c)
	out, err := s.RequestQuote(ctx, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, QuoteResponse{Session: s.ID(), Outcome: out, IsEstimated: out.Estimated()})
}

// Slippage returns the session's tolerance and current quote
func (h *Handlers) Slippage(c echo.Context) error {
	return c.JSON(http.StatusOK, h.slippageResponse(h.session(c)))
}

// UpdateSlippage sets the session's tolerance and reprices its current quote
// Out-of-range values are rejected and leave the tolerance unchanged
func (h *Handlers) UpdateSlippage(c echo.Context) error {
	var req SlippageRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if req.Value == nil {
		return h.fail(c, apperror.New(apperror.CodeInvalidSlippage, apperror.WithContext("value is required")))
	}

	s := h.session(c)
	if err := s.UpdateSlippage(*req.Value); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.slippageResponse(s))
}

func (h *Handlers) slippageResponse(s *swapengine.Session) SlippageResponse {
	resp := SlippageResponse{Session: s.ID(), Value: s.Slippage()}
	if cur, ok := s.Current(); ok {
		resp.Current = &cur
	}
	return resp
}
