package server

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/flags"
)

const flagsTimeout = 3 * time.Second

// requireFlags answers 503 on flag and provider routes when Redis is not configured
func (h *Handlers) requireFlags(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.Flags == nil {
			return h.err(c, http.StatusServiceUnavailable, "flags store is not configured", nil)
		}
		return next(c)
	}
}

// flagError maps store errors onto responses; 404 for a missing key, 400 for a bad one.
func (h *Handlers) flagError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, flags.ErrNotFound):
		return h.err(c, http.StatusNotFound, "flag not found", nil)
	case errors.Is(err, flags.ErrInvalidKey):
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "must match " + flags.KeyPattern})
	default:
		h.Logger.WithError(err).WithField("op", op).Error("flags store failed")
		return h.err(c, http.StatusInternalServerError, "failed to "+op+" flag", nil)
	}
}

// FlagsUpsert creates or overwrites the flag named in the body
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return h.writeFlag(c, req.Key, req.Value)
}

// FlagsUpdate sets the value of the flag named in the path
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return h.writeFlag(c, c.Param("key"), req.Value)
}

func (h *Handlers) writeFlag(c echo.Context, key string, value bool) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), flagsTimeout)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, value)
	if err != nil {
		return h.flagError(c, "write", err)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet returns one flag
func (h *Handlers) FlagsGet(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), flagsTimeout)
	defer cancel()

	out, err := h.Flags.Get(ctx, c.Param("key"))
	if err != nil {
		return h.flagError(c, "read", err)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all flags, provider kill switches included
func (h *Handlers) FlagsList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.flagError(c, "list", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a flag; deleting a missing key is not an error
func (h *Handlers) FlagsDelete(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), flagsTimeout)
	defer cancel()

	if err := h.Flags.Delete(ctx, c.Param("key")); err != nil {
		return h.flagError(c, "delete", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ProvidersList returns every upstream provider in chain order with its kill-switch state
func (h *Handlers) ProvidersList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), flagsTimeout)
	defer cancel()

	disabled, err := h.Flags.DisabledProviders(ctx)
	if err != nil {
		return h.flagError(c, "list", err)
	}

	items := make([]ProviderStatus, 0, len(h.Providers))
	for _, p := range h.Providers {
		items = append(items, ProviderStatus{Name: p, Disabled: slices.Contains(disabled, p)})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// ProviderToggle switches one upstream provider off or back on
func (h *Handlers) ProviderToggle(c echo.Context) error {
	name := c.Param("name")
	if !slices.Contains(h.Providers, name) {
		return h.err(c, http.StatusNotFound, "unknown provider", map[string]any{"name": name})
	}

	var req ProviderToggleRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), flagsTimeout)
	defer cancel()

	if _, err := h.Flags.SetProviderDisabled(ctx, name, req.Disabled); err != nil {
		return h.flagError(c, "write", err)
	}
	h.Logger.WithField("provider", name).WithField("disabled", req.Disabled).Warn("provider kill switch changed")
	return c.JSON(http.StatusOK, ProviderStatus{Name: name, Disabled: req.Disabled})
}
