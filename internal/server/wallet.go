package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
)

// WalletConnect connects the signing wallet and returns its address
// Without a configured key the response is 424 WALLET_NOT_INSTALLED
func (h *Handlers) WalletConnect(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	addr, err := h.Wallet.Connect(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, WalletConnectResponse{Address: addr})
}

// WalletDisconnect disconnects the signing wallet
func (h *Handlers) WalletDisconnect(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Wallet.Disconnect(ctx); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// WalletBalance returns the wallet's native SOL balance
func (h *Handlers) WalletBalance(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	bal, err := h.Wallet.GetBalance(ctx)
	if err != nil {
		if apperror.GetCode(err) == apperror.CodeInternalError {
			err = apperror.External(apperror.CodeUpstreamFailure, "getBalance", err)
		}
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, WalletBalanceResponse{Symbol: "SOL", Balance: bal})
}

// SwapSign builds the swap transaction for the session's current quote and has the
// wallet sign it. The signed transaction is returned, never broadcast
func (h *Handlers) SwapSign(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	signed, err := h.Engine.SignSwap(ctx, h.session(c), h.Wallet)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, signed)
}
