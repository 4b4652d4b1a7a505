package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health" // Health checks stay unauthenticated
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics.Handler()))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health) // Health check endpoint
	v1.GET("/tokens", h.Tokens) // Supported tokens in catalog order
	v1.GET("/tokens/:symbol/activity", h.TokenActivity)

	// Quotes, rate limited per session (or client IP without one)
	limit, burst := cfg.QuoteRateLimit, cfg.QuoteRateBurst
	if limit <= 0 {
		limit = 5
	}
	if burst <= 0 {
		burst = 10
	}
	v1.GET("/quote", h.Quote, middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(limit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id := c.Request().Header.Get(constants.HeaderSessionID); id != "" {
				return "session:" + id, nil
			}
			return "ip:" + c.RealIP(), nil
		},
	}))
	v1.GET("/slippage", h.Slippage)
	v1.PUT("/slippage", h.UpdateSlippage)

	// Market data and synthetic depth/history
	v1.GET("/price", h.Price)
	v1.GET("/market", h.GetMarket)
	v1.POST("/market/refresh", h.RefreshMarket)
	v1.GET("/orderbook", h.OrderBook)
	v1.GET("/candles", h.Candles)

	// Wallet and swap signing
	v1.POST("/wallet/connect", h.WalletConnect)
	v1.POST("/wallet/disconnect", h.WalletDisconnect)
	v1.GET("/wallet/balance", h.WalletBalance)
	v1.POST("/swap/sign", h.SwapSign)

	// Feature flags CRUD endpoints
	flagGroup := v1.Group("/flags", h.requireFlags)
	flagGroup.GET("", h.FlagsList)           // List all flags
	flagGroup.POST("", h.FlagsUpsert)        // Create new flag
	flagGroup.GET("/:key", h.FlagsGet)       // Get specific flag
	flagGroup.PUT("/:key", h.FlagsUpdate)    // Update existing flag
	flagGroup.DELETE("/:key", h.FlagsDelete) // Delete flag

	// Provider kill-switches, stored as flags
	providerGroup := v1.Group("/providers", h.requireFlags)
	providerGroup.GET("", h.ProvidersList)
	providerGroup.PUT("/:name", h.ProviderToggle)

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
