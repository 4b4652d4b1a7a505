package apperror

// Code represents a unique error code for the application
type Code string

// Validation codes, resolved at the engine boundary
const (
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeUnsupportedToken    Code = "UNSUPPORTED_TOKEN"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeInvalidSlippage     Code = "INVALID_SLIPPAGE"
	CodeInvalidTimeframe    Code = "INVALID_TIMEFRAME"
	CodeInvalidInput        Code = "INVALID_INPUT"
)

// Upstream codes, absorbed by the quote engine fallback path
const (
	CodeUpstreamTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeUpstreamFailure     Code = "UPSTREAM_FAILURE"
	CodeAllSourcesExhausted Code = "ALL_SOURCES_EXHAUSTED"
)

// Wallet codes, terminal for the in-progress action
const (
	CodeWalletNotInstalled Code = "WALLET_NOT_INSTALLED"
	CodeWalletRejected     Code = "WALLET_REJECTED"
)

// Warning-level codes
const (
	CodeUnknownToken Code = "UNKNOWN_TOKEN"
)

// System codes
const (
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
)
