package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidAmount:       "Invalid amount",
	CodeUnsupportedToken:    "Unsupported token selected",
	CodeInsufficientBalance: "Insufficient balance",
	CodeInvalidSlippage:     "Slippage must be between 0.1% and 5%",
	CodeInvalidTimeframe:    "Unsupported chart timeframe",
	CodeInvalidInput:        "Invalid input provided",

	CodeUpstreamTimeout:     "Upstream request timed out",
	CodeUpstreamFailure:     "Upstream request failed",
	CodeAllSourcesExhausted: "All price sources unavailable",

	CodeWalletNotInstalled: "Wallet not installed",
	CodeWalletRejected:     "Request rejected by wallet",

	CodeUnknownToken: "Token not found in catalog",

	CodeConfigurationError: "Configuration error",
	CodeInternalError:      "Internal server error",
}

// statusCodes maps error codes to their default HTTP status
var statusCodes = map[Code]int{
	CodeInvalidAmount:       400,
	CodeUnsupportedToken:    400,
	CodeInsufficientBalance: 400,
	CodeInvalidSlippage:     400,
	CodeInvalidTimeframe:    400,
	CodeInvalidInput:        400,

	CodeUpstreamTimeout:     504,
	CodeUpstreamFailure:     502,
	CodeAllSourcesExhausted: 503,

	CodeWalletNotInstalled: 424,
	CodeWalletRejected:     409,

	CodeUnknownToken: 404,

	CodeConfigurationError: 500,
	CodeInternalError:      500,
}

func getDefaultStatusCode(code Code) int {
	if s, ok := statusCodes[code]; ok {
		return s
	}
	return 500
}
