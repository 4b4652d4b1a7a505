package rpc

import (
	"encoding/json"
	"fmt"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// StatusError is a non-200 answer from the RPC endpoint.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpc endpoint returned status %d", e.Status)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// Context is the slot a result was read at.
type Context struct {
	Slot uint64 `json:"slot"`
}

// WithContext wraps results that carry the slot they were read at.
type WithContext[T any] struct {
	Context Context `json:"context"`
	Value   T       `json:"value"`
}
