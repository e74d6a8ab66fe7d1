package rpc

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited     = errors.New("rate limited (429)")
	ErrTooManyAccounts = errors.New("too many accounts for one request")
)

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// AccountOptions is the config object of account read calls
type AccountOptions struct {
	Encoding   string `json:"encoding"`
	Commitment string `json:"commitment,omitempty"`
}

// Context is the slot a read was served at
type Context struct {
	Slot uint64 `json:"slot"`
}

// AccountInfo is one account as returned by getMultipleAccounts. Data is the
// [payload, encoding] pair.
type AccountInfo struct {
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Space      uint64   `json:"space"`
}

// Payload splits Data into its payload and encoding.
func (a *AccountInfo) Payload() (payload, encoding string, ok bool) {
	if len(a.Data) != 2 {
		return "", "", false
	}
	return a.Data[0], a.Data[1], true
}

// MultipleAccountsResult is the result object of getMultipleAccounts
type MultipleAccountsResult struct {
	Context Context        `json:"context"`
	Value   []*AccountInfo `json:"value"`
}

// MultipleAccountsResponse is the response from getMultipleAccounts
type MultipleAccountsResponse struct {
	Result *MultipleAccountsResult `json:"result"`
	Error  *RPCError               `json:"error"`
}

// SlotResponse is the response from getSlot
type SlotResponse struct {
	Result uint64    `json:"result"`
	Error  *RPCError `json:"error"`
}
