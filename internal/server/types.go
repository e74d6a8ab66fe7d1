package server

import (
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/jupiter"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK          bool   `json:"ok"`
	Pools       int    `json:"pools"`
	CurrentSlot uint64 `json:"current_slot,omitempty"`
}

// PoolsResponse lists pool records of one tier
type PoolsResponse struct {
	Tier  string               `json:"tier"`
	Items []*models.PoolUpdate `json:"items"`
}

// FlagUpsertRequest represents a request to create or update a runtime flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// FlagUpdateRequest represents a request to update an existing runtime flag
type FlagUpdateRequest struct {
	Value bool `json:"value"`
}

// SpotQuote is a quote priced at the current durable state of one pool
type SpotQuote struct {
	Pool         string `json:"pool"`
	Pair         string `json:"pair,omitempty"`
	Slot         uint64 `json:"slot"`
	Price        string `json:"price"`
	OutAmount    string `json:"out_amount"`
	MinOutAmount uint64 `json:"min_out_amount"`
	FeeAmount    string `json:"fee_amount"`
	FeeBps       string `json:"fee_bps"`
}

// QuoteResponse combines locally derived spot quotes with the aggregator
// quote. SlotLag is the aggregator's context slot minus the latest observed
// slot; negative means the aggregator is behind.
type QuoteResponse struct {
	InputMint    string                 `json:"input_mint"`
	OutputMint   string                 `json:"output_mint"`
	Amount       uint64                 `json:"amount"`
	Spot         []SpotQuote            `json:"spot"`
	Jupiter      *jupiter.QuoteResponse `json:"jupiter,omitempty"`
	JupiterError string                 `json:"jupiter_error,omitempty"`
	CurrentSlot  uint64                 `json:"current_slot,omitempty"`
	SlotLag      *int64                 `json:"slot_lag,omitempty"`
}
