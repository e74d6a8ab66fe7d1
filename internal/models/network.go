package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// SlotInfo is the progress triple carried by a slot notification.
type SlotInfo struct {
	Slot   uint64 `json:"slot"`
	Parent uint64 `json:"parent"`
	Root   uint64 `json:"root"`
}

// NetworkProgress tracks the latest observed slot.
type NetworkProgress struct {
	CurrentSlot uint64    `json:"current_slot"`
	ParentSlot  uint64    `json:"parent_slot"`
	RootSlot    uint64    `json:"root_slot"`
	LastUpdate  time.Time `json:"last_update"`
}

type TokenInfo struct {
	Symbol   string           `json:"symbol"`
	Mint     solana.PublicKey `json:"mint"`
	Decimals uint8            `json:"decimals"`
}

// TokenPair is keyed by symbol, in the order the pair was registered.
type TokenPair struct {
	SymbolA string `json:"symbol_a"`
	SymbolB string `json:"symbol_b"`
}

func (p TokenPair) String() string {
	return p.SymbolA + "/" + p.SymbolB
}

// PoolInfo is the bootstrap index entry for one tracked pool.
type PoolInfo struct {
	Address solana.PublicKey `json:"address"`
	SymbolA string           `json:"symbol_a"`
	SymbolB string           `json:"symbol_b"`
	MintA   solana.PublicKey `json:"mint_a"`
	MintB   solana.PublicKey `json:"mint_b"`
	TVL     float64          `json:"tvl"`
}

// LiquidityEdge is a directed pool-derived edge between two tokens.
type LiquidityEdge struct {
	Tier      Tier
	Pool      solana.PublicKey
	TokenIn   solana.PublicKey
	TokenOut  solana.PublicKey
	Liquidity uint256.Int
	FeeRate   uint16
	Slot      uint64
}

type Route struct {
	Edges                []LiquidityEdge
	TotalFee             uint64
	EstimatedPriceImpact float64
}
