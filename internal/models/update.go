package models

import "time"

// PoolUpdate is the wire form of a tier record handed to downstream
// consumers. 128-bit values are rendered as decimal strings.
type PoolUpdate struct {
	Tier             string    `json:"tier"`
	Pool             string    `json:"pool"`
	Pair             string    `json:"pair,omitempty"`
	MintA            string    `json:"mint_a"`
	MintB            string    `json:"mint_b"`
	Slot             uint64    `json:"slot"`
	UpdatedAt        time.Time `json:"updated_at"`
	Liquidity        string    `json:"liquidity"`
	SqrtPrice        string    `json:"sqrt_price"`
	Price            string    `json:"price,omitempty"`
	TickCurrentIndex int32     `json:"tick_current_index"`
	TickSpacing      uint16    `json:"tick_spacing"`
	FeeRate          uint16    `json:"fee_rate"`
	ProtocolFeeRate  uint16    `json:"protocol_fee_rate"`
	FeeGrowthGlobalA string    `json:"fee_growth_global_a"`
	FeeGrowthGlobalB string    `json:"fee_growth_global_b"`
	ProtocolFeeOwedA uint64    `json:"protocol_fee_owed_a"`
	ProtocolFeeOwedB uint64    `json:"protocol_fee_owed_b"`
	IsActive         bool      `json:"is_active"`
}

// NewPoolUpdate renders a tier record. pair and price are optional.
func NewPoolUpdate(s *TieredState, pair, price string) *PoolUpdate {
	return &PoolUpdate{
		Tier:             s.Tier.String(),
		Pool:             s.Address.String(),
		Pair:             pair,
		MintA:            s.TokenMintA.String(),
		MintB:            s.TokenMintB.String(),
		Slot:             s.UpdatedSlot,
		UpdatedAt:        s.UpdatedAt,
		Liquidity:        s.Liquidity.Dec(),
		SqrtPrice:        s.SqrtPrice.Dec(),
		Price:            price,
		TickCurrentIndex: s.TickCurrentIndex,
		TickSpacing:      s.TickSpacing,
		FeeRate:          s.FeeRate,
		ProtocolFeeRate:  s.ProtocolFeeRate,
		FeeGrowthGlobalA: s.FeeGrowthGlobalA.Dec(),
		FeeGrowthGlobalB: s.FeeGrowthGlobalB.Dec(),
		ProtocolFeeOwedA: s.ProtocolFeeOwedA,
		ProtocolFeeOwedB: s.ProtocolFeeOwedB,
		IsActive:         s.IsActive,
	}
}
