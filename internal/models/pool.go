package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// Tier identifies one of the two independent consistency views of a pool.
type Tier uint8

const (
	TierSpeculative Tier = iota // latest seen, may be reverted
	TierDurable                 // settled
)

// Tiers lists every tier in a stable order.
var Tiers = []Tier{TierSpeculative, TierDurable}

func (t Tier) String() string {
	switch t {
	case TierSpeculative:
		return "speculative"
	case TierDurable:
		return "durable"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// ParseTier accepts the tier names and the commitment levels they usually
// map to.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "speculative", "processed":
		return TierSpeculative, nil
	case "durable", "finalized":
		return TierDurable, nil
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// NullAddress is the all-zero key. It also renders as the system program
// address, which is how an uninitialized mint or vault shows up on chain.
var NullAddress = solana.PublicKey{}

// PoolSnapshot is one decoded instance of a pool record.
type PoolSnapshot struct {
	TokenMintA       solana.PublicKey
	TokenMintB       solana.PublicKey
	TokenVaultA      solana.PublicKey
	TokenVaultB      solana.PublicKey
	TickSpacing      uint16
	FeeRate          uint16
	ProtocolFeeRate  uint16
	Liquidity        uint256.Int
	SqrtPrice        uint256.Int
	TickCurrentIndex int32
	FeeGrowthGlobalA uint256.Int
	FeeGrowthGlobalB uint256.Int
	ProtocolFeeOwedA uint64
	ProtocolFeeOwedB uint64

	// PriceThreshold has no slot in either on-chain layout; decoders leave
	// it zero.
	PriceThreshold uint64
}

// Active reports whether none of the mints or vaults is the null address.
func (s *PoolSnapshot) Active() bool {
	for _, k := range []solana.PublicKey{s.TokenMintA, s.TokenMintB, s.TokenVaultA, s.TokenVaultB} {
		if k.Equals(NullAddress) {
			return false
		}
	}
	return true
}

// PoolState is the canonical decoded state of one pool.
type PoolState struct {
	Address          solana.PublicKey
	TokenMintA       solana.PublicKey
	TokenMintB       solana.PublicKey
	TokenVaultA      solana.PublicKey
	TokenVaultB      solana.PublicKey
	TickSpacing      uint16
	FeeRate          uint16
	ProtocolFeeRate  uint16
	Liquidity        uint256.Int
	SqrtPrice        uint256.Int
	TickCurrentIndex int32
	PriceThreshold   uint64
	FeeGrowthGlobalA uint256.Int
	FeeGrowthGlobalB uint256.Int
	ProtocolFeeOwedA uint64
	ProtocolFeeOwedB uint64
	IsActive         bool
}

// NewPoolState builds a pool state from its first snapshot.
func NewPoolState(address solana.PublicKey, snap *PoolSnapshot) PoolState {
	return PoolState{
		Address:          address,
		TokenMintA:       snap.TokenMintA,
		TokenMintB:       snap.TokenMintB,
		TokenVaultA:      snap.TokenVaultA,
		TokenVaultB:      snap.TokenVaultB,
		TickSpacing:      snap.TickSpacing,
		FeeRate:          snap.FeeRate,
		ProtocolFeeRate:  snap.ProtocolFeeRate,
		Liquidity:        snap.Liquidity,
		SqrtPrice:        snap.SqrtPrice,
		TickCurrentIndex: snap.TickCurrentIndex,
		PriceThreshold:   snap.PriceThreshold,
		FeeGrowthGlobalA: snap.FeeGrowthGlobalA,
		FeeGrowthGlobalB: snap.FeeGrowthGlobalB,
		ProtocolFeeOwedA: snap.ProtocolFeeOwedA,
		ProtocolFeeOwedB: snap.ProtocolFeeOwedB,
		IsActive:         snap.Active(),
	}
}

// TieredState is a pool state as observed by one tier.
type TieredState struct {
	Tier        Tier
	PoolState
	UpdatedSlot uint64
	UpdatedAt   time.Time
}
