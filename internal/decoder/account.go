package decoder

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

const (
	discriminatorSize = 8
	numRewards        = 3
	rewardInfoSize    = 128
	rewardInfosOffset = 269

	// WhirlpoolAccountSize is the on-chain size of a Whirlpool account.
	WhirlpoolAccountSize = rewardInfosOffset + numRewards*rewardInfoSize
)

// WhirlpoolDiscriminator is the Anchor account discriminator for Whirlpool.
var WhirlpoolDiscriminator = anchorDiscriminator("Whirlpool")

func anchorDiscriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [discriminatorSize]byte
	copy(d[:], sum[:discriminatorSize])
	return d
}

type RewardInfo struct {
	Mint                  solana.PublicKey
	Vault                 solana.PublicKey
	Authority             solana.PublicKey
	EmissionsPerSecondX64 uint256.Int
	GrowthGlobalX64       uint256.Int
}

// WhirlpoolAccount is the full on-chain Whirlpool account.
type WhirlpoolAccount struct {
	WhirlpoolsConfig           solana.PublicKey
	Bump                       uint8
	TickSpacing                uint16
	TickSpacingSeed            [2]byte
	FeeRate                    uint16
	ProtocolFeeRate            uint16
	Liquidity                  uint256.Int
	SqrtPrice                  uint256.Int
	TickCurrentIndex           int32
	ProtocolFeeOwedA           uint64
	ProtocolFeeOwedB           uint64
	TokenMintA                 solana.PublicKey
	TokenVaultA                solana.PublicKey
	FeeGrowthGlobalA           uint256.Int
	TokenMintB                 solana.PublicKey
	TokenVaultB                solana.PublicKey
	FeeGrowthGlobalB           uint256.Int
	RewardLastUpdatedTimestamp uint64
	RewardInfos                [numRewards]RewardInfo
}

// Snapshot projects the account onto the fields the store tracks.
func (a *WhirlpoolAccount) Snapshot() *models.PoolSnapshot {
	return &models.PoolSnapshot{
		TokenMintA:       a.TokenMintA,
		TokenMintB:       a.TokenMintB,
		TokenVaultA:      a.TokenVaultA,
		TokenVaultB:      a.TokenVaultB,
		TickSpacing:      a.TickSpacing,
		FeeRate:          a.FeeRate,
		ProtocolFeeRate:  a.ProtocolFeeRate,
		Liquidity:        a.Liquidity,
		SqrtPrice:        a.SqrtPrice,
		TickCurrentIndex: a.TickCurrentIndex,
		FeeGrowthGlobalA: a.FeeGrowthGlobalA,
		FeeGrowthGlobalB: a.FeeGrowthGlobalB,
		ProtocolFeeOwedA: a.ProtocolFeeOwedA,
		ProtocolFeeOwedB: a.ProtocolFeeOwedB,
	}
}

// cursor walks a byte slice whose length has already been checked.
type cursor struct {
	b   []byte
	off int
}

func (c *cursor) bytes(n int) []byte {
	v := c.b[c.off : c.off+n]
	c.off += n
	return v
}

func (c *cursor) u8() uint8   { return c.bytes(1)[0] }
func (c *cursor) u16() uint16 { return binary.LittleEndian.Uint16(c.bytes(2)) }
func (c *cursor) u32() uint32 { return binary.LittleEndian.Uint32(c.bytes(4)) }
func (c *cursor) u64() uint64 { return binary.LittleEndian.Uint64(c.bytes(8)) }

func (c *cursor) u128() uint256.Int {
	v := readU128(c.b, c.off)
	c.off += 16
	return v
}

func (c *cursor) key() solana.PublicKey {
	return solana.PublicKeyFromBytes(c.bytes(solana.PublicKeyLength))
}

// ParseWhirlpoolAccount decodes a full Whirlpool account.
func ParseWhirlpoolAccount(data []byte) (*WhirlpoolAccount, error) {
	if len(data) < WhirlpoolAccountSize {
		return nil, fmt.Errorf("%w: whirlpool account needs %d bytes, got %d", ErrInsufficientData, WhirlpoolAccountSize, len(data))
	}

	c := &cursor{b: data}
	if disc := c.bytes(discriminatorSize); !bytes.Equal(disc, WhirlpoolDiscriminator[:]) {
		return nil, fmt.Errorf("%w: discriminator %x is not a whirlpool", ErrInvalidPoolState, disc)
	}

	a := &WhirlpoolAccount{}
	a.WhirlpoolsConfig = c.key()
	a.Bump = c.u8()
	a.TickSpacing = c.u16()
	copy(a.TickSpacingSeed[:], c.bytes(2))
	a.FeeRate = c.u16()
	a.ProtocolFeeRate = c.u16()
	a.Liquidity = c.u128()
	a.SqrtPrice = c.u128()
	a.TickCurrentIndex = int32(c.u32())
	a.ProtocolFeeOwedA = c.u64()
	a.ProtocolFeeOwedB = c.u64()
	a.TokenMintA = c.key()
	a.TokenVaultA = c.key()
	a.FeeGrowthGlobalA = c.u128()
	a.TokenMintB = c.key()
	a.TokenVaultB = c.key()
	a.FeeGrowthGlobalB = c.u128()
	a.RewardLastUpdatedTimestamp = c.u64()
	for i := range a.RewardInfos {
		r := &a.RewardInfos[i]
		r.Mint = c.key()
		r.Vault = c.key()
		r.Authority = c.key()
		r.EmissionsPerSecondX64 = c.u128()
		r.GrowthGlobalX64 = c.u128()
	}

	if a.TickSpacing == 0 {
		return nil, fmt.Errorf("%w: tick spacing is zero", ErrInvalidPoolState)
	}
	return a, nil
}

// EncodeWhirlpoolAccount is the inverse of ParseWhirlpoolAccount.
func EncodeWhirlpoolAccount(a *WhirlpoolAccount) []byte {
	var buf bytes.Buffer
	buf.Grow(WhirlpoolAccountSize)
	le := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	u128 := func(v *uint256.Int) { le(v[0]); le(v[1]) }

	buf.Write(WhirlpoolDiscriminator[:])
	buf.Write(a.WhirlpoolsConfig[:])
	buf.WriteByte(a.Bump)
	le(a.TickSpacing)
	buf.Write(a.TickSpacingSeed[:])
	le(a.FeeRate)
	le(a.ProtocolFeeRate)
	u128(&a.Liquidity)
	u128(&a.SqrtPrice)
	le(a.TickCurrentIndex)
	le(a.ProtocolFeeOwedA)
	le(a.ProtocolFeeOwedB)
	buf.Write(a.TokenMintA[:])
	buf.Write(a.TokenVaultA[:])
	u128(&a.FeeGrowthGlobalA)
	buf.Write(a.TokenMintB[:])
	buf.Write(a.TokenVaultB[:])
	u128(&a.FeeGrowthGlobalB)
	le(a.RewardLastUpdatedTimestamp)
	for i := range a.RewardInfos {
		r := &a.RewardInfos[i]
		buf.Write(r.Mint[:])
		buf.Write(r.Vault[:])
		buf.Write(r.Authority[:])
		u128(&r.EmissionsPerSecondX64)
		u128(&r.GrowthGlobalX64)
	}
	return buf.Bytes()
}
