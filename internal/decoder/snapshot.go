package decoder

import (
	"encoding/binary"
	"fmt"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// Packed snapshot record, little-endian, starting at offset 0.
const (
	offMintA            = 0
	offMintB            = 32
	offVaultA           = 64
	offVaultB           = 96
	offFeeRate          = 128
	offTickSpacing      = 130
	offLiquidity        = 132
	offSqrtPrice        = 148
	offTickCurrentIndex = 164
	offProtocolFeeRate  = 168
	offFeeGrowthA       = 170
	offFeeGrowthB       = 186

	// SnapshotSize is the exact length of a packed snapshot record.
	SnapshotSize = 202
)

// ParsePoolSnapshot reads the packed snapshot record. Trailing bytes are
// ignored.
func ParsePoolSnapshot(data []byte) (*models.PoolSnapshot, error) {
	if len(data) < SnapshotSize {
		return nil, fmt.Errorf("%w: snapshot needs %d bytes, got %d", ErrInsufficientData, SnapshotSize, len(data))
	}

	snap := &models.PoolSnapshot{
		TokenMintA:       readKey(data, offMintA),
		TokenMintB:       readKey(data, offMintB),
		TokenVaultA:      readKey(data, offVaultA),
		TokenVaultB:      readKey(data, offVaultB),
		FeeRate:          binary.LittleEndian.Uint16(data[offFeeRate:]),
		TickSpacing:      binary.LittleEndian.Uint16(data[offTickSpacing:]),
		Liquidity:        readU128(data, offLiquidity),
		SqrtPrice:        readU128(data, offSqrtPrice),
		TickCurrentIndex: int32(binary.LittleEndian.Uint32(data[offTickCurrentIndex:])),
		ProtocolFeeRate:  binary.LittleEndian.Uint16(data[offProtocolFeeRate:]),
		FeeGrowthGlobalA: readU128(data, offFeeGrowthA),
		FeeGrowthGlobalB: readU128(data, offFeeGrowthB),
	}
	if snap.TickSpacing == 0 {
		return nil, fmt.Errorf("%w: tick spacing is zero", ErrInvalidPoolState)
	}
	return snap, nil
}

// EncodePoolSnapshot writes s using the same field table ParsePoolSnapshot
// reads. Protocol fee owed is not part of the packed record.
func EncodePoolSnapshot(s *models.PoolSnapshot) []byte {
	out := make([]byte, SnapshotSize)
	copy(out[offMintA:], s.TokenMintA[:])
	copy(out[offMintB:], s.TokenMintB[:])
	copy(out[offVaultA:], s.TokenVaultA[:])
	copy(out[offVaultB:], s.TokenVaultB[:])
	binary.LittleEndian.PutUint16(out[offFeeRate:], s.FeeRate)
	binary.LittleEndian.PutUint16(out[offTickSpacing:], s.TickSpacing)
	putU128(out, offLiquidity, &s.Liquidity)
	putU128(out, offSqrtPrice, &s.SqrtPrice)
	binary.LittleEndian.PutUint32(out[offTickCurrentIndex:], uint32(s.TickCurrentIndex))
	binary.LittleEndian.PutUint16(out[offProtocolFeeRate:], s.ProtocolFeeRate)
	putU128(out, offFeeGrowthA, &s.FeeGrowthGlobalA)
	putU128(out, offFeeGrowthB, &s.FeeGrowthGlobalB)
	return out
}

func readKey(b []byte, off int) solana.PublicKey {
	return solana.PublicKeyFromBytes(b[off : off+solana.PublicKeyLength])
}

func readU128(b []byte, off int) uint256.Int {
	return uint256.Int{
		binary.LittleEndian.Uint64(b[off:]),
		binary.LittleEndian.Uint64(b[off+8:]),
		0, 0,
	}
}

// putU128 writes the low 128 bits of v.
func putU128(b []byte, off int, v *uint256.Int) {
	binary.LittleEndian.PutUint64(b[off:], v[0])
	binary.LittleEndian.PutUint64(b[off+8:], v[1])
}
