package decoder

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureSnapshot() *models.PoolSnapshot {
	return &models.PoolSnapshot{
		TokenMintA:       solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		TokenMintB:       solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		TokenVaultA:      solana.MustPublicKeyFromBase58("JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"),
		TokenVaultB:      solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"),
		FeeRate:          400,
		TickSpacing:      4,
		Liquidity:        uint256.Int{0x1122334455667788, 0x0102030405060708, 0, 0},
		SqrtPrice:        uint256.Int{0xdeadbeefcafebabe, 0x0000000000000007, 0, 0},
		TickCurrentIndex: -22017,
		ProtocolFeeRate:  1300,
		FeeGrowthGlobalA: uint256.Int{1, 2, 0, 0},
		FeeGrowthGlobalB: uint256.Int{3, 4, 0, 0},
	}
}

func TestParsePoolSnapshot_RoundTrip(t *testing.T) {
	want := fixtureSnapshot()
	raw := EncodePoolSnapshot(want)
	require.Len(t, raw, SnapshotSize)

	got, err := ParsePoolSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParsePoolSnapshot_FieldOffsets(t *testing.T) {
	raw := EncodePoolSnapshot(fixtureSnapshot())

	assert.Equal(t, fixtureSnapshot().TokenMintB[:], raw[32:64])
	assert.Equal(t, uint16(400), binary.LittleEndian.Uint16(raw[128:130]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(raw[130:132]))
	assert.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(raw[132:140]))
	assert.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(raw[140:148]))
	assert.Equal(t, uint64(0xdeadbeefcafebabe), binary.LittleEndian.Uint64(raw[148:156]))
	assert.Equal(t, int32(-22017), int32(binary.LittleEndian.Uint32(raw[164:168])))
	assert.Equal(t, uint16(1300), binary.LittleEndian.Uint16(raw[168:170]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(raw[170:178]))
	assert.Equal(t, uint64(4), binary.LittleEndian.Uint64(raw[194:202]))
}

func TestParsePoolSnapshot_Truncated(t *testing.T) {
	raw := EncodePoolSnapshot(fixtureSnapshot())
	for _, n := range []int{0, 1, 32, 131, SnapshotSize - 1} {
		snap, err := ParsePoolSnapshot(raw[:n])
		assert.ErrorIs(t, err, ErrInsufficientData, "len %d", n)
		assert.Nil(t, snap)
	}

	_, err := ParsePoolSnapshot(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestParsePoolSnapshot_ZeroTickSpacing(t *testing.T) {
	s := fixtureSnapshot()
	s.TickSpacing = 0

	_, err := ParsePoolSnapshot(EncodePoolSnapshot(s))
	assert.ErrorIs(t, err, ErrInvalidPoolState)
}

func TestDecompress(t *testing.T) {
	raw := EncodePoolSnapshot(fixtureSnapshot())
	payload, err := EncodePayload(raw)
	require.NoError(t, err)

	out, err := Decompress(payload, EncodingBase64Zstd)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestDecompress_Errors(t *testing.T) {
	payload, err := EncodePayload([]byte("whirlpool"))
	require.NoError(t, err)

	for _, enc := range []string{"base64", "base58", "jsonParsed", "", "BASE64+ZSTD"} {
		_, err := Decompress(payload, enc)
		assert.ErrorIs(t, err, ErrUnsupportedEncoding, enc)
	}

	_, err = Decompress("!!not base64!!", EncodingBase64Zstd)
	assert.ErrorIs(t, err, ErrTransport)

	notZstd := base64.StdEncoding.EncodeToString([]byte("plain bytes, no frame header"))
	_, err = Decompress(notZstd, EncodingBase64Zstd)
	assert.ErrorIs(t, err, ErrTransport)
}

func fixtureAccount() *WhirlpoolAccount {
	snap := fixtureSnapshot()
	a := &WhirlpoolAccount{
		WhirlpoolsConfig:           solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"),
		Bump:                       254,
		TickSpacing:                snap.TickSpacing,
		TickSpacingSeed:            [2]byte{4, 0},
		FeeRate:                    snap.FeeRate,
		ProtocolFeeRate:            snap.ProtocolFeeRate,
		Liquidity:                  snap.Liquidity,
		SqrtPrice:                  snap.SqrtPrice,
		TickCurrentIndex:           snap.TickCurrentIndex,
		ProtocolFeeOwedA:           111,
		ProtocolFeeOwedB:           222,
		TokenMintA:                 snap.TokenMintA,
		TokenVaultA:                snap.TokenVaultA,
		FeeGrowthGlobalA:           snap.FeeGrowthGlobalA,
		TokenMintB:                 snap.TokenMintB,
		TokenVaultB:                snap.TokenVaultB,
		FeeGrowthGlobalB:           snap.FeeGrowthGlobalB,
		RewardLastUpdatedTimestamp: 1718000000,
	}
	a.RewardInfos[0] = RewardInfo{
		Mint:                  snap.TokenMintA,
		Vault:                 solana.NewWallet().PublicKey(),
		Authority:             solana.NewWallet().PublicKey(),
		EmissionsPerSecondX64: uint256.Int{9, 0, 0, 0},
		GrowthGlobalX64:       uint256.Int{0, 9, 0, 0},
	}
	return a
}

func TestParseWhirlpoolAccount_RoundTrip(t *testing.T) {
	want := fixtureAccount()
	raw := EncodeWhirlpoolAccount(want)
	require.Len(t, raw, WhirlpoolAccountSize)

	got, err := ParseWhirlpoolAccount(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// mint_a sits after the discriminator, config, bump and scalar header
	assert.Equal(t, want.TokenMintA[:], raw[101:133])
	assert.Equal(t, want.TokenMintB[:], raw[181:213])
	assert.Equal(t, uint64(1718000000), binary.LittleEndian.Uint64(raw[261:269]))

	snap := got.Snapshot()
	assert.Equal(t, uint64(111), snap.ProtocolFeeOwedA)
	assert.Equal(t, uint64(222), snap.ProtocolFeeOwedB)
	assert.Equal(t, want.SqrtPrice, snap.SqrtPrice)
}

func TestParseWhirlpoolAccount_Invalid(t *testing.T) {
	raw := EncodeWhirlpoolAccount(fixtureAccount())

	_, err := ParseWhirlpoolAccount(raw[:WhirlpoolAccountSize-1])
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = ParseWhirlpoolAccount(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	bad := append([]byte(nil), raw...)
	bad[0] ^= 0xff
	_, err = ParseWhirlpoolAccount(bad)
	assert.ErrorIs(t, err, ErrInvalidPoolState)

	zero := fixtureAccount()
	zero.TickSpacing = 0
	_, err = ParseWhirlpoolAccount(EncodeWhirlpoolAccount(zero))
	assert.ErrorIs(t, err, ErrInvalidPoolState)
}

func TestFor(t *testing.T) {
	snapPayload, err := EncodePayload(EncodePoolSnapshot(fixtureSnapshot()))
	require.NoError(t, err)
	accPayload, err := EncodePayload(EncodeWhirlpoolAccount(fixtureAccount()))
	require.NoError(t, err)

	s, err := For(LayoutSnapshot)(snapPayload, EncodingBase64Zstd)
	require.NoError(t, err)
	assert.Equal(t, fixtureSnapshot().Liquidity, s.Liquidity)

	a, err := For(LayoutAccount)(accPayload, EncodingBase64Zstd)
	require.NoError(t, err)
	assert.Equal(t, fixtureSnapshot().Liquidity, a.Liquidity)
	assert.Equal(t, uint64(111), a.ProtocolFeeOwedA)

	_, err = For(LayoutAccount)(snapPayload, EncodingBase64Zstd)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutSnapshot, l)

	l, err = ParseLayout("Account")
	require.NoError(t, err)
	assert.Equal(t, LayoutAccount, l)

	_, err = ParseLayout("borsh")
	assert.Error(t, err)
}
