package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/decoder"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	accounts map[solana.PublicKey]*rpc.AccountInfo
	slot     uint64
	batches  [][]solana.PublicKey
	opts     rpc.AccountOptions
	err      error
}

func (f *fakeFetcher) GetMultipleAccounts(_ context.Context, keys []solana.PublicKey, opts rpc.AccountOptions) (*rpc.MultipleAccountsResult, error) {
	f.batches = append(f.batches, keys)
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	res := &rpc.MultipleAccountsResult{Context: rpc.Context{Slot: f.slot}}
	for _, k := range keys {
		res.Value = append(res.Value, f.accounts[k])
	}
	return res, nil
}

func accountInfo(t *testing.T, liquidity uint64) *rpc.AccountInfo {
	t.Helper()
	snap := snapshot(liquidity)
	acc := &decoder.WhirlpoolAccount{
		TickSpacing:      snap.TickSpacing,
		FeeRate:          snap.FeeRate,
		Liquidity:        snap.Liquidity,
		SqrtPrice:        snap.SqrtPrice,
		TokenMintA:       snap.TokenMintA,
		TokenVaultA:      snap.TokenVaultA,
		TokenMintB:       snap.TokenMintB,
		TokenVaultB:      snap.TokenVaultB,
		ProtocolFeeOwedA: 11,
		FeeGrowthGlobalA: *uint256.NewInt(3),
	}
	payload, err := decoder.EncodePayload(decoder.EncodeWhirlpoolAccount(acc))
	require.NoError(t, err)
	return &rpc.AccountInfo{Data: []string{payload, decoder.EncodingBase64Zstd}, Space: decoder.WhirlpoolAccountSize}
}

func TestSeeder_AppliesToEveryTier(t *testing.T) {
	f := newFixture(t)
	fast := f.coordinator(models.TierSpeculative, ApplyStale)
	dur := f.coordinator(models.TierDurable, ApplyStale)

	fetcher := &fakeFetcher{
		slot: 777,
		accounts: map[solana.PublicKey]*rpc.AccountInfo{
			testPool: accountInfo(t, 1234),
			other:    {Data: []string{"AAAA", decoder.EncodingBase64Zstd}},
		},
	}
	missing := solana.MustPublicKeyFromBase58("JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN")

	s := NewSeeder(SeederConfig{
		Fetcher:      fetcher,
		Coordinators: []*Coordinator{fast, dur},
		Commitment:   "finalized",
		BatchSize:    2,
		Logger:       f.logger,
	})

	report, err := s.Seed(context.Background(), []solana.PublicKey{testPool, other, missing})
	require.NoError(t, err)

	assert.Equal(t, uint64(3), report.Requested)
	assert.Equal(t, uint64(1), report.Missing)
	assert.Equal(t, uint64(1), report.Failed)
	assert.Equal(t, uint64(2), report.Applied)
	assert.Equal(t, uint64(777), report.Slot)

	require.Len(t, fetcher.batches, 2)
	assert.Len(t, fetcher.batches[0], 2)
	assert.Len(t, fetcher.batches[1], 1)
	assert.Equal(t, decoder.EncodingBase64Zstd, fetcher.opts.Encoding)
	assert.Equal(t, "finalized", fetcher.opts.Commitment)

	for _, tier := range models.Tiers {
		st, ok := f.store.Get(tier, testPool)
		require.True(t, ok, tier.String())
		assert.Equal(t, uint64(1234), st.Liquidity.Uint64())
		assert.Equal(t, uint64(777), st.UpdatedSlot)
		assert.Equal(t, uint64(11), st.ProtocolFeeOwedA)
	}
	assert.Len(t, f.publisher.all(), 2)
}

func TestSeeder_BatchError(t *testing.T) {
	f := newFixture(t)
	fetcher := &fakeFetcher{err: errors.New("node unavailable")}
	s := NewSeeder(SeederConfig{
		Fetcher:      fetcher,
		Coordinators: []*Coordinator{f.coordinator(models.TierDurable, ApplyStale)},
		Logger:       f.logger,
	})

	_, err := s.Seed(context.Background(), []solana.PublicKey{testPool})
	assert.Error(t, err)
	assert.Zero(t, f.store.Len(models.TierDurable))
}
