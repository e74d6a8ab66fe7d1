package cache

import (
	"context"
	"testing"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func sampleUpdate() *models.PoolUpdate {
	return &models.PoolUpdate{
		Tier:             "speculative",
		Pool:             "HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ",
		Pair:             "SOL/USDC",
		MintA:            "So11111111111111111111111111111111111111112",
		MintB:            "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Slot:             300,
		UpdatedAt:        time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Liquidity:        "1000",
		SqrtPrice:        "7456505414912660480",
		Price:            "163.3959",
		TickCurrentIndex: -19000,
		TickSpacing:      64,
		FeeRate:          3000,
		FeeGrowthGlobalA: "0",
		FeeGrowthGlobalB: "0",
		IsActive:         true,
	}
}

func TestChannels(t *testing.T) {
	u := sampleUpdate()
	assert.Equal(t, []string{
		"pools:all",
		"pools:tier:speculative",
		"pools:pool:HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ",
	}, Channels(u))
}

func TestStateKey(t *testing.T) {
	assert.Equal(t, "pool:state:durable:abc", StateKey("durable", "abc"))
}

func TestInsertArgs_MatchColumns(t *testing.T) {
	args := insertArgs(sampleUpdate())
	assert.Len(t, args, 14)
	assert.Equal(t, "speculative", args[0])
	assert.Equal(t, uint64(300), args[3])
	assert.Equal(t, true, args[13])
}

func TestRedisCache_StateRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	logger, _ := test.NewNullLogger()
	c := NewRedisCacheFromClient(client, time.Minute, logger)
	ctx := context.Background()

	_, err := c.GetState(ctx, models.TierSpeculative, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	u := sampleUpdate()
	require.NoError(t, c.WriteUpdate(ctx, u))

	got, err := c.GetState(ctx, models.TierSpeculative, u.Pool)
	require.NoError(t, err)
	assert.Equal(t, u.Liquidity, got.Liquidity)
	assert.Equal(t, u.Slot, got.Slot)
	assert.True(t, u.UpdatedAt.Equal(got.UpdatedAt))

	_, err = c.GetState(ctx, models.TierDurable, u.Pool)
	assert.ErrorIs(t, err, ErrCacheMiss, "tiers are cached separately")
}

func TestRedisCache_Progress(t *testing.T) {
	client := setupTestRedis(t)
	c := NewRedisCacheFromClient(client, 0, nil)
	ctx := context.Background()

	_, err := c.GetProgress(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)

	p := models.NetworkProgress{CurrentSlot: 105, ParentSlot: 104, RootSlot: 70, LastUpdate: time.Now().UTC()}
	require.NoError(t, c.SetProgress(ctx, p))

	got, err := c.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.CurrentSlot, got.CurrentSlot)
	assert.Equal(t, p.RootSlot, got.RootSlot)
}

func TestPubSub_PublishAndSubscribe(t *testing.T) {
	client := setupTestRedis(t)
	logger, _ := test.NewNullLogger()
	ps := NewPubSubManager(client, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *models.PoolUpdate, 1)
	done := make(chan error, 1)
	go func() {
		done <- ps.PSubscribe(ctx, "pools:tier:*", func(u *models.PoolUpdate) {
			select {
			case got <- u:
			default:
			}
		})
	}()

	u := sampleUpdate()
	require.Eventually(t, func() bool {
		if err := ps.WriteUpdate(ctx, u); err != nil {
			return false
		}
		select {
		case received := <-got:
			return received.Pool == u.Pool && received.Liquidity == "1000"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 4*time.Second, 100*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
