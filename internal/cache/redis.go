package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/constants"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"
)

var ErrCacheMiss = errors.New("cache miss")

// RedisCache keeps the latest update of every (tier, pool) and the current
// network progress.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisCacheFromClient wraps an existing client. A zero ttl keeps entries
// until overwritten.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (r *RedisCache) Name() string { return "redis" }

// StateKey is the key holding the latest update of pool in tier.
func StateKey(tier, pool string) string {
	return constants.RedisKeyStatePrefix + tier + ":" + pool
}

func (r *RedisCache) WriteUpdate(ctx context.Context, update *models.PoolUpdate) error {
	data, err := sonnet.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	if err := r.client.Set(ctx, StateKey(update.Tier, update.Pool), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (r *RedisCache) GetState(ctx context.Context, tier models.Tier, pool string) (*models.PoolUpdate, error) {
	val, err := r.client.Get(ctx, StateKey(tier.String(), pool)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	var update models.PoolUpdate
	if err := sonnet.Unmarshal(val, &update); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &update, nil
}

func (r *RedisCache) SetProgress(ctx context.Context, progress models.NetworkProgress) error {
	data, err := sonnet.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return r.client.Set(ctx, constants.RedisKeyProgress, data, 0).Err()
}

func (r *RedisCache) GetProgress(ctx context.Context) (*models.NetworkProgress, error) {
	val, err := r.client.Get(ctx, constants.RedisKeyProgress).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	var p models.NetworkProgress
	if err := sonnet.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &p, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
