package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/sirupsen/logrus"
)

const poolUpdatesTable = "pool_updates"

const createPoolUpdatesSQL = `
	CREATE TABLE IF NOT EXISTS pool_updates (
		tier               LowCardinality(String),
		pool               String,
		pair               String,
		slot               UInt64,
		updated_at         DateTime64(3),
		liquidity          String,
		sqrt_price         String,
		price              String,
		tick_current_index Int32,
		fee_rate           UInt16,
		protocol_fee_rate  UInt16,
		fee_growth_a       String,
		fee_growth_b       String,
		is_active          Bool
	) ENGINE = MergeTree
	ORDER BY (pool, tier, slot)
`

const insertPoolUpdateSQL = `
	INSERT INTO pool_updates (
		tier, pool, pair, slot, updated_at, liquidity, sqrt_price, price,
		tick_current_index, fee_rate, protocol_fee_rate, fee_growth_a,
		fee_growth_b, is_active
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// ClickHouseConfig holds connection settings for the history store
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore appends every changed pool update to a MergeTree table.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger}, nil
}

func (c *ClickHouseStore) Name() string { return "clickhouse" }

func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createPoolUpdatesSQL); err != nil {
		return fmt.Errorf("create %s: %w", poolUpdatesTable, err)
	}
	return nil
}

func (c *ClickHouseStore) WriteUpdate(ctx context.Context, u *models.PoolUpdate) error {
	err := c.conn.Exec(ctx, insertPoolUpdateSQL, insertArgs(u)...)
	if err != nil {
		return fmt.Errorf("failed to insert pool update: %w", err)
	}
	return nil
}

func insertArgs(u *models.PoolUpdate) []any {
	return []any{
		u.Tier,
		u.Pool,
		u.Pair,
		u.Slot,
		u.UpdatedAt,
		u.Liquidity,
		u.SqrtPrice,
		u.Price,
		u.TickCurrentIndex,
		u.FeeRate,
		u.ProtocolFeeRate,
		u.FeeGrowthGlobalA,
		u.FeeGrowthGlobalB,
		u.IsActive,
	}
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
