package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/decoder"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/pricing"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/state"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/stream"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownPool  = errors.New("pool not in index")
	ErrStale        = errors.New("stale update dropped")
	ErrTierMismatch = errors.New("update for another tier")
)

// priceDecimals is the number of places a published price is rounded to.
const priceDecimals = 12

// CoordinatorConfig holds configuration for a tier coordinator
type CoordinatorConfig struct {
	Tier      models.Tier
	Updates   *stream.Queue[stream.AccountUpdate]
	Store     *state.Store
	Decode    decoder.Func
	Policy    StalePolicy
	Publisher Publisher
	WarnDepth int
	Logger    *logrus.Logger
}

// CoordinatorStats counts what happened to the updates of one tier.
type CoordinatorStats struct {
	Received     uint64 `json:"received"`
	UnknownPool  uint64 `json:"unknown_pool"`
	Stale        uint64 `json:"stale"`
	StaleDropped uint64 `json:"stale_dropped"`
	TierMismatch uint64 `json:"tier_mismatch"`
	DecodeFailed uint64 `json:"decode_failed"`
	Created      uint64 `json:"created"`
	Updated      uint64 `json:"updated"`
	Unchanged    uint64 `json:"unchanged"`
}

// Coordinator drains the update queue of one tier into the store. It never
// retries and never propagates a per-update error.
type Coordinator struct {
	tier      models.Tier
	queue     *stream.Queue[stream.AccountUpdate]
	store     *state.Store
	index     *state.Index
	decode    decoder.Func
	policy    StalePolicy
	publisher Publisher
	warnDepth int
	logger    *logrus.Logger

	received, unknown, stale, staleDropped, decodeFailed atomic.Uint64
	created, updated, unchanged, tierMismatch            atomic.Uint64
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Decode == nil {
		cfg.Decode = decoder.DecodeSnapshot
	}
	if cfg.Policy == nil {
		cfg.Policy = ApplyStale
	}

	return &Coordinator{
		tier:      cfg.Tier,
		queue:     cfg.Updates,
		store:     cfg.Store,
		index:     cfg.Store.Index(),
		decode:    cfg.Decode,
		policy:    cfg.Policy,
		publisher: cfg.Publisher,
		warnDepth: cfg.WarnDepth,
		logger:    cfg.Logger,
	}
}

func (c *Coordinator) Tier() models.Tier {
	return c.tier
}

// Run pops updates in arrival order until ctx is cancelled or the queue is
// closed and drained.
func (c *Coordinator) Run(ctx context.Context) error {
	backlogged := false
	for {
		u, err := c.queue.Pop(ctx)
		if errors.Is(err, stream.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if c.warnDepth > 0 {
			depth := c.queue.Len()
			if depth > c.warnDepth && !backlogged {
				c.logger.WithFields(logrus.Fields{
					"tier":  c.tier,
					"depth": depth,
				}).Warn("update queue backlog")
			}
			backlogged = depth > c.warnDepth
		}

		_, _ = c.Handle(ctx, u)
	}
}

// Handle runs one update through the freshness check, the decoder and the
// store. The error says why an update was dropped; callers only need it
// for tests and metrics.
func (c *Coordinator) Handle(ctx context.Context, u stream.AccountUpdate) (state.ApplyResult, error) {
	c.received.Add(1)
	fields := logrus.Fields{
		"tier":   c.tier,
		"pool":   u.Pool,
		"slot":   u.Slot,
		"method": u.Method,
	}

	if u.Tier != c.tier {
		c.tierMismatch.Add(1)
		c.logger.WithFields(fields).WithField("update_tier", u.Tier).Warn("update for another tier dropped")
		return 0, fmt.Errorf("%w: %s", ErrTierMismatch, u.Tier)
	}

	if !c.index.Contains(u.Pool) {
		c.unknown.Add(1)
		c.logger.WithFields(fields).Debug("update for unknown pool")
		return 0, ErrUnknownPool
	}

	if !c.store.ValidateFreshness(u.Slot) {
		c.stale.Add(1)
		if p, ok := c.store.NetworkProgress(); ok && p.CurrentSlot > u.Slot {
			fields["current"] = p.CurrentSlot
			fields["lag"] = p.CurrentSlot - u.Slot
		}
		if c.policy.DropStale() {
			c.staleDropped.Add(1)
			c.logger.WithFields(fields).Warn("stale update dropped")
			return 0, ErrStale
		}
		c.logger.WithFields(fields).Warn("stale update applied")
	}

	snap, err := c.decode(u.Payload, u.Encoding)
	if err != nil {
		c.decodeFailed.Add(1)
		c.logger.WithError(err).WithFields(fields).Warn("decode failed")
		return 0, err
	}

	return c.Apply(ctx, u.Pool, snap, u.Slot)
}

// Apply writes a decoded snapshot and, when the record changed, refreshes
// the liquidity edges of the pool and publishes the new state.
func (c *Coordinator) Apply(_ context.Context, pool solana.PublicKey, snap *models.PoolSnapshot, slot uint64) (state.ApplyResult, error) {
	res, err := c.store.Apply(c.tier, pool, snap, slot)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"tier": c.tier,
			"pool": pool,
			"slot": slot,
		}).Error("apply failed")
		return 0, err
	}

	switch res {
	case state.ApplyCreated:
		c.created.Add(1)
	case state.ApplyUpdated:
		c.updated.Add(1)
	default:
		c.unchanged.Add(1)
		return res, nil
	}

	c.upsertEdges(pool, snap, slot)

	if c.publisher != nil {
		if st, ok := c.store.Get(c.tier, pool); ok {
			c.publisher.Dispatch(c.render(&st))
		}
	}
	return res, nil
}

func (c *Coordinator) upsertEdges(pool solana.PublicKey, snap *models.PoolSnapshot, slot uint64) {
	if _, ok := c.index.TokenByMint(snap.TokenMintA); !ok {
		return
	}
	if _, ok := c.index.TokenByMint(snap.TokenMintB); !ok {
		return
	}

	edge := models.LiquidityEdge{
		Tier:      c.tier,
		Pool:      pool,
		Liquidity: snap.Liquidity,
		FeeRate:   snap.FeeRate,
		Slot:      slot,
	}
	edge.TokenIn, edge.TokenOut = snap.TokenMintA, snap.TokenMintB
	c.index.UpsertEdge(edge)
	edge.TokenIn, edge.TokenOut = snap.TokenMintB, snap.TokenMintA
	c.index.UpsertEdge(edge)
}

func (c *Coordinator) render(st *models.TieredState) *models.PoolUpdate {
	return RenderUpdate(c.index, st)
}

// RenderUpdate builds the published form of a record, with pair and human
// price when the index knows both tokens.
func RenderUpdate(index *state.Index, st *models.TieredState) *models.PoolUpdate {
	var pair, price string
	if info, ok := index.Pool(st.Address); ok {
		pair = models.TokenPair{SymbolA: info.SymbolA, SymbolB: info.SymbolB}.String()
	}
	ta, okA := index.TokenByMint(st.TokenMintA)
	tb, okB := index.TokenByMint(st.TokenMintB)
	if okA && okB {
		price = pricing.SqrtPriceToPrice(&st.SqrtPrice, ta.Decimals, tb.Decimals).Round(priceDecimals).String()
	}
	return models.NewPoolUpdate(st, pair, price)
}

func (c *Coordinator) Stats() CoordinatorStats {
	return CoordinatorStats{
		Received:     c.received.Load(),
		UnknownPool:  c.unknown.Load(),
		Stale:        c.stale.Load(),
		StaleDropped: c.staleDropped.Load(),
		TierMismatch: c.tierMismatch.Load(),
		DecodeFailed: c.decodeFailed.Load(),
		Created:      c.created.Load(),
		Updated:      c.updated.Load(),
		Unchanged:    c.unchanged.Load(),
	}
}
