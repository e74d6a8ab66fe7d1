package state

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultStaleTolerance is how many slots network progress may run ahead
	// of an update before the update counts as stale.
	DefaultStaleTolerance = 10

	// DefaultDelayThreshold is the wall-clock gap between slot notifications
	// that triggers a delay warning.
	DefaultDelayThreshold = time.Second
)

var ErrUnknownTier = errors.New("unknown tier")

// ApplyResult reports what Apply did to a record.
type ApplyResult uint8

const (
	ApplyCreated ApplyResult = iota + 1
	ApplyUpdated
	ApplyUnchanged
)

// Changed is true for a new record and for an update that wrote fields.
func (r ApplyResult) Changed() bool {
	return r == ApplyCreated || r == ApplyUpdated
}

func (r ApplyResult) String() string {
	switch r {
	case ApplyCreated:
		return "created"
	case ApplyUpdated:
		return "updated"
	case ApplyUnchanged:
		return "unchanged"
	default:
		return "invalid"
	}
}

// StoreConfig holds configuration for the state store
type StoreConfig struct {
	Index          *Index
	StaleTolerance uint64
	DelayThreshold time.Duration
	Logger         *logrus.Logger

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Store keeps one record per (tier, pool) plus network progress. Each
// record has its own lock, so unrelated pools never contend.
type Store struct {
	index     *Index
	tolerance uint64
	delay     time.Duration
	logger    *logrus.Logger
	now       func() time.Time

	tiers  [2]sync.Map // solana.PublicKey -> *record
	counts [2]atomic.Int64

	progressMu sync.RWMutex
	progress   map[string]*models.NetworkProgress
}

type record struct {
	mu    sync.RWMutex
	state models.TieredState
}

// NewStore creates an empty store
func NewStore(cfg StoreConfig) *Store {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Index == nil {
		cfg.Index = NewIndex()
	}
	if cfg.StaleTolerance == 0 {
		cfg.StaleTolerance = DefaultStaleTolerance
	}
	if cfg.DelayThreshold <= 0 {
		cfg.DelayThreshold = DefaultDelayThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Store{
		index:     cfg.Index,
		tolerance: cfg.StaleTolerance,
		delay:     cfg.DelayThreshold,
		logger:    cfg.Logger,
		now:       cfg.Now,
		progress:  make(map[string]*models.NetworkProgress),
	}
}

func (s *Store) Index() *Index {
	return s.index
}

func (s *Store) tierMap(tier models.Tier) (*sync.Map, error) {
	if int(tier) >= len(s.tiers) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	return &s.tiers[tier], nil
}

// Apply writes a decoded snapshot to the tier record of pool. A missing
// record is created. An existing record is rewritten only when a tracked
// field differs, and then every tracked field is written under the record
// lock together with the slot and timestamp.
func (s *Store) Apply(tier models.Tier, pool solana.PublicKey, snap *models.PoolSnapshot, atSlot uint64) (ApplyResult, error) {
	m, err := s.tierMap(tier)
	if err != nil {
		return 0, err
	}
	if snap == nil {
		return 0, fmt.Errorf("apply %s: nil snapshot", pool)
	}

	now := s.now()
	v, ok := m.Load(pool)
	if !ok {
		fresh := &record{state: models.TieredState{
			Tier:        tier,
			PoolState:   models.NewPoolState(pool, snap),
			UpdatedSlot: atSlot,
			UpdatedAt:   now,
		}}
		if v, ok = m.LoadOrStore(pool, fresh); !ok {
			s.counts[tier].Add(1)
			s.logger.WithFields(logrus.Fields{
				"tier": tier,
				"pool": pool,
				"slot": atSlot,
			}).Debug("pool state created")
			return ApplyCreated, nil
		}
	}

	rec := v.(*record)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	cur := &rec.state
	if atSlot < cur.UpdatedSlot {
		s.logger.WithFields(logrus.Fields{
			"tier":        tier,
			"pool":        pool,
			"slot":        atSlot,
			"stored_slot": cur.UpdatedSlot,
		}).Warn("update slot is behind stored slot")
	}

	changed := diffTracked(&cur.PoolState, snap)
	if len(changed) == 0 {
		return ApplyUnchanged, nil
	}

	writeTracked(&cur.PoolState, snap)
	cur.UpdatedSlot = atSlot
	cur.UpdatedAt = now

	s.logger.WithFields(logrus.Fields{
		"tier":    tier,
		"pool":    pool,
		"slot":    atSlot,
		"changed": changed,
	}).Debug("pool state updated")
	return ApplyUpdated, nil
}

func diffTracked(cur *models.PoolState, snap *models.PoolSnapshot) []string {
	var changed []string
	mark := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}
	mark("is_active", cur.IsActive != snap.Active())
	mark("sqrt_price", cur.SqrtPrice != snap.SqrtPrice)
	mark("price_threshold", cur.PriceThreshold != snap.PriceThreshold)
	mark("liquidity", cur.Liquidity != snap.Liquidity)
	mark("tick_current_index", cur.TickCurrentIndex != snap.TickCurrentIndex)
	mark("fee_rate", cur.FeeRate != snap.FeeRate)
	mark("protocol_fee_rate", cur.ProtocolFeeRate != snap.ProtocolFeeRate)
	mark("fee_growth_global_a", cur.FeeGrowthGlobalA != snap.FeeGrowthGlobalA)
	mark("fee_growth_global_b", cur.FeeGrowthGlobalB != snap.FeeGrowthGlobalB)
	mark("protocol_fee_owed_a", cur.ProtocolFeeOwedA != snap.ProtocolFeeOwedA)
	mark("protocol_fee_owed_b", cur.ProtocolFeeOwedB != snap.ProtocolFeeOwedB)
	return changed
}

func writeTracked(cur *models.PoolState, snap *models.PoolSnapshot) {
	cur.IsActive = snap.Active()
	cur.SqrtPrice = snap.SqrtPrice
	cur.PriceThreshold = snap.PriceThreshold
	cur.Liquidity = snap.Liquidity
	cur.TickCurrentIndex = snap.TickCurrentIndex
	cur.FeeRate = snap.FeeRate
	cur.ProtocolFeeRate = snap.ProtocolFeeRate
	cur.FeeGrowthGlobalA = snap.FeeGrowthGlobalA
	cur.FeeGrowthGlobalB = snap.FeeGrowthGlobalB
	cur.ProtocolFeeOwedA = snap.ProtocolFeeOwedA
	cur.ProtocolFeeOwedB = snap.ProtocolFeeOwedB
}

// Get returns a copy of the tier record of pool.
func (s *Store) Get(tier models.Tier, pool solana.PublicKey) (models.TieredState, bool) {
	m, err := s.tierMap(tier)
	if err != nil {
		return models.TieredState{}, false
	}
	v, ok := m.Load(pool)
	if !ok {
		return models.TieredState{}, false
	}
	return v.(*record).snapshot(), true
}

func (r *record) snapshot() models.TieredState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Range calls fn with a copy of every record in tier until fn returns
// false. Records created or updated during the walk may or may not be seen.
func (s *Store) Range(tier models.Tier, fn func(models.TieredState) bool) {
	m, err := s.tierMap(tier)
	if err != nil {
		return
	}
	m.Range(func(_, v any) bool {
		return fn(v.(*record).snapshot())
	})
}

// Len returns the number of records in tier.
func (s *Store) Len(tier models.Tier) int {
	if int(tier) >= len(s.counts) {
		return 0
	}
	return int(s.counts[tier].Load())
}

// StatesBySymbol returns the tier records of every indexed pool whose pair
// contains symbol. Pools without a record yet are skipped.
func (s *Store) StatesBySymbol(tier models.Tier, symbol string) []models.TieredState {
	return s.collect(tier, s.index.PoolsBySymbol(symbol))
}

// StatesByMint is StatesBySymbol keyed by token mint.
func (s *Store) StatesByMint(tier models.Tier, mint solana.PublicKey) []models.TieredState {
	return s.collect(tier, s.index.PoolsByMint(mint))
}

func (s *Store) collect(tier models.Tier, pools []solana.PublicKey) []models.TieredState {
	out := make([]models.TieredState, 0, len(pools))
	for _, p := range pools {
		if st, ok := s.Get(tier, p); ok {
			out = append(out, st)
		}
	}
	return out
}
