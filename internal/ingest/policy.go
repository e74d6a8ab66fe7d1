package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// StalePolicy decides what happens to an update that failed the freshness
// check.
type StalePolicy interface {
	DropStale() bool
}

// StaticPolicy is a fixed policy taken from configuration.
type StaticPolicy bool

const (
	ApplyStale StaticPolicy = false
	DropStale  StaticPolicy = true
)

func (p StaticPolicy) DropStale() bool { return bool(p) }

// FlagReader reads a boolean runtime flag.
type FlagReader interface {
	Bool(ctx context.Context, key string, def bool) (bool, error)
}

// FlagPolicyConfig holds configuration for a flag-backed stale policy
type FlagPolicyConfig struct {
	Flags    FlagReader
	Key      string
	Default  bool
	Interval time.Duration
	Logger   *logrus.Logger
}

// FlagPolicy follows a runtime flag. The flag is polled by Run; DropStale
// only reads the last polled value.
type FlagPolicy struct {
	cfg  FlagPolicyConfig
	drop atomic.Bool
}

func NewFlagPolicy(cfg FlagPolicyConfig) *FlagPolicy {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	p := &FlagPolicy{cfg: cfg}
	p.drop.Store(cfg.Default)
	return p
}

func (p *FlagPolicy) DropStale() bool { return p.drop.Load() }

// Refresh reads the flag once. On error the previous value is kept.
func (p *FlagPolicy) Refresh(ctx context.Context) error {
	v, err := p.cfg.Flags.Bool(ctx, p.cfg.Key, p.cfg.Default)
	if err != nil {
		return err
	}
	if prev := p.drop.Swap(v); prev != v {
		p.cfg.Logger.WithFields(logrus.Fields{
			"flag":       p.cfg.Key,
			"drop_stale": v,
		}).Info("stale policy changed")
	}
	return nil
}

// Run polls the flag until ctx is cancelled.
func (p *FlagPolicy) Run(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		p.cfg.Logger.WithError(err).WithField("flag", p.cfg.Key).Warn("read stale policy flag")
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
				p.cfg.Logger.WithError(err).WithField("flag", p.cfg.Key).Warn("read stale policy flag")
			}
		}
	}
}
