package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/storage"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Name           string
	Provider       storage.StreamProvider
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// HealthyAfter is how long a run must last before the backoff resets.
	// Defaults to MaxBackoff.
	HealthyAfter time.Duration
	Logger       *logrus.Logger
}

// Supervisor keeps a stream provider running until its context ends.
type Supervisor struct {
	name         string
	provider     storage.StreamProvider
	initial      time.Duration
	max          time.Duration
	healthyAfter time.Duration
	logger       *logrus.Logger

	restarts atomic.Uint64
}

func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.HealthyAfter <= 0 {
		cfg.HealthyAfter = cfg.MaxBackoff
	}
	return &Supervisor{
		name:         cfg.Name,
		provider:     cfg.Provider,
		initial:      cfg.InitialBackoff,
		max:          cfg.MaxBackoff,
		healthyAfter: cfg.HealthyAfter,
		logger:       cfg.Logger,
	}
}

// Restarts returns how many times the provider has been restarted.
func (s *Supervisor) Restarts() uint64 {
	return s.restarts.Load()
}

// Run blocks until ctx is cancelled, restarting the provider whenever
// Start returns.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := s.initial
	for {
		started := time.Now()
		err := s.provider.Start(ctx)
		if ctx.Err() != nil {
			_ = s.provider.Stop()
			return ctx.Err()
		}

		if time.Since(started) >= s.healthyAfter {
			backoff = s.initial
		}

		entry := s.logger.WithFields(logrus.Fields{
			"stream":  s.name,
			"backoff": backoff,
			"uptime":  time.Since(started).Round(time.Millisecond),
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			entry = entry.WithError(err)
		}
		entry.Warn("stream stopped, restarting")

		select {
		case <-ctx.Done():
			_ = s.provider.Stop()
			return ctx.Err()
		case <-time.After(backoff):
		}

		s.restarts.Add(1)
		backoff *= 2
		if backoff > s.max {
			backoff = s.max
		}
	}
}
