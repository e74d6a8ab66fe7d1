package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/storage"
	"github.com/sirupsen/logrus"
)

// Publisher accepts updates for asynchronous delivery.
type Publisher interface {
	Dispatch(update *models.PoolUpdate) bool
}

// DispatcherConfig holds configuration for the sink dispatcher
type DispatcherConfig struct {
	Sinks        []storage.UpdateSink
	Buffer       int
	WriteTimeout time.Duration
	Logger       *logrus.Logger
}

// DispatcherStats counts updates across all sinks.
type DispatcherStats struct {
	Dispatched uint64 `json:"dispatched"`
	Dropped    uint64 `json:"dropped"`
	Written    uint64 `json:"written"`
	Failed     uint64 `json:"failed"`
	Pending    int    `json:"pending"`
}

// Dispatcher fans pool updates out to sinks from a bounded buffer. When the
// buffer is full the update is dropped, so a slow sink never stalls
// ingestion.
type Dispatcher struct {
	sinks   []storage.UpdateSink
	ch      chan *models.PoolUpdate
	timeout time.Duration
	logger  *logrus.Logger

	dispatched, dropped, written, failed atomic.Uint64
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Dispatcher{
		sinks:   cfg.Sinks,
		ch:      make(chan *models.PoolUpdate, cfg.Buffer),
		timeout: cfg.WriteTimeout,
		logger:  cfg.Logger,
	}
}

// Dispatch enqueues update without blocking and reports whether it was
// accepted.
func (d *Dispatcher) Dispatch(update *models.PoolUpdate) bool {
	if len(d.sinks) == 0 {
		return true
	}
	select {
	case d.ch <- update:
		d.dispatched.Add(1)
		return true
	default:
		if n := d.dropped.Add(1); n == 1 || n%1000 == 0 {
			d.logger.WithFields(logrus.Fields{
				"pool":    update.Pool,
				"tier":    update.Tier,
				"dropped": n,
			}).Warn("dispatch buffer full, dropping update")
		}
		return false
	}
}

// Run writes buffered updates to every sink until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-d.ch:
			d.write(ctx, u)
		}
	}
}

func (d *Dispatcher) write(ctx context.Context, u *models.PoolUpdate) {
	for _, sink := range d.sinks {
		wctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sink.WriteUpdate(wctx, u)
		cancel()
		if err != nil {
			d.failed.Add(1)
			d.logger.WithError(err).WithFields(logrus.Fields{
				"sink": sink.Name(),
				"pool": u.Pool,
				"tier": u.Tier,
			}).Warn("sink write failed")
			continue
		}
		d.written.Add(1)
	}
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Written:    d.written.Load(),
		Failed:     d.failed.Load(),
		Pending:    len(d.ch),
	}
}
