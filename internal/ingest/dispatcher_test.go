package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/storage"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	name string
	err  error

	mu   sync.Mutex
	got  []*models.PoolUpdate
	gate chan struct{}
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) WriteUpdate(ctx context.Context, u *models.PoolUpdate) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, u)
	return s.err
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestDispatcher_FansOut(t *testing.T) {
	logger, _ := test.NewNullLogger()
	a := &memorySink{name: "a"}
	b := &memorySink{name: "b", err: errors.New("down")}
	d := NewDispatcher(DispatcherConfig{Sinks: []storage.UpdateSink{a, b}, Buffer: 8, Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.True(t, d.Dispatch(&models.PoolUpdate{Pool: "p", Tier: "durable", Slot: uint64(i)}))
	}

	require.Eventually(t, func() bool { return a.count() == 3 && b.count() == 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	stats := d.Stats()
	assert.Equal(t, uint64(3), stats.Dispatched)
	assert.Equal(t, uint64(3), stats.Written)
	assert.Equal(t, uint64(3), stats.Failed)
	assert.Zero(t, stats.Dropped)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &memorySink{name: "slow", gate: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{Sinks: []storage.UpdateSink{sink}, Buffer: 2, Logger: logger})

	assert.True(t, d.Dispatch(&models.PoolUpdate{Pool: "p1"}))
	assert.True(t, d.Dispatch(&models.PoolUpdate{Pool: "p2"}))
	assert.False(t, d.Dispatch(&models.PoolUpdate{Pool: "p3"}))

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 2, stats.Pending)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "dispatch buffer full, dropping update", entry.Message)
}

func TestDispatcher_NoSinks(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Buffer: 1})
	for i := 0; i < 10; i++ {
		assert.True(t, d.Dispatch(&models.PoolUpdate{}))
	}
	assert.Zero(t, d.Stats().Dropped)
}
