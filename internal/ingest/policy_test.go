package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/flags"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlags struct {
	mu    sync.Mutex
	value *bool
	err   error
	reads int
}

func (f *fakeFlags) set(v bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = &v
	f.err = err
}

func (f *fakeFlags) Bool(_ context.Context, _ string, def bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return def, f.err
	}
	if f.value == nil {
		return def, nil
	}
	return *f.value, nil
}

func TestStaticPolicy(t *testing.T) {
	assert.False(t, ApplyStale.DropStale())
	assert.True(t, DropStale.DropStale())
}

func TestFlagPolicy_Refresh(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ff := &fakeFlags{}
	p := NewFlagPolicy(FlagPolicyConfig{Flags: ff, Key: flags.DropStale, Logger: logger})
	ctx := context.Background()

	assert.False(t, p.DropStale())
	require.NoError(t, p.Refresh(ctx))
	assert.False(t, p.DropStale(), "unset flag keeps the default")

	ff.set(true, nil)
	require.NoError(t, p.Refresh(ctx))
	assert.True(t, p.DropStale())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "stale policy changed", hook.LastEntry().Message)

	ff.set(false, errors.New("redis down"))
	assert.Error(t, p.Refresh(ctx))
	assert.True(t, p.DropStale(), "errors keep the last value")
}

func TestFlagPolicy_RunPolls(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ff := &fakeFlags{}
	p := NewFlagPolicy(FlagPolicyConfig{Flags: ff, Key: flags.DropStale, Default: false, Interval: 5 * time.Millisecond, Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	ff.set(true, nil)
	require.Eventually(t, p.DropStale, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
