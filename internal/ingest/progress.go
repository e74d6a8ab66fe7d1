package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/state"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/stream"
	"github.com/sirupsen/logrus"
)

// ProgressSink mirrors network progress somewhere outside the process.
type ProgressSink interface {
	SetProgress(ctx context.Context, progress models.NetworkProgress) error
}

// SlotFetcher reads the slot a node has reached.
type SlotFetcher interface {
	GetSlot(ctx context.Context, commitment string) (uint64, error)
}

// PrimeProgress records the node's current slot before any slot
// notification arrives, so freshness checks start from a known slot.
func PrimeProgress(ctx context.Context, fetcher SlotFetcher, commitment string, store *state.Store) (uint64, error) {
	slot, err := fetcher.GetSlot(ctx, commitment)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	store.RecordProgress(models.SlotInfo{Slot: slot})
	return slot, nil
}

// RunProgress drains slot notifications into the store until ctx is
// cancelled or the queue is closed. sink may be nil.
func RunProgress(ctx context.Context, q *stream.Queue[models.SlotInfo], store *state.Store, sink ProgressSink, logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.New()
	}
	for {
		info, err := q.Pop(ctx)
		if errors.Is(err, stream.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		store.RecordProgress(info)

		if sink == nil {
			continue
		}
		if p, ok := store.NetworkProgress(); ok {
			if err := sink.SetProgress(ctx, p); err != nil && ctx.Err() == nil {
				logger.WithError(err).WithField("slot", info.Slot).Debug("mirror network progress")
			}
		}
	}
}
