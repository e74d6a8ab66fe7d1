package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
)

// UpdateSink receives every pool update that changed a stored record
type UpdateSink interface {
	// Name identifies the sink in logs and stats
	Name() string

	// WriteUpdate hands one update to the sink
	WriteUpdate(ctx context.Context, update *models.PoolUpdate) error
}

// PoolStateCache defines the interface for the latest-state cache
type PoolStateCache interface {
	UpdateSink

	// GetState retrieves the latest cached update for a pool and tier
	GetState(ctx context.Context, tier models.Tier, pool string) (*models.PoolUpdate, error)

	// SetProgress caches the current network progress
	SetProgress(ctx context.Context, progress models.NetworkProgress) error

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	io.Closer
}

// PoolHistoryStore defines the interface for persistent pool update history
type PoolHistoryStore interface {
	UpdateSink

	// EnsureSchema creates the history table if it does not exist
	EnsureSchema(ctx context.Context) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// UpdateHandler is a function that processes pool updates
type UpdateHandler func(*models.PoolUpdate)

// StreamProvider defines the interface for a restartable notification stream
type StreamProvider interface {
	// Start streams until the connection fails or ctx is cancelled
	Start(ctx context.Context) error

	// Stop stops the stream provider
	Stop() error
}
