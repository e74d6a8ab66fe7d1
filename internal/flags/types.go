package flags

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("flag not found")
	ErrInvalidKey = errors.New("invalid flag key")
)

// Known runtime flags.
const (
	// DropStale makes the coordinators discard updates that fail the
	// freshness check instead of applying them.
	DropStale = "ingest.drop_stale"
)

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
