package stream

import (
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
)

var (
	// ErrTransport marks connection-level failures. A subscriber returning
	// it has stopped; restarting it is the caller's decision.
	ErrTransport = errors.New("transport error")

	ErrAlreadyRunning = errors.New("subscriber already running")
	ErrQueueClosed    = errors.New("queue closed")
)

// ProtocolError is a frame that could not be parsed or had an unexpected
// shape. The frame is dropped and the connection kept.
type ProtocolError struct {
	Tier models.Tier
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol error: %v", e.Tier, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
