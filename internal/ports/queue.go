package ports

import (
	"context"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
)

// FrameQueue hands raw frames from the listener to the dispatcher in
// priority order.
type FrameQueue interface {
	// Put never blocks. It reports false when the frame was not admitted.
	Put(f *domain.RawFrame) bool
	// Pop waits up to timeout for the most urgent frame.
	Pop(ctx context.Context, timeout time.Duration) (*domain.RawFrame, bool)
	Len() int
}
