package ports

import "context"

// FrameSource produces raw frames into a queue until ctx is cancelled.
type FrameSource interface {
	Open() error
	Run(ctx context.Context, q FrameQueue) error
	Close() error
}
