package ports

import (
	"context"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
)

// Output is one fan-out destination for classified packets.
type Output interface {
	Name() string
	// TrySend delivers p without blocking. False means the delivery was dropped.
	TrySend(p domain.Packet) bool
}

// PacketReceiver is the consumer side of an output.
type PacketReceiver interface {
	// Receive waits up to timeout. ok is false on timeout, cancellation or
	// once the output is closed and drained.
	Receive(ctx context.Context, timeout time.Duration) (p domain.Packet, ok bool)
}
