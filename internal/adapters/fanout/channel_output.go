package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

const (
	Visualization = "visualization"
	Persistence   = "persistence"
)

// ChannelOutput is a named, bounded packet channel with a single producer.
// Sends never block; a full buffer drops the delivery.
type ChannelOutput struct {
	name string
	ch   chan domain.Packet

	mu     sync.RWMutex
	closed bool
}

func NewChannelOutput(name string, capacity int) *ChannelOutput {
	if capacity < 1 {
		capacity = 1
	}
	return &ChannelOutput{name: name, ch: make(chan domain.Packet, capacity)}
}

func (o *ChannelOutput) Name() string { return o.name }

// TrySend reports false when the buffer is full or the output is closed.
func (o *ChannelOutput) TrySend(p domain.Packet) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return false
	}
	select {
	case o.ch <- p:
		return true
	default:
		return false
	}
}

// C is the consumer side. It is closed by Close once buffered packets drain.
func (o *ChannelOutput) C() <-chan domain.Packet { return o.ch }

// Receive waits up to timeout for a packet. ok is false on timeout, on
// cancellation, and once the output is closed and drained.
func (o *ChannelOutput) Receive(ctx context.Context, timeout time.Duration) (domain.Packet, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p, open := <-o.ch:
		return p, open
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (o *ChannelOutput) Len() int { return len(o.ch) }
func (o *ChannelOutput) Cap() int { return cap(o.ch) }

// Close stops further sends. It is safe to call concurrently with TrySend
// and more than once.
func (o *ChannelOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}

var _ ports.Output = (*ChannelOutput)(nil)

var _ ports.PacketReceiver = (*ChannelOutput)(nil)
