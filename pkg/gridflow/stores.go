package gridflow

import (
	"context"
	"errors"
	"sync"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/sink"
)

// ErrChannelStoreClosed is returned when a channel store is written to after being closed.
var ErrChannelStoreClosed = errors.New("gridflow: channel store closed")

// PacketBatchSink is invoked with each batch drained from the persistence output.
type PacketBatchSink = sink.BatchFunc

// NewCallbackStore adapts a PacketBatchSink into a Store so callers can plug
// arbitrary functions without defining structs.
func NewCallbackStore(name string, fn PacketBatchSink) Store {
	return sink.NewCallbackStore(name, fn)
}

// NopStore drains the persistence output without keeping anything.
func NopStore() Store {
	return sink.NopStore{}
}

// NewChannelStore exposes batches via a channel; it returns the store, the
// read-only channel, and a close function that the caller should invoke
// during shutdown. WriteBatch blocks until the batch is taken, the store is
// closed or ctx ends.
func NewChannelStore(name string, buffer int) (Store, <-chan []Packet, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Packet, buffer)
	s := &channelStore{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type channelStore struct {
	name   string
	ch     chan []Packet
	closed chan struct{}

	mu   sync.RWMutex
	once sync.Once
}

func (s *channelStore) WriteBatch(ctx context.Context, packets []Packet) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelStoreClosed
	default:
	}

	if len(packets) == 0 {
		return nil
	}

	batch := make([]Packet, len(packets))
	copy(batch, packets)

	select {
	case <-s.closed:
		return ErrChannelStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- batch:
		return nil
	}
}

func (s *channelStore) Name() string { return s.name }

func (s *channelStore) close() {
	s.once.Do(func() {
		close(s.closed)
		// wait for in-flight writers before closing the data channel
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
