package sink

import (
	"context"
	"fmt"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

// NopStore accepts every batch and keeps nothing.
type NopStore struct{}

func (NopStore) Name() string { return "nop" }

func (NopStore) WriteBatch(context.Context, []domain.Packet) error { return nil }

// BatchFunc receives each batch handed to a CallbackStore.
type BatchFunc func(ctx context.Context, packets []domain.Packet) error

// CallbackStore adapts a function into a PacketStore.
type CallbackStore struct {
	name string
	fn   BatchFunc
}

func NewCallbackStore(name string, fn BatchFunc) *CallbackStore {
	if name == "" {
		name = "callback"
	}
	return &CallbackStore{name: name, fn: fn}
}

func (s *CallbackStore) Name() string { return s.name }

func (s *CallbackStore) WriteBatch(ctx context.Context, packets []domain.Packet) error {
	if s.fn == nil {
		return fmt.Errorf("callback store %q: nil handler", s.name)
	}
	if len(packets) == 0 {
		return nil
	}
	return s.fn(ctx, packets)
}

var (
	_ ports.PacketStore = NopStore{}
	_ ports.PacketStore = (*CallbackStore)(nil)
)
