package sink

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 30 * time.Second
)

// BreakerConfig tunes the circuit breaker around a store.
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}

// BreakerStore stops calling a failing store after FailureThreshold
// consecutive errors and probes it again after RecoveryTimeout. While open,
// batches fail fast with gobreaker.ErrOpenState.
type BreakerStore struct {
	next ports.PacketStore
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next ports.PacketStore, cfg BreakerConfig, obs ports.Observability) *BreakerStore {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	if obs != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			obs.LogWarn("store_breaker_state",
				ports.F("store", name),
				ports.F("from", from.String()),
				ports.F("to", to.String()))
		}
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerStore) Name() string { return b.next.Name() }

func (b *BreakerStore) WriteBatch(ctx context.Context, packets []domain.Packet) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.WriteBatch(ctx, packets)
	})
	return err
}

// State reports the breaker state: closed, half-open or open.
func (b *BreakerStore) State() string { return b.cb.State().String() }

var _ ports.PacketStore = (*BreakerStore)(nil)
