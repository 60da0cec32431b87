package ports

import (
	"context"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
)

// PacketStore persists batches of typed packets on a best-effort basis.
type PacketStore interface {
	WriteBatch(ctx context.Context, packets []domain.Packet) error
	Name() string
}
