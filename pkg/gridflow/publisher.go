package gridflow

import (
	"context"
	"fmt"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/udp"
)

// ErrPublisherClosed is returned when a closed Publisher is used.
var ErrPublisherClosed = udp.ErrPublisherClosed

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	// Addr is host:port; a broadcast address such as 255.255.255.255:3333 works.
	Addr         string
	WriteTimeout time.Duration
}

// applyDefaults fills in sane values so callers only override what they need.
func (c *PublisherConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = fmt.Sprintf("127.0.0.1:%d", udp.DefaultPort)
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = time.Second
	}
}

// Publisher sends datagrams in the wire format the runtime listens for. It
// is meant for simulators, replay tools and tests.
type Publisher struct {
	*udp.Publisher
}

func NewPublisher(ctx context.Context, cfg *PublisherConfig) (*Publisher, error) {
	if cfg == nil {
		cfg = &PublisherConfig{}
	}
	cfg.applyDefaults()
	p, err := udp.NewPublisher(ctx, cfg.Addr, cfg.WriteTimeout)
	if err != nil {
		return nil, err
	}
	return &Publisher{Publisher: p}, nil
}
