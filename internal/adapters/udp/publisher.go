package udp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
)

// ErrPublisherClosed is returned by Send after Close.
var ErrPublisherClosed = errors.New("udp publisher: closed")

const defaultWriteTimeout = time.Second

// Publisher emits JSON datagrams in the wire format the Listener accepts.
// Broadcast destinations work because the socket is opened with SO_BROADCAST.
type Publisher struct {
	addr         string
	writeTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewPublisher(ctx context.Context, addr string, writeTimeout time.Duration) (*Publisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("udp publisher: address is required")
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	d := net.Dialer{Control: setSocketOptions}
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %s: %w", addr, err)
	}
	return &Publisher{addr: addr, writeTimeout: writeTimeout, conn: conn}, nil
}

// Publish encodes fields as one JSON object and stamps the topic's wire
// literal under "URI" unless the caller already set it.
func (p *Publisher) Publish(topic domain.Topic, fields map[string]any) error {
	msg := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		msg[k] = v
	}
	if _, ok := msg["URI"]; !ok {
		msg["URI"] = string(topic)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return p.Send(raw)
}

// Send writes one datagram as is.
func (p *Publisher) Send(datagram []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return ErrPublisherClosed
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	if _, err := p.conn.Write(datagram); err != nil {
		return fmt.Errorf("send to %s: %w", p.addr, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
