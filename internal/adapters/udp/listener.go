package udp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

const (
	DefaultPort           = 3333
	DefaultRecvBufferSize = 65536

	defaultReceiveTimeout = time.Second
	defaultErrorPause     = 500 * time.Millisecond
)

// ErrNotOpen is returned by Run when Open has not bound a socket.
var ErrNotOpen = errors.New("udp listener: socket not open")

// Config holds the socket parameters of the listener.
type Config struct {
	BindAddress    string `yaml:"bind_address"`
	Port           int    `yaml:"port"`
	RecvBufferSize int    `yaml:"recv_buffer_size"`
}

// ApplyDefaults fills the receive buffer size. Port 0 is left alone so the
// kernel can pick an ephemeral port.
func (c *Config) ApplyDefaults() {
	if c.RecvBufferSize <= 0 {
		c.RecvBufferSize = DefaultRecvBufferSize
	}
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RecvBufferSize <= 0 {
		return errors.New("recv_buffer_size must be > 0")
	}
	return nil
}

// Address is the host:port the listener binds.
func (c Config) Address() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// Sequencer hands out local sequence numbers starting at 1.
type Sequencer struct {
	n atomic.Int64
}

// Next increments the counter and returns the new value.
func (s *Sequencer) Next() int64 { return s.n.Add(1) }

// Listener receives JSON datagrams and turns them into prioritized raw frames.
type Listener struct {
	cfg        Config
	policy     ports.Policy
	priorities domain.PriorityMap
	obs        ports.Observability
	seq        Sequencer

	mu   sync.Mutex
	conn *net.UDPConn
}

func NewListener(cfg Config, pol ports.Policy, priorities domain.PriorityMap, obs ports.Observability) (*Listener, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, errors.New("udp listener: observability is required")
	}
	if pol.ReceiveTimeout <= 0 {
		pol.ReceiveTimeout = defaultReceiveTimeout
	}
	if pol.ErrorPause <= 0 {
		pol.ErrorPause = defaultErrorPause
	}
	return &Listener{cfg: cfg, policy: pol, priorities: priorities, obs: obs}, nil
}

// Open binds the socket with address reuse and broadcast enabled.
func (l *Listener) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}

	lc := net.ListenConfig{Control: setSocketOptions}
	pc, err := lc.ListenPacket(context.Background(), "udp", l.cfg.Address())
	if err != nil {
		return fmt.Errorf("bind udp %s: %w", l.cfg.Address(), err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return fmt.Errorf("bind udp %s: unexpected conn type %T", l.cfg.Address(), pc)
	}
	l.conn = conn
	l.obs.LogInfo("udp_listener_bound", ports.F("addr", conn.LocalAddr().String()))
	return nil
}

// Addr returns the bound address, or nil before Open.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run reads datagrams until ctx is cancelled. Each read waits at most the
// policy's receive timeout, so cancellation is noticed within one timeout.
func (l *Listener) Run(ctx context.Context, q ports.FrameQueue) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	buf := make([]byte, l.cfg.RecvBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		_ = conn.SetReadDeadline(time.Now().Add(l.policy.ReceiveTimeout))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("udp listener: %w", err)
			}
			l.obs.IncCounter("gridflow_socket_errors_total", 1)
			l.obs.LogError("udp_receive_failed", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.policy.ErrorPause):
			}
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		l.accept(payload, addr.String(), q)
	}
}

func (l *Listener) accept(payload []byte, from string, q ports.FrameQueue) {
	f, err := l.Decode(payload, from)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, domain.ErrInvalidEncoding) {
			reason = "invalid_encoding"
		}
		l.obs.IncCounter("gridflow_frames_discarded_total", 1, ports.F("reason", reason))
		l.obs.LogWarn("frame_discarded", ports.F("from", from), ports.F("bytes", len(payload)), ports.F("error", err.Error()))
		return
	}

	topic := f.Topic.Name()
	if !f.Topic.Known() {
		topic = "unknown"
	}
	l.obs.IncCounter("gridflow_frames_received_total", 1, ports.F("topic", topic))

	if !q.Put(f) {
		return
	}
	l.obs.LogDebug("frame_queued",
		ports.F("id", f.ID.String()),
		ports.F("topic", string(f.Topic)),
		ports.F("priority", int(f.Priority())),
		ports.F("seq", f.Seq()),
		ports.F("from", from),
	)
}

// Decode validates one datagram and builds its raw frame. The priority comes
// from the topic; the sequence is the sender's numPct when it is an integer,
// else the next local sequence.
func (l *Listener) Decode(payload []byte, from string) (*domain.RawFrame, error) {
	if !utf8.Valid(payload) {
		return nil, domain.ErrInvalidEncoding
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}
	if fields == nil {
		return nil, domain.ErrMalformedFrame
	}

	topic, _ := domain.ParseTopic(stringField(fields, "URI", "topic-identifier", "topic"))
	key := domain.PriorityKey{Class: l.priorities.Class(topic)}
	if seq, ok := senderSequence(fields["numPct"]); ok {
		key.Seq = seq
	} else {
		key.Seq = l.seq.Next()
	}

	return domain.NewRawFrame(topic, key, payload, fields, from, time.Now()), nil
}

// Close releases the socket. It is safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

func stringField(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return ""
}

func senderSequence(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}

var _ ports.FrameSource = (*Listener)(nil)
