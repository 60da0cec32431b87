package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

const (
	defaultClientBuffer = 64
	defaultWriteTimeout = 5 * time.Second
	pingInterval        = 30 * time.Second
	maxClientMessage    = 512
)

// Config controls the live visualization feed.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Path         string        `yaml:"path"`
	ClientBuffer int           `yaml:"client_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "/feed"
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = defaultClientBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
}

// Envelope is the JSON document pushed to feed clients.
type Envelope struct {
	Topic     string        `json:"topic"`
	Kind      string        `json:"kind"`
	Source    string        `json:"source"`
	Timestamp time.Time     `json:"timestamp"`
	Data      domain.Packet `json:"data"`
}

func NewEnvelope(p domain.Packet) Envelope {
	return Envelope{
		Topic:     string(p.Topic()),
		Kind:      p.Topic().Name(),
		Source:    p.Source(),
		Timestamp: p.Timestamp(),
		Data:      p,
	}
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	topics map[domain.Topic]bool
	done   chan struct{}
	once   sync.Once
}

func (c *client) wants(t domain.Topic) bool {
	return len(c.topics) == 0 || c.topics[t]
}

// Hub broadcasts packets to WebSocket clients. Each client has its own
// bounded buffer; a slow client misses messages and never stalls the hub.
type Hub struct {
	cfg      Config
	obs      ports.Observability
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

func NewHub(cfg Config, obs ports.Observability) *Hub {
	cfg.ApplyDefaults()
	return &Hub{
		cfg: cfg,
		obs: obs,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// Path is the HTTP route the hub should be mounted on.
func (h *Hub) Path() string { return h.cfg.Path }

// ServeHTTP upgrades the request. An optional ?topics= list of wire literals
// or aliases restricts what the client receives.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.obs.LogWarn("feed_upgrade_failed", ports.F("remote", r.RemoteAddr), ports.F("error", err.Error()))
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, h.cfg.ClientBuffer),
		topics: topics,
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.wg.Add(2)
	h.mu.Unlock()
	h.obs.LogInfo("feed_client_connected", ports.F("remote", r.RemoteAddr), ports.F("clients", n))

	go h.writePump(c)
	go h.readPump(c)
}

// Run broadcasts every packet from src until ctx is cancelled or src closes,
// then disconnects all clients.
func (h *Hub) Run(ctx context.Context, src <-chan domain.Packet) error {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-src:
			if !ok {
				return nil
			}
			h.Broadcast(p)
		}
	}
}

// Broadcast encodes p once and queues it for every interested client.
func (h *Hub) Broadcast(p domain.Packet) {
	msg, err := json.Marshal(NewEnvelope(p))
	if err != nil {
		h.obs.LogError("feed_encode_failed", err, ports.F("topic", string(p.Topic())))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(p.Topic()) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.obs.IncCounter("gridflow_output_dropped_total", 1, ports.F("output", "feed_client"))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only exists to notice disconnects and answer control frames.
func (h *Hub) readPump(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	c.conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	if ok {
		h.obs.LogDebug("feed_client_disconnected", ports.F("remote", c.conn.RemoteAddr().String()))
	}
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// closeAll refuses further upgrades and disconnects every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
		h.remove(c)
	}
	h.wg.Wait()
}

func parseTopics(raw string) (map[domain.Topic]bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[domain.Topic]bool)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, ok := domain.ParseTopic(part)
		if !ok {
			return nil, fmt.Errorf("unknown topic %q", part)
		}
		out[t] = true
	}
	return out, nil
}
