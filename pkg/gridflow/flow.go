package gridflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
)

// ErrVisualizationClaimed is returned when a visualization handler is
// installed while the WebSocket feed already drains that output.
var ErrVisualizationClaimed = errors.New("gridflow: visualization output is drained by the feed hub")

// Flow builds a Runtime in the order data travels. Conf loads the
// configuration, StreamIN shapes ingress (socket, priority table, queue bound)
// and StreamOUT shapes the visualization and persistence outputs.
//
// Options edit the Config held by the Flow. The first invalid option is
// remembered and returned by StreamOUT.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
	view *viewer
	err  error
}

// viewer consumes the visualization output on behalf of a callback.
type viewer struct {
	handle func(Packet)
	topics map[Topic]bool
}

func (v *viewer) consume(packets <-chan Packet) {
	for p := range packets {
		if len(v.topics) == 0 || v.topics[p.Topic()] {
			v.handle(p)
		}
	}
}

type (
	// FlowOption applies runtime-level overrides when the Flow is created.
	FlowOption func(*Flow)
	// StreamInOption shapes how frames enter the pipeline.
	StreamInOption func(*Flow) error
	// StreamOutOption shapes the two outputs.
	StreamOutOption func(*Flow) error
)

// Conf reads the YAML configuration at path and starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from cfg, which later options modify in place.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, errors.New("gridflow: config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// WithFlowOptions passes RuntimeOption values through to NewRuntime.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		f.opts = append(f.opts, opts...)
	}
}

// Config returns the configuration the Flow will build from.
func (f *Flow) Config() *Config { return f.cfg }

// StreamIN applies ingress options.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	for _, opt := range opts {
		f.apply(opt)
	}
	return f
}

// StreamOUT applies output options and builds the Runtime.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	for _, opt := range opts {
		f.apply(opt)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.view != nil && f.cfg.Feed.Enabled {
		return nil, ErrVisualizationClaimed
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime, feeds the visualization handler if one is set, and
// blocks until ctx is cancelled. The handler has seen every delivered packet
// by the time Run returns.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	if f.view == nil {
		return rt.Run(ctx)
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		f.view.consume(rt.Visualization())
	}()

	err = rt.Run(ctx)
	// Closes the outputs when Start failed; otherwise Run already did.
	_ = rt.Shutdown(context.Background())
	<-drained
	return err
}

func (f *Flow) apply(opt func(*Flow) error) {
	if opt == nil || f.err != nil {
		return
	}
	f.err = opt(f)
}

// StreamInListener sets the UDP bind address and port. Port 0 picks an
// ephemeral port.
func StreamInListener(bindAddress string, port int) StreamInOption {
	return func(f *Flow) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("gridflow: listener port %d out of range", port)
		}
		f.cfg.Listener.BindAddress = bindAddress
		f.cfg.Listener.Port = port
		return nil
	}
}

// StreamInPriorities overrides the class of the listed topics; unlisted known
// topics keep their default class. Keys are wire literals or aliases. A
// fallback above zero sets the class given to unrecognised topics.
func StreamInPriorities(classes map[string]int, fallback int) StreamInOption {
	return func(f *Flow) error {
		table := make(map[string]int, len(classes))
		for name, class := range classes {
			topic, ok := domain.ParseTopic(name)
			if !ok {
				return fmt.Errorf("gridflow: priorities: unknown topic %q", name)
			}
			if class < 1 {
				return fmt.Errorf("gridflow: priorities: class for %q must be >= 1, got %d", name, class)
			}
			table[string(topic)] = class
		}
		f.cfg.Priorities = table
		if fallback > 0 {
			f.cfg.FallbackPriority = fallback
		}
		return nil
	}
}

// StreamInQueueBound caps the priority queue at maxLen frames and picks what
// happens to a frame arriving at a full queue.
func StreamInQueueBound(maxLen int, onFull string) StreamInOption {
	return func(f *Flow) error {
		switch onFull {
		case OnQueueFullDropLowest, OnQueueFullReject:
		default:
			return fmt.Errorf("gridflow: unsupported queue overflow policy %q", onFull)
		}
		f.cfg.Policy.MaxQueueLen = maxLen
		f.cfg.Policy.OnQueueFull = onFull
		return nil
	}
}

// StreamInSource replaces the UDP listener, e.g. with a replay source.
func StreamInSource(src FrameSource) StreamInOption {
	return func(f *Flow) error {
		if src == nil {
			return errors.New("gridflow: nil frame source")
		}
		f.opts = append(f.opts, WithSource(src))
		return nil
	}
}

// StreamOutCapacity sizes the visualization and persistence buffers. A full
// buffer drops that output's copy without delaying the other.
func StreamOutCapacity(visualization, persistence int) StreamOutOption {
	return func(f *Flow) error {
		if visualization < 1 || persistence < 1 {
			return fmt.Errorf("gridflow: output capacities must be >= 1, got %d and %d", visualization, persistence)
		}
		f.cfg.Outputs.VisualizationCapacity = visualization
		f.cfg.Outputs.PersistenceCapacity = persistence
		return nil
	}
}

// StreamOutVisualization hands every visualization packet to fn, optionally
// restricted to topics. fn runs on a single goroutine; while it is busy the
// visualization buffer fills and later packets are dropped from it.
func StreamOutVisualization(fn func(Packet), topics ...Topic) StreamOutOption {
	return func(f *Flow) error {
		if fn == nil {
			return errors.New("gridflow: nil visualization handler")
		}
		v := &viewer{handle: fn}
		if len(topics) > 0 {
			v.topics = make(map[Topic]bool, len(topics))
			for _, t := range topics {
				v.topics[t] = true
			}
		}
		f.view = v
		return nil
	}
}

// StreamOutTimescale persists batches to a TimescaleDB hypertable behind the
// circuit breaker. An empty table keeps the configured one.
func StreamOutTimescale(connString, table string) StreamOutOption {
	return func(f *Flow) error {
		if connString == "" {
			return errors.New("gridflow: timescale connection string is required")
		}
		f.cfg.Timescale.ConnString = connString
		if table != "" {
			f.cfg.Timescale.Table = table
		}
		return nil
	}
}

// StreamOutStore sends persistence batches to s.
func StreamOutStore(s Store) StreamOutOption {
	return func(f *Flow) error {
		if s == nil {
			return errors.New("gridflow: nil store")
		}
		f.opts = append(f.opts, WithStore(s))
		return nil
	}
}

// StreamOutCallback sends persistence batches to fn.
func StreamOutCallback(name string, fn PacketBatchSink) StreamOutOption {
	return func(f *Flow) error {
		if fn == nil {
			return errors.New("gridflow: nil batch callback")
		}
		f.opts = append(f.opts, WithStore(NewCallbackStore(name, fn)))
		return nil
	}
}
