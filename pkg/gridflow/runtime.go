package gridflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/fanout"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/feed"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/observability"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/queue"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/sink"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/udp"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/app/pipeline"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

var (
	// ErrAlreadyStarted is returned by Start on a runtime that is running or stopped.
	ErrAlreadyStarted = errors.New("gridflow: runtime already started")
	// ErrShutdownTimeout is joined into Shutdown's error when workers outlive the grace period.
	ErrShutdownTimeout = errors.New("gridflow: workers did not stop within the shutdown grace")
)

const gaugeInterval = time.Second

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        FrameSource
	queue         FrameQueue
	store         Store
	observability Observability
	registry      *prometheus.Registry
}

// WithSource replaces the UDP listener, e.g. with a replay or simulator source.
func WithSource(src FrameSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithFrameQueue injects a custom priority queue implementation.
func WithFrameQueue(q FrameQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithStore sets where the persistence output is written. It takes
// precedence over timescale.conn_string.
func WithStore(s Store) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRegistry serves /metrics from reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// Runtime wires listener → priority queue → dispatcher → outputs and owns the
// shutdown context shared by every worker.
type Runtime struct {
	cfg      *Config
	policy   ports.Policy
	obs      ports.Observability
	registry *prometheus.Registry
	source   ports.FrameSource
	queue    ports.FrameQueue
	store    ports.PacketStore
	vis      *fanout.ChannelOutput
	per      *fanout.ChannelOutput
	hub      *feed.Hub
	db       *sql.DB

	metricsSrv *http.Server
	metricsLn  net.Listener

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	runErr   error
	stopOnce sync.Once
	stopErr  error
}

// NewRuntime applies defaults to cfg, validates it and builds the default
// adapters (UDP listener, priority queue, no-op or Timescale store,
// Prometheus observability). Options override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	reg := overrides.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	obs := overrides.observability
	if obs == nil {
		logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		obs = observability.NewPromObs(reg, logger)
	}

	q := overrides.queue
	if q == nil {
		q = newFrameQueue(cfg.Policy, obs)
	}

	src := overrides.source
	if src == nil {
		l, err := udp.NewListener(cfg.Listener, cfg.Policy, cfg.PriorityMap(), obs)
		if err != nil {
			return nil, err
		}
		src = l
	}

	var (
		db    *sql.DB
		store ports.PacketStore
	)
	switch {
	case overrides.store != nil:
		store = overrides.store
	case cfg.Timescale.ConnString != "":
		var err error
		db, err = sql.Open("postgres", cfg.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		store = sink.NewBreakerStore(sink.NewTimescaleStore(db, cfg.Timescale.Table), cfg.Timescale.Breaker, obs)
	default:
		store = sink.NopStore{}
	}

	rt := &Runtime{
		cfg:      cfg,
		policy:   cfg.Policy,
		obs:      obs,
		registry: reg,
		source:   src,
		queue:    q,
		store:    store,
		vis:      fanout.NewChannelOutput(fanout.Visualization, cfg.Outputs.VisualizationCapacity),
		per:      fanout.NewChannelOutput(fanout.Persistence, cfg.Outputs.PersistenceCapacity),
		db:       db,
	}
	if cfg.Feed.Enabled {
		rt.hub = feed.NewHub(cfg.Feed, obs)
	}
	return rt, nil
}

func newFrameQueue(pol ports.Policy, obs ports.Observability) ports.FrameQueue {
	opts := []queue.Option{
		queue.WithDropHandler(func(f *domain.RawFrame, reason string) {
			obs.IncCounter("gridflow_frames_discarded_total", 1, ports.F("reason", reason))
			obs.LogWarn("queue_full_drop",
				ports.F("topic", string(f.Topic)),
				ports.F("priority", int(f.Priority())),
				ports.F("seq", f.Seq()),
				ports.F("reason", reason))
		}),
	}
	if pol.MaxQueueLen > 0 {
		opts = append(opts, queue.WithCapacity(pol.MaxQueueLen, pol.OnQueueFull))
	}
	return queue.NewPriorityQueue(opts...)
}

// Start binds the socket and the metrics server, then launches the workers.
// Bind failures are returned before any worker runs. Start does not block;
// use Run to block on a context instead.
func (e *Runtime) Start() error {
	if e == nil {
		return fmt.Errorf("runtime is nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}

	if err := e.source.Open(); err != nil {
		e.obs.LogCritical("source_open_failed", err)
		return err
	}
	if err := e.startMetrics(); err != nil {
		e.obs.LogCritical("metrics_listen_failed", err, ports.F("addr", e.cfg.Metrics.Addr))
		_ = e.source.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.source.Run(gctx, e.queue)
	})
	g.Go(func() error {
		return pipeline.RunDispatchPipeline(gctx, e.queue, []ports.Output{e.vis, e.per}, e.policy, e.obs)
	})
	g.Go(func() error {
		return pipeline.RunPersistPipeline(gctx, e.per, e.store, e.policy, e.obs)
	})
	if e.hub != nil {
		g.Go(func() error {
			return e.hub.Run(gctx, e.vis.C())
		})
	}
	g.Go(func() error {
		e.recordGauges(gctx, gaugeInterval)
		return nil
	})

	e.started = true
	e.cancel = cancel
	e.done = make(chan struct{})
	go func() {
		err := g.Wait()
		e.mu.Lock()
		e.runErr = err
		e.mu.Unlock()
		close(e.done)
	}()

	e.obs.LogInfo("runtime_started",
		ports.F("store", e.store.Name()),
		ports.F("metrics", e.metricsLn.Addr().String()),
		ports.F("feed", e.hub != nil))
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled or a worker
// fails, then shuts down gracefully.
func (e *Runtime) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-e.done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.policy.ShutdownGrace+2*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// Shutdown cancels the workers and waits up to the shutdown grace for them,
// then closes the socket, the outputs, the metrics server and the DB
// connection. It is safe to call more than once.
func (e *Runtime) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() {
		e.stopErr = e.shutdown(ctx)
	})
	return e.stopErr
}

func (e *Runtime) shutdown(ctx context.Context) error {
	var errs []error

	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.started = true
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		grace := time.NewTimer(e.policy.ShutdownGrace)
		select {
		case <-done:
			e.mu.Lock()
			if e.runErr != nil {
				errs = append(errs, e.runErr)
			}
			e.mu.Unlock()
		case <-grace.C:
			e.obs.LogWarn("shutdown_grace_exceeded", ports.F("grace", e.policy.ShutdownGrace.String()))
			errs = append(errs, ErrShutdownTimeout)
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
		grace.Stop()
	}

	if err := e.source.Close(); err != nil {
		errs = append(errs, err)
	}
	e.vis.Close()
	e.per.Close()

	if e.metricsSrv != nil {
		if err := e.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		e.obs.LogError("runtime_stopped", err)
	} else {
		e.obs.LogInfo("runtime_stopped")
	}
	return err
}

// Visualization is the consumer side of the visualization output. When the
// WebSocket feed is enabled the hub already drains it.
func (e *Runtime) Visualization() <-chan Packet {
	return e.vis.C()
}

// ListenAddr returns the bound UDP address, or nil before Start or when a
// custom source does not expose one.
func (e *Runtime) ListenAddr() net.Addr {
	if a, ok := e.source.(interface{ Addr() net.Addr }); ok {
		return a.Addr()
	}
	return nil
}

// MetricsAddr returns the bound address of the metrics server, or nil before Start.
func (e *Runtime) MetricsAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.metricsLn == nil {
		return nil
	}
	return e.metricsLn.Addr()
}

// QueueLen reports how many frames are waiting for the dispatcher.
func (e *Runtime) QueueLen() int {
	return e.queue.Len()
}

func (e *Runtime) startMetrics() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if e.hub != nil {
		mux.Handle(e.hub.Path(), e.hub)
	}

	ln, err := net.Listen("tcp", e.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", e.cfg.Metrics.Addr, err)
	}
	e.metricsLn = ln
	e.metricsSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := e.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.obs.LogError("metrics_server_exited", err)
		}
	}()
	return nil
}

func (e *Runtime) recordGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.obs.SetGauge("gridflow_queue_length", float64(e.queue.Len()))
			e.obs.SetGauge("gridflow_output_length", float64(e.vis.Len()), ports.F("output", e.vis.Name()))
			e.obs.SetGauge("gridflow_output_length", float64(e.per.Len()), ports.F("output", e.per.Name()))
		}
	}
}
