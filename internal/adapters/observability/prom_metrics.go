package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

const (
	FramesReceived    = "gridflow_frames_received_total"
	FramesDiscarded   = "gridflow_frames_discarded_total"
	SocketErrors      = "gridflow_socket_errors_total"
	PacketsDispatched = "gridflow_packets_dispatched_total"
	PacketsRejected   = "gridflow_packets_rejected_total"
	OutputDropped     = "gridflow_output_dropped_total"
	StoreWritten      = "gridflow_store_written_total"
	StoreFailed       = "gridflow_store_failed_total"
	QueueLength       = "gridflow_queue_length"
	OutputLength      = "gridflow_output_length"
	DispatchLatency   = "gridflow_dispatch_latency_seconds"
	StoreLatency      = "gridflow_store_latency_seconds"
)

type labelledCounter struct {
	vec    *prometheus.CounterVec
	labels []string
}

type labelledGauge struct {
	vec    *prometheus.GaugeVec
	labels []string
}

type PromObs struct {
	logger   *slog.Logger
	counters map[string]labelledCounter
	gauges   map[string]labelledGauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pipeline metrics on reg and logs through logger.
// A nil reg falls back to prometheus.DefaultRegisterer; a nil logger discards.
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	counter := func(name, help string, labels ...string) labelledCounter {
		return labelledCounter{
			vec:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels),
			labels: labels,
		}
	}
	gauge := func(name, help string, labels ...string) labelledGauge {
		return labelledGauge{
			vec:    prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels),
			labels: labels,
		}
	}

	counters := map[string]labelledCounter{
		FramesReceived:    counter(FramesReceived, "Datagrams decoded and queued, by topic.", "topic"),
		FramesDiscarded:   counter(FramesDiscarded, "Datagrams dropped before or at the queue, by reason.", "reason"),
		SocketErrors:      counter(SocketErrors, "Socket receive errors other than timeouts."),
		PacketsDispatched: counter(PacketsDispatched, "Packets classified and fanned out, by topic.", "topic"),
		PacketsRejected:   counter(PacketsRejected, "Frames that failed classification, by reason.", "reason"),
		OutputDropped:     counter(OutputDropped, "Deliveries dropped because an output was full.", "output"),
		StoreWritten:      counter(StoreWritten, "Packets written by the persistence store."),
		StoreFailed:       counter(StoreFailed, "Packets lost to persistence store failures."),
	}
	gauges := map[string]labelledGauge{
		QueueLength:  gauge(QueueLength, "Frames waiting in the priority queue."),
		OutputLength: gauge(OutputLength, "Packets buffered in each output channel.", "output"),
	}
	dispatch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    DispatchLatency,
		Help:    "Latency from datagram receipt to fan-out.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
	store := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    StoreLatency,
		Help:    "Duration of persistence batch writes.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	for _, c := range counters {
		reg.MustRegister(c.vec)
	}
	for _, g := range gauges {
		reg.MustRegister(g.vec)
	}
	reg.MustRegister(dispatch, store)

	return &PromObs{
		logger:   logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			DispatchLatency: dispatch,
			StoreLatency:    store,
		},
	}
}

// Logger exposes the underlying structured logger.
func (p *PromObs) Logger() *slog.Logger { return p.logger }

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	p.log(slog.LevelDebug, msg, nil, fields)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log(slog.LevelInfo, msg, nil, fields)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.log(slog.LevelWarn, msg, nil, fields)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log(slog.LevelError, msg, err, fields)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log(LevelCritical, msg, err, fields)
}

func (p *PromObs) log(level slog.Level, msg string, err error, fields []ports.Field) {
	ctx := context.Background()
	if !p.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields)+1)
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	p.logger.LogAttrs(ctx, level, msg, attrs...)
}

func (p *PromObs) IncCounter(name string, v float64, fields ...ports.Field) {
	c, ok := p.counters[name]
	if !ok {
		return
	}
	if m, err := c.vec.GetMetricWith(labelsFor(c.labels, fields)); err == nil {
		m.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64, fields ...ports.Field) {
	g, ok := p.gauges[name]
	if !ok {
		return
	}
	if m, err := g.vec.GetMetricWith(labelsFor(g.labels, fields)); err == nil {
		m.Set(v)
	}
}

func (p *PromObs) RecordRejected(f *domain.RawFrame, err error) {
	p.IncCounter(PacketsRejected, 1, ports.F("reason", RejectReason(err)))
	if f == nil {
		p.LogWarn("frame_rejected", ports.F("error", fmt.Sprint(err)))
		return
	}
	p.LogWarn("frame_rejected",
		ports.F("id", f.ID.String()),
		ports.F("topic", string(f.Topic)),
		ports.F("priority", int(f.Priority())),
		ports.F("seq", f.Seq()),
		ports.F("from", f.From),
		ports.F("error", fmt.Sprint(err)),
	)
}

// RejectReason maps classifier and decoder errors to a bounded label value.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownTopic):
		return "unknown_topic"
	case errors.Is(err, domain.ErrSchema):
		return "schema"
	case errors.Is(err, domain.ErrInvalidEncoding):
		return "invalid_encoding"
	case errors.Is(err, domain.ErrMalformedFrame):
		return "malformed"
	default:
		return "other"
	}
}

func labelsFor(names []string, fields []ports.Field) prometheus.Labels {
	labels := make(prometheus.Labels, len(names))
	for _, n := range names {
		labels[n] = ""
	}
	for _, f := range fields {
		if _, ok := labels[f.Key]; ok {
			labels[f.Key] = fmt.Sprint(f.Value)
		}
	}
	return labels
}

var _ ports.Observability = (*PromObs)(nil)
