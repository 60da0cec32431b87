package gridflow

import (
	"context"

	base "github.com/matheusbucater/trab-final-str-modulo3/pkg/gridflow"
)

// Re-exported errors for convenience.
var (
	ErrAlreadyStarted     = base.ErrAlreadyStarted
	ErrShutdownTimeout    = base.ErrShutdownTimeout
	ErrChannelStoreClosed = base.ErrChannelStoreClosed
	ErrPublisherClosed    = base.ErrPublisherClosed

	ErrVisualizationClaimed = base.ErrVisualizationClaimed
)

// Type aliases so consumers can import the module root directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	ListenerConfig  = base.ListenerConfig
	OutputsConfig   = base.OutputsConfig
	TimescaleConfig = base.TimescaleConfig
	BreakerConfig   = base.BreakerConfig
	MetricsConfig   = base.MetricsConfig
	FeedConfig      = base.FeedConfig
	LogConfig       = base.LogConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Topic           = base.Topic
	Packet          = base.Packet
	RawFrame        = base.RawFrame
	PriorityClass   = base.PriorityClass
	FrameSource     = base.FrameSource
	FrameQueue      = base.FrameQueue
	Store           = base.Store
	PacketBatchSink = base.PacketBatchSink
	Observability   = base.Observability
	Field           = base.Field
	Publisher       = base.Publisher
	PublisherConfig = base.PublisherConfig

	TelemetrySample      = base.TelemetrySample
	TelemetryDiscrepancy = base.TelemetryDiscrepancy
	ProtectionStart      = base.ProtectionStart
	ProtectionEnd        = base.ProtectionEnd
	AccumulatedEvent     = base.AccumulatedEvent
	RegionalAlarm        = base.RegionalAlarm
	Measurement          = base.Measurement
)

const (
	TopicSample            = base.TopicSample
	TopicSampleDiscrepancy = base.TopicSampleDiscrepancy
	TopicProtectionStart   = base.TopicProtectionStart
	TopicProtectionEnd     = base.TopicProtectionEnd
	TopicAccumulatedEvent  = base.TopicAccumulatedEvent
	TopicRegionalAlarm     = base.TopicRegionalAlarm

	OnQueueFullDropLowest = base.OnQueueFullDropLowest
	OnQueueFullReject     = base.OnQueueFullReject
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

func ParseTopic(s string) (Topic, bool) {
	return base.ParseTopic(s)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInListener(bindAddress string, port int) StreamInOption {
	return base.StreamInListener(bindAddress, port)
}

func StreamInPriorities(classes map[string]int, fallback int) StreamInOption {
	return base.StreamInPriorities(classes, fallback)
}

func StreamInQueueBound(maxLen int, onFull string) StreamInOption {
	return base.StreamInQueueBound(maxLen, onFull)
}

func StreamInSource(src FrameSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamOutCapacity(visualization, persistence int) StreamOutOption {
	return base.StreamOutCapacity(visualization, persistence)
}

func StreamOutVisualization(fn func(Packet), topics ...Topic) StreamOutOption {
	return base.StreamOutVisualization(fn, topics...)
}

func StreamOutTimescale(connString, table string) StreamOutOption {
	return base.StreamOutTimescale(connString, table)
}

func StreamOutStore(s Store) StreamOutOption {
	return base.StreamOutStore(s)
}

func StreamOutCallback(name string, fn PacketBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src FrameSource) RuntimeOption {
	return base.WithSource(src)
}

func WithFrameQueue(q FrameQueue) RuntimeOption {
	return base.WithFrameQueue(q)
}

func WithStore(s Store) RuntimeOption {
	return base.WithStore(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

// Store adapters.
func NewCallbackStore(name string, fn PacketBatchSink) Store {
	return base.NewCallbackStore(name, fn)
}

func NewChannelStore(name string, buffer int) (Store, <-chan []Packet, func()) {
	return base.NewChannelStore(name, buffer)
}

func NopStore() Store {
	return base.NopStore()
}

// Publisher.
func NewPublisher(ctx context.Context, cfg *PublisherConfig) (*Publisher, error) {
	return base.NewPublisher(ctx, cfg)
}
