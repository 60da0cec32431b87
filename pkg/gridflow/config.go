package gridflow

import (
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/feed"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/sink"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/udp"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/app/config"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy holds the timeouts, queue bound and batching thresholds.
	Policy = ports.Policy
	// ListenerConfig holds the UDP bind address and receive buffer size.
	ListenerConfig = udp.Config
	// OutputsConfig sizes the visualization and persistence channels.
	OutputsConfig = config.OutputsConfig
	// TimescaleConfig configures the optional database store.
	TimescaleConfig = config.TimescaleConfig
	// BreakerConfig tunes the circuit breaker in front of the database store.
	BreakerConfig = sink.BreakerConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// FeedConfig configures the WebSocket visualization feed.
	FeedConfig = feed.Config
	// LogConfig selects the log level and format.
	LogConfig = config.LogConfig
)

const (
	OnQueueFullDropLowest = ports.OnQueueFullDropLowest
	OnQueueFullReject     = ports.OnQueueFullReject
)

// LoadConfig loads YAML from disk, applies defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
