package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/feed"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/sink"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/udp"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

type Config struct {
	Listener         udp.Config      `yaml:"listener"`
	Priorities       map[string]int  `yaml:"priorities"`
	FallbackPriority int             `yaml:"fallback_priority"`
	Policy           ports.Policy    `yaml:"policy"`
	Outputs          OutputsConfig   `yaml:"outputs"`
	Timescale        TimescaleConfig `yaml:"timescale"`
	Metrics          MetricsConfig   `yaml:"metrics"`
	Feed             feed.Config     `yaml:"feed"`
	Log              LogConfig       `yaml:"log"`
}

type OutputsConfig struct {
	VisualizationCapacity int `yaml:"visualization_capacity"`
	PersistenceCapacity   int `yaml:"persistence_capacity"`
}

// TimescaleConfig enables the database store when ConnString is set.
type TimescaleConfig struct {
	ConnString string             `yaml:"conn_string"`
	Table      string             `yaml:"table"`
	Breaker    sink.BreakerConfig `yaml:"breaker"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// An explicit listener.port of 0 survives and asks for an ephemeral port.
	cfg := Config{Listener: udp.Config{Port: udp.DefaultPort}}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := Config{Listener: udp.Config{Port: udp.DefaultPort}}
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values. The listener port is not among them: Load
// and Default seed it, and 0 means an ephemeral port.
func (c *Config) ApplyDefaults() {
	if c.FallbackPriority == 0 {
		c.FallbackPriority = int(domain.LowestUrgency)
	}
	if c.Policy.ReceiveTimeout == 0 {
		c.Policy.ReceiveTimeout = time.Second
	}
	if c.Policy.PollTimeout == 0 {
		c.Policy.PollTimeout = 500 * time.Millisecond
	}
	if c.Policy.ErrorPause == 0 {
		c.Policy.ErrorPause = 500 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = ports.OnQueueFullDropLowest
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.FlushInterval == 0 {
		c.Policy.FlushInterval = time.Second
	}
	if c.Policy.ShutdownGrace == 0 {
		c.Policy.ShutdownGrace = 3 * time.Second
	}
	if c.Outputs.VisualizationCapacity == 0 {
		c.Outputs.VisualizationCapacity = 1024
	}
	if c.Outputs.PersistenceCapacity == 0 {
		c.Outputs.PersistenceCapacity = 4096
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "grid_packets"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	c.Listener.ApplyDefaults()
	c.Feed.ApplyDefaults()
}

func (c *Config) Validate() error {
	if err := c.Listener.Validate(); err != nil {
		return fmt.Errorf("listener config: %w", err)
	}
	for topic, class := range c.Priorities {
		if _, ok := domain.ParseTopic(topic); !ok {
			return fmt.Errorf("priorities: unknown topic %q", topic)
		}
		if class < 1 {
			return fmt.Errorf("priorities: class for %q must be >= 1, got %d", topic, class)
		}
	}
	if c.FallbackPriority < 1 {
		return fmt.Errorf("fallback_priority must be >= 1, got %d", c.FallbackPriority)
	}
	switch c.Policy.OnQueueFull {
	case ports.OnQueueFullDropLowest, ports.OnQueueFullReject:
	default:
		return fmt.Errorf("policy.on_queue_full: unsupported value %q", c.Policy.OnQueueFull)
	}
	if c.Policy.MaxQueueLen < 0 {
		return fmt.Errorf("policy.max_queue_len must be >= 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	if c.Policy.ReceiveTimeout <= 0 || c.Policy.PollTimeout <= 0 {
		return fmt.Errorf("policy timeouts must be > 0")
	}
	if c.Outputs.VisualizationCapacity <= 0 || c.Outputs.PersistenceCapacity <= 0 {
		return fmt.Errorf("outputs: capacities must be > 0")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.Feed.Enabled && c.Feed.Path == "" {
		return fmt.Errorf("feed.path is required when the feed is enabled")
	}
	return nil
}

// PriorityMap builds the immutable topic table. Entries in Priorities
// override the built-in classes; the fallback is set independently.
func (c *Config) PriorityMap() domain.PriorityMap {
	classes := domain.DefaultPriorities()
	for name, class := range c.Priorities {
		if t, ok := domain.ParseTopic(name); ok {
			classes[t] = domain.PriorityClass(class)
		}
	}
	return domain.NewPriorityMap(classes, domain.PriorityClass(c.FallbackPriority))
}
