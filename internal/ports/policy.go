package ports

import "time"

const (
	OnQueueFullDropLowest = "drop_lowest_priority"
	OnQueueFullReject     = "reject"
)

type Policy struct {
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
	ErrorPause     time.Duration `yaml:"error_pause"`

	MaxQueueLen int    `yaml:"max_queue_len"` // 0 means unbounded
	OnQueueFull string `yaml:"on_queue_full"` // "drop_lowest_priority", "reject"

	MaxBatchSize  int           `yaml:"max_batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}
