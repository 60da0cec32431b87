package ports

import "github.com/matheusbucater/trab-final-str-modulo3/internal/domain"

type Observability interface {
	LogDebug(msg string, fields ...Field)
	LogInfo(msg string, fields ...Field)
	LogWarn(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	// IncCounter adds v to the named counter. Fields become label values
	// when the metric is labelled.
	IncCounter(name string, v float64, fields ...Field)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64, fields ...Field)

	RecordRejected(f *domain.RawFrame, err error)
}

type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field { return Field{Key: key, Value: value} }
