package gridflow

import (
	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

// Topic identifies the kind of a datagram, as carried in its "URI" field.
type Topic = domain.Topic

const (
	TopicSample            = domain.TopicSample
	TopicSampleDiscrepancy = domain.TopicSampleDiscrepancy
	TopicProtectionStart   = domain.TopicProtectionStart
	TopicProtectionEnd     = domain.TopicProtectionEnd
	TopicAccumulatedEvent  = domain.TopicAccumulatedEvent
	TopicRegionalAlarm     = domain.TopicRegionalAlarm
)

// Packet is a classified record delivered to the outputs.
type Packet = domain.Packet

type (
	Measurement          = domain.Measurement
	Phase                = domain.Phase
	TelemetrySample      = domain.TelemetrySample
	TelemetryDiscrepancy = domain.TelemetryDiscrepancy
	ProtectionStart      = domain.ProtectionStart
	ProtectionEnd        = domain.ProtectionEnd
	AccumulatedEvent     = domain.AccumulatedEvent
	RegionalAlarm        = domain.RegionalAlarm
)

// RawFrame is a decoded datagram waiting in the priority queue.
type RawFrame = domain.RawFrame

// PriorityClass orders frames; 1 is the most urgent.
type PriorityClass = domain.PriorityClass

// FrameSource produces raw frames (the UDP listener by default).
type FrameSource = ports.FrameSource

// FrameQueue is the priority queue between the source and the dispatcher.
type FrameQueue = ports.FrameQueue

// Store persists batches of packets drained from the persistence output.
type Store = ports.PacketStore

// Observability emits logs and metrics for every stage of the pipeline.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// ParseTopic resolves a wire literal or alias such as "200/1" or "protection-start".
func ParseTopic(s string) (Topic, bool) {
	return domain.ParseTopic(s)
}
