package pipeline

import (
	"context"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

const defaultPollTimeout = 500 * time.Millisecond

// RunDispatchPipeline pops frames in priority order, classifies each one and
// offers the packet to every output. It returns nil once ctx is cancelled; a
// frame already popped is always finished first.
func RunDispatchPipeline(ctx context.Context, q ports.FrameQueue, outputs []ports.Output, pol ports.Policy, obs ports.Observability) error {
	poll := pol.PollTimeout
	if poll <= 0 {
		poll = defaultPollTimeout
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		f, ok := q.Pop(ctx, poll)
		if !ok {
			continue
		}
		dispatchFrame(f, outputs, obs)
	}
}

func dispatchFrame(f *domain.RawFrame, outputs []ports.Output, obs ports.Observability) bool {
	pkt, err := domain.Classify(f)
	if err != nil {
		obs.RecordRejected(f, err)
		return false
	}

	for _, out := range outputs {
		if out.TrySend(pkt) {
			continue
		}
		obs.IncCounter("gridflow_output_dropped_total", 1, ports.F("output", out.Name()))
		obs.LogWarn("output_full_drop",
			ports.F("output", out.Name()),
			ports.F("topic", string(f.Topic)),
			ports.F("seq", f.Seq()))
	}

	obs.IncCounter("gridflow_packets_dispatched_total", 1, ports.F("topic", f.Topic.Name()))
	obs.ObserveLatency("gridflow_dispatch_latency_seconds", time.Since(f.ReceivedAt).Seconds())
	obs.LogDebug("packet_dispatched",
		ports.F("id", f.ID.String()),
		ports.F("topic", string(f.Topic)),
		ports.F("source", pkt.Source()),
		ports.F("priority", int(f.Priority())),
		ports.F("seq", f.Seq()))
	return true
}
