package pipeline

import (
	"context"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

const (
	defaultFlushInterval = time.Second
	finalFlushTimeout    = 3 * time.Second
	drainWait            = time.Millisecond
)

// RunPersistPipeline drains the persistence output into batches and hands
// them to store. A batch is written when it reaches MaxBatchSize or when
// FlushInterval has passed since the last write. Failed batches are logged
// and dropped. On cancellation whatever is still buffered gets one final write.
func RunPersistPipeline(ctx context.Context, in ports.PacketReceiver, store ports.PacketStore, pol ports.Policy, obs ports.Observability) error {
	maxBatch := pol.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = 1
	}
	interval := pol.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	poll := pol.PollTimeout
	if poll <= 0 {
		poll = defaultPollTimeout
	}

	w := &batchWriter{store: store, obs: obs, max: maxBatch}
	lastFlush := time.Now()

	for {
		if ctx.Err() != nil {
			grace := pol.ShutdownGrace
			if grace <= 0 {
				grace = finalFlushTimeout
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), grace)
			w.drain(flushCtx, in)
			w.flush(flushCtx)
			cancel()
			return nil
		}

		wait := interval - time.Since(lastFlush)
		if wait > poll {
			wait = poll
		}
		if wait > 0 {
			if p, ok := in.Receive(ctx, wait); ok {
				w.add(ctx, p)
			}
		}

		if time.Since(lastFlush) >= interval {
			w.flush(ctx)
			lastFlush = time.Now()
		}
	}
}

type batchWriter struct {
	store ports.PacketStore
	obs   ports.Observability
	max   int
	batch []domain.Packet
}

func (w *batchWriter) add(ctx context.Context, p domain.Packet) {
	w.batch = append(w.batch, p)
	if len(w.batch) >= w.max {
		w.flush(ctx)
	}
}

// drain pulls packets that are already buffered without waiting for more.
func (w *batchWriter) drain(ctx context.Context, in ports.PacketReceiver) {
	for {
		p, ok := in.Receive(ctx, drainWait)
		if !ok {
			return
		}
		w.add(ctx, p)
	}
}

func (w *batchWriter) flush(ctx context.Context) {
	if len(w.batch) == 0 {
		return
	}
	batch := w.batch
	w.batch = nil

	start := time.Now()
	if err := w.store.WriteBatch(ctx, batch); err != nil {
		w.obs.IncCounter("gridflow_store_failed_total", float64(len(batch)))
		w.obs.LogError("store_write_failed", err,
			ports.F("store", w.store.Name()),
			ports.F("packets", len(batch)))
		return
	}
	w.obs.ObserveLatency("gridflow_store_latency_seconds", time.Since(start).Seconds())
	w.obs.IncCounter("gridflow_store_written_total", float64(len(batch)))
}
