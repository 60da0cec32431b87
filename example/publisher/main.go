package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3"
)

// Emits merging-unit samples and the occasional protection trip so a local
// runtime has something to dispatch.
func main() {
	addr := flag.String("addr", "127.0.0.1:3333", "destination host:port (broadcast allowed)")
	every := flag.Duration("every", 50*time.Millisecond, "sample period")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, err := gridflow.NewPublisher(ctx, &gridflow.PublisherConfig{Addr: *addr})
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}
	defer pub.Close()

	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			seq++
			if err := pub.Publish(gridflow.TopicSample, sample(seq, now)); err != nil {
				log.Printf("publish sample: %v", err)
			}
			if seq%200 == 0 {
				trip := map[string]any{
					"idIED":          "IED_C4",
					"funcaoProtecao": "50",
					"timestamp":      now.UTC().Format(time.RFC3339Nano),
					"medidas":        reading("A", now),
				}
				if err := pub.Publish(gridflow.TopicProtectionStart, trip); err != nil {
					log.Printf("publish trip: %v", err)
				}
			}
		}
	}
}

func sample(seq int64, now time.Time) map[string]any {
	return map[string]any{
		"idMU":        1,
		"idAtivo":     "IED_A3",
		"numPct":      seq,
		"timestamp":   now.UTC().Format(time.RFC3339Nano),
		"freqEnvioMS": 50,
		"medidas":     []map[string]any{reading("A", now), reading("B", now), reading("C", now)},
	}
}

func reading(phase string, now time.Time) map[string]any {
	v := 127 + rand.NormFloat64()
	i := 10 + rand.NormFloat64()
	return map[string]any{
		"fase":       phase,
		"tensao":     v,
		"corrente":   i,
		"potRealW":   v * i * 0.92,
		"potApaVA":   v * i,
		"potReatVAr": v * i * 0.39,
		"angTensao":  float64(now.UnixMilli() % 360),
		"fatorP":     0.92,
		"freq":       60.0,
	}
}
