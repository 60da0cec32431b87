package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3"
)

// Consumes the visualization output directly instead of the WebSocket feed
// and forwards persistence batches through a channel store.
func main() {
	cfg, err := gridflow.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Feed.Enabled = false

	store, batches, closeBatches := gridflow.NewChannelStore("fanout", 32)
	defer closeBatches()

	rt, err := gridflow.NewRuntime(cfg, gridflow.WithStore(store))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go alarmPanel(rt.Visualization())
	go persistWorker("archive", batches)

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func alarmPanel(packets <-chan gridflow.Packet) {
	for p := range packets {
		switch pkt := p.(type) {
		case *gridflow.ProtectionStart:
			fmt.Printf("TRIP   relay=%s function=%s\n", pkt.RelayID, pkt.Function)
		case *gridflow.ProtectionEnd:
			fmt.Printf("RESET  relay=%s function=%s\n", pkt.RelayID, pkt.Function)
		case *gridflow.RegionalAlarm:
			fmt.Printf("ALARM  region=%s events=%d %s\n", pkt.RegionID, pkt.EventCount, pkt.Description)
		}
	}
}

func persistWorker(name string, batches <-chan []gridflow.Packet) {
	for batch := range batches {
		fmt.Printf("[%s] forwarding %d packets at %s\n", name, len(batch), time.Now().Format(time.RFC3339))
	}
}
