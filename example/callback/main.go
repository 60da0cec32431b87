package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/pkg/gridflow"
)

func main() {
	flow, err := gridflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, batch []gridflow.Packet) error {
		for _, p := range batch {
			fmt.Printf("%s topic=%s source=%s\n",
				p.Timestamp().Format(time.RFC3339Nano),
				p.Topic(),
				p.Source(),
			)
		}
		return nil
	}

	if err := flow.Run(ctx, gridflow.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
