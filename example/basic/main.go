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

const listenPort = 3334

// Runs the pipeline on loopback, publishes a protection trip and a regional
// alarm to it and prints what reaches the visualization output.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flow, err := gridflow.ConfFromConfig(gridflow.DefaultConfig())
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	flow.StreamIN(
		gridflow.StreamInListener("127.0.0.1", listenPort),
		gridflow.StreamInPriorities(map[string]int{"regional-alarm": 1}, 0),
	)

	go publish(ctx)

	err = flow.Run(ctx,
		gridflow.StreamOutCapacity(64, 256),
		gridflow.StreamOutVisualization(show, gridflow.TopicProtectionStart, gridflow.TopicRegionalAlarm),
	)
	if err != nil {
		log.Fatalf("runtime exited: %v", err)
	}
}

func show(p gridflow.Packet) {
	switch ev := p.(type) {
	case *gridflow.ProtectionStart:
		fmt.Printf("trip   relay=%s function=%s at %s\n", ev.RelayID, ev.Function, ev.Time.Format(time.RFC3339))
	case *gridflow.RegionalAlarm:
		fmt.Printf("alarm  region=%s events=%d %q\n", ev.RegionID, ev.EventCount, ev.Description)
	}
}

func publish(ctx context.Context) {
	// Give the listener a moment to bind.
	select {
	case <-ctx.Done():
		return
	case <-time.After(200 * time.Millisecond):
	}

	pub, err := gridflow.NewPublisher(ctx, &gridflow.PublisherConfig{Addr: fmt.Sprintf("127.0.0.1:%d", listenPort)})
	if err != nil {
		log.Printf("publisher: %v", err)
		return
	}
	defer pub.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := pub.Publish(gridflow.TopicProtectionStart, map[string]any{
		"idIED":          "IED_C4",
		"funcaoProtecao": "50",
		"timestamp":      now,
		"medidas": map[string]any{
			"fase": "A", "tensao": 98.4, "corrente": 1840.0, "potRealW": 150000.0, "potApaVA": 181000.0,
			"potReatVAr": 101000.0, "angTensao": 12.0, "fatorP": 0.83, "freq": 59.7,
		},
	}); err != nil {
		log.Printf("publish trip: %v", err)
	}
	if err := pub.Publish(gridflow.TopicRegionalAlarm, map[string]any{
		"idCidade":             "Uberlandia",
		"nroEventosAssociados": 12000,
		"descricao":            "blackout",
		"timestamp":            now,
	}); err != nil {
		log.Printf("publish alarm: %v", err)
	}
}
