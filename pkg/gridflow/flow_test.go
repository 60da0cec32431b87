package gridflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestStreamBuilderShapesIngressAndOutputs(t *testing.T) {
	cfg := testConfig(t)
	flow, err := ConfFromConfig(cfg, WithFlowOptions(WithObservability(&stubObservability{})))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	src := &stubSource{}
	store := &stubStore{}
	rt, err := flow.
		StreamIN(
			StreamInSource(src),
			StreamInPriorities(map[string]int{"regional-alarm": 1, "99/1": 2}, 7),
			StreamInQueueBound(10, OnQueueFullReject),
		).
		StreamOUT(
			StreamOutStore(store),
			StreamOutCapacity(3, 5),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}

	if rt.source != src || rt.store != store {
		t.Fatalf("expected custom source and store to be wired")
	}
	classes := rt.cfg.PriorityMap()
	if got := classes.Class(TopicRegionalAlarm); got != 1 {
		t.Fatalf("expected regional alarm in class 1, got %d", got)
	}
	if got := classes.Class(TopicSample); got != 2 {
		t.Fatalf("expected sample in class 2, got %d", got)
	}
	if got := classes.Class(TopicProtectionStart); got != 1 {
		t.Fatalf("expected unlisted topic to keep its default class, got %d", got)
	}
	if got := classes.Class(Topic("77/7")); got != 7 {
		t.Fatalf("expected fallback class 7, got %d", got)
	}
	if rt.cfg.Policy.MaxQueueLen != 10 || rt.cfg.Policy.OnQueueFull != OnQueueFullReject {
		t.Fatalf("unexpected queue policy %+v", rt.cfg.Policy)
	}
	if rt.vis.Cap() != 3 || rt.per.Cap() != 5 {
		t.Fatalf("expected output capacities 3 and 5, got %d and %d", rt.vis.Cap(), rt.per.Cap())
	}
}

func TestStreamOptionsRejectInvalidInput(t *testing.T) {
	cases := map[string]struct {
		in  []StreamInOption
		out []StreamOutOption
	}{
		"unknown topic":  {in: []StreamInOption{StreamInPriorities(map[string]int{"bogus": 1}, 0)}},
		"zero class":     {in: []StreamInOption{StreamInPriorities(map[string]int{"sample": 0}, 0)}},
		"queue policy":   {in: []StreamInOption{StreamInQueueBound(10, "block")}},
		"listener port":  {in: []StreamInOption{StreamInListener("127.0.0.1", 70000)}},
		"nil source":     {in: []StreamInOption{StreamInSource(nil)}},
		"zero capacity":  {out: []StreamOutOption{StreamOutCapacity(0, 10)}},
		"nil handler":    {out: []StreamOutOption{StreamOutVisualization(nil)}},
		"nil callback":   {out: []StreamOutOption{StreamOutCallback("x", nil)}},
		"empty database": {out: []StreamOutOption{StreamOutTimescale("", "")}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			flow, err := ConfFromConfig(testConfig(t))
			if err != nil {
				t.Fatalf("ConfFromConfig returned error: %v", err)
			}
			if _, err := flow.StreamIN(tc.in...).StreamOUT(tc.out...); err == nil {
				t.Fatalf("expected StreamOUT to fail")
			}
		})
	}
}

func TestStreamOutVisualizationConflictsWithFeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feed.Enabled = true
	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	_, err = flow.StreamOUT(StreamOutVisualization(func(Packet) {}))
	if !errors.Is(err, ErrVisualizationClaimed) {
		t.Fatalf("expected ErrVisualizationClaimed, got %v", err)
	}
}

func TestFlowRunFeedsVisualizationHandler(t *testing.T) {
	src := &stubSource{frames: []*RawFrame{
		stubFrame(TopicProtectionEnd, 1, 1, `{"idIED":"IED_C4","funcaoProtecao":"50","timestamp":"2025-03-01T10:00:01Z"}`),
		stubFrame(TopicRegionalAlarm, 4, 2, `{"idCidade":"Araguari","timestamp":"2025-03-01T10:00:00Z","nroEventosAssociados":3,"descricao":"falta"}`),
	}}
	flow, err := ConfFromConfig(testConfig(t), WithFlowOptions(WithObservability(&stubObservability{})))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu  sync.Mutex
		got []Packet
	)
	err = flow.StreamIN(StreamInSource(src)).Run(ctx,
		StreamOutCallback("noop", func(context.Context, []Packet) error { return nil }),
		StreamOutVisualization(func(p Packet) {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
			cancel()
		}, TopicRegionalAlarm),
	)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected exactly the regional alarm, got %d packets", len(got))
	}
	alarm, ok := got[0].(*RegionalAlarm)
	if !ok || alarm.RegionID != "Araguari" {
		t.Fatalf("unexpected packet %#v", got[0])
	}
}

func TestFlowRunReturnsWhenStartFails(t *testing.T) {
	openErr := errors.New("device busy")
	flow, err := ConfFromConfig(testConfig(t), WithFlowOptions(WithObservability(&stubObservability{})))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- flow.StreamIN(StreamInSource(&failingSource{err: openErr})).
			Run(context.Background(), StreamOutVisualization(func(Packet) {}))
	}()

	select {
	case err := <-done:
		if !errors.Is(err, openErr) {
			t.Fatalf("expected open error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after a failed start")
	}
}

func TestConfLoadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridflow.yaml")
	raw := []byte(`
listener:
  bind_address: 127.0.0.1
  port: 4444
priorities:
  regional-alarm: 1
metrics:
  addr: 127.0.0.1:0
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flow, err := Conf(path, WithFlowOptions(WithObservability(&stubObservability{})))
	if err != nil {
		t.Fatalf("Conf returned error: %v", err)
	}
	cfg := flow.Config()
	if cfg.Listener.Port != 4444 {
		t.Fatalf("expected port 4444, got %d", cfg.Listener.Port)
	}
	if got := cfg.PriorityMap().Class(TopicRegionalAlarm); got != 1 {
		t.Fatalf("expected regional alarm override to class 1, got %d", got)
	}
	if len(flow.opts) != 1 {
		t.Fatalf("expected flow option to be recorded")
	}

	if _, err := Conf(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

type failingSource struct {
	stubSource
	err error
}

func (s *failingSource) Open() error { return s.err }
