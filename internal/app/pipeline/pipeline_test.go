package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/fanout"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/adapters/queue"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

const measurement = `{"fase":"%s","tensao":127.0,"corrente":5.0,"potRealW":600.0,"potApaVA":635.0,"potReatVAr":120.0,"angTensao":0.0,"fatorP":0.94,"freq":60.0}`

var seq int64

func rawFrame(pm domain.PriorityMap, topic string, payload string) *domain.RawFrame {
	t, _ := domain.ParseTopic(topic)
	seq++
	return domain.NewRawFrame(t, domain.PriorityKey{Class: pm.Class(t), Seq: seq}, []byte(payload), nil, "127.0.0.1:1", time.Now())
}

func samplePayload(device int) string {
	return fmt.Sprintf(`{"URI":"99/1","idMU":%d,"numPct":1,"timestamp":"2025-03-01T10:00:00Z","freqEnvioMS":50,"medidas":[%s,%s,%s]}`,
		device, fmt.Sprintf(measurement, "A"), fmt.Sprintf(measurement, "B"), fmt.Sprintf(measurement, "C"))
}

const (
	alarmPayload      = `{"URI":"CEP/Alarm","idCidade":"Uberlandia","timestamp":"2025-03-01T10:00:00Z","nroEventosAssociados":40,"descricao":"falta"}`
	protectionPayload = `{"URI":"200/1","idIED":"IED_C4","funcaoProtecao":"50","timestamp":"2025-03-01T10:00:00Z","medidas":{"fase":"A","tensao":1,"corrente":900,"potRealW":1,"potApaVA":1,"potReatVAr":1,"angTensao":1,"fatorP":1,"freq":60}}`
	accumulatedNoCount = `{"URI":"400/1","idIED":"IED_Z0","tipoEvento":"Subtensao","timestamp":"2025-03-01T10:00:00Z"}`
)

func runDispatcher(t *testing.T, q ports.FrameQueue, outputs []ports.Output, obs ports.Observability) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunDispatchPipeline(ctx, q, outputs, ports.Policy{PollTimeout: 20 * time.Millisecond}, obs)
	}()
	return cancel, done
}

func receive(t *testing.T, out *fanout.ChannelOutput) domain.Packet {
	t.Helper()
	p, ok := out.Receive(context.Background(), 2*time.Second)
	if !ok {
		t.Fatalf("expected a packet on %s", out.Name())
	}
	return p
}

func TestDispatchPopsMostUrgentFirst(t *testing.T) {
	pm := domain.DefaultPriorityMap()
	q := queue.NewPriorityQueue()
	q.Put(rawFrame(pm, "regional-alarm", alarmPayload))
	q.Put(rawFrame(pm, "protection-start", protectionPayload))

	vis := fanout.NewChannelOutput(fanout.Visualization, 8)
	cancel, done := runDispatcher(t, q, []ports.Output{vis}, &mockObs{})
	defer func() { cancel(); <-done }()

	if got := receive(t, vis).Topic(); got != domain.TopicProtectionStart {
		t.Fatalf("expected protection-start first, got %s", got)
	}
	if got := receive(t, vis).Topic(); got != domain.TopicRegionalAlarm {
		t.Fatalf("expected regional alarm second, got %s", got)
	}
}

func TestDispatchSampleReachesBothOutputs(t *testing.T) {
	pm := domain.DefaultPriorityMap()
	q := queue.NewPriorityQueue()
	q.Put(rawFrame(pm, "sample", samplePayload(7)))

	vis := fanout.NewChannelOutput(fanout.Visualization, 1)
	per := fanout.NewChannelOutput(fanout.Persistence, 1)
	cancel, done := runDispatcher(t, q, []ports.Output{vis, per}, &mockObs{})
	defer func() { cancel(); <-done }()

	for _, out := range []*fanout.ChannelOutput{vis, per} {
		sample, ok := receive(t, out).(*domain.TelemetrySample)
		if !ok {
			t.Fatalf("expected telemetry sample on %s", out.Name())
		}
		if sample.DeviceID != 7 || len(sample.Measurements) != 3 {
			t.Fatalf("unexpected sample on %s: %+v", out.Name(), sample)
		}
	}
}

func TestDispatchFullOutputDoesNotBlockOther(t *testing.T) {
	pm := domain.DefaultPriorityMap()
	vis := fanout.NewChannelOutput(fanout.Visualization, 1)
	per := fanout.NewChannelOutput(fanout.Persistence, 16)
	obs := &mockObs{}

	for i := 0; i < 5; i++ {
		if !dispatchFrame(rawFrame(pm, "99/1", samplePayload(i)), []ports.Output{vis, per}, obs) {
			t.Fatalf("frame %d should classify", i)
		}
	}

	if vis.Len() != 1 {
		t.Fatalf("saturated output should hold exactly its capacity, got %d", vis.Len())
	}
	if per.Len() != 5 {
		t.Fatalf("other output should receive every packet, got %d", per.Len())
	}
	if got := obs.counter("gridflow_output_dropped_total", "visualization"); got != 4 {
		t.Fatalf("expected 4 visualization drops, got %v", got)
	}
}

func TestDispatchDiscardsInvalidFrames(t *testing.T) {
	pm := domain.DefaultPriorityMap()
	q := queue.NewPriorityQueue()
	q.Put(rawFrame(pm, "accumulated-event", accumulatedNoCount))
	q.Put(rawFrame(pm, "77/7", `{"URI":"77/7"}`))
	q.Put(rawFrame(pm, "regional-alarm", alarmPayload))

	vis := fanout.NewChannelOutput(fanout.Visualization, 8)
	obs := &mockObs{}
	cancel, done := runDispatcher(t, q, []ports.Output{vis}, obs)

	if got := receive(t, vis).Topic(); got != domain.TopicRegionalAlarm {
		t.Fatalf("expected only the valid frame to be dispatched, got %s", got)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(obs.rejectedErrors()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	rejected := obs.rejectedErrors()
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejected frames, got %d", len(rejected))
	}
	var schemaErr *domain.SchemaError
	if !errors.As(rejected[0], &schemaErr) || schemaErr.Field != "nroEventosAcumulados" {
		t.Fatalf("expected missing count schema error first, got %v", rejected[0])
	}
	if !errors.Is(rejected[1], domain.ErrUnknownTopic) {
		t.Fatalf("expected unknown topic error, got %v", rejected[1])
	}
	if vis.Len() != 0 {
		t.Fatalf("no packet should be produced for invalid frames")
	}
}

func TestDispatchTopicMissingFromPriorityTableStillDelivered(t *testing.T) {
	pm := domain.NewPriorityMap(map[domain.Topic]domain.PriorityClass{domain.TopicProtectionStart: 1}, 7)
	f := rawFrame(pm, "regional-alarm", alarmPayload)
	if f.Priority() != 7 {
		t.Fatalf("expected fallback class 7, got %d", f.Priority())
	}

	vis := fanout.NewChannelOutput(fanout.Visualization, 1)
	if !dispatchFrame(f, []ports.Output{vis}, &mockObs{}) || vis.Len() != 1 {
		t.Fatalf("frame with fallback priority should still be delivered")
	}
}

func TestDispatchStopsWithinPollTimeout(t *testing.T) {
	q := queue.NewPriorityQueue()
	cancel, done := runDispatcher(t, q, nil, &mockObs{})

	time.Sleep(30 * time.Millisecond)
	start := time.Now()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("dispatcher took %s to stop", elapsed)
	}
}

type mockObs struct {
	mu       sync.Mutex
	counters map[string]float64
	rejected []error
	errs     []error
}

func (m *mockObs) LogDebug(string, ...ports.Field)           {}
func (m *mockObs) LogInfo(string, ...ports.Field)            {}
func (m *mockObs) LogWarn(string, ...ports.Field)            {}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) ObserveLatency(string, float64)            {}
func (m *mockObs) SetGauge(string, float64, ...ports.Field)  {}

func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

func (m *mockObs) IncCounter(name string, v float64, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	key := name
	for _, f := range fields {
		key += "|" + fmt.Sprint(f.Value)
	}
	m.counters[key] += v
}

func (m *mockObs) RecordRejected(_ *domain.RawFrame, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, err)
}

func (m *mockObs) counter(name string, labels ...string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := name
	for _, l := range labels {
		key += "|" + l
	}
	return m.counters[key]
}

func (m *mockObs) rejectedErrors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.rejected...)
}

func (m *mockObs) loggedErrors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errs...)
}
