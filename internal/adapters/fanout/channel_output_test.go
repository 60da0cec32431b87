package fanout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
)

func alarm(region string) domain.Packet {
	return &domain.RegionalAlarm{RegionID: region, Time: time.Now()}
}

func TestChannelOutputDropsWhenFull(t *testing.T) {
	out := NewChannelOutput(Visualization, 2)

	if !out.TrySend(alarm("a")) || !out.TrySend(alarm("b")) {
		t.Fatalf("expected sends within capacity to succeed")
	}

	done := make(chan bool, 1)
	go func() { done <- out.TrySend(alarm("c")) }()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected send to a full output to be dropped")
		}
	case <-time.After(time.Second):
		t.Fatal("TrySend blocked on a full output")
	}

	if out.Len() != 2 || out.Cap() != 2 {
		t.Fatalf("unexpected len/cap %d/%d", out.Len(), out.Cap())
	}
	if got := (<-out.C()).Source(); got != "a" {
		t.Fatalf("expected FIFO delivery, got %s", got)
	}
}

func TestChannelOutputReceive(t *testing.T) {
	out := NewChannelOutput(Persistence, 1)

	if _, ok := out.Receive(context.Background(), 10*time.Millisecond); ok {
		t.Fatalf("expected receive on empty output to time out")
	}

	out.TrySend(alarm("x"))
	p, ok := out.Receive(context.Background(), time.Second)
	if !ok || p.Source() != "x" {
		t.Fatalf("unexpected receive result %v %v", p, ok)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := out.Receive(ctx, time.Minute); ok {
		t.Fatalf("expected cancelled receive to fail")
	}
}

func TestChannelOutputCloseIsSafe(t *testing.T) {
	out := NewChannelOutput(Persistence, 8)
	out.TrySend(alarm("kept"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out.TrySend(alarm("race"))
			}
		}()
	}
	out.Close()
	out.Close()
	wg.Wait()

	if out.TrySend(alarm("late")) {
		t.Fatalf("expected send after close to fail")
	}

	var drained int
	for range out.C() {
		drained++
	}
	if drained == 0 {
		t.Fatalf("expected buffered packets to remain readable after close")
	}
}
