package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

// PriorityQueue is an in-memory queue that always yields the frame with the
// smallest priority key. Frames with identical keys leave in insertion order.
// It is unbounded unless built with WithCapacity.
type PriorityQueue struct {
	mu     sync.Mutex
	items  frameHeap
	nextID uint64

	cap     int
	onFull  string
	dropped func(f *domain.RawFrame, reason string)

	ready chan struct{}
}

// Option customizes a PriorityQueue.
type Option func(*PriorityQueue)

// WithCapacity bounds the queue to max frames. policy is one of
// ports.OnQueueFullDropLowest or ports.OnQueueFullReject; anything else is
// treated as drop-lowest.
func WithCapacity(max int, policy string) Option {
	return func(q *PriorityQueue) {
		q.cap = max
		q.onFull = policy
	}
}

// WithDropHandler registers fn to be called for every frame the queue sheds,
// whether it was the incoming frame or an evicted one.
func WithDropHandler(fn func(f *domain.RawFrame, reason string)) Option {
	return func(q *PriorityQueue) {
		q.dropped = fn
	}
}

func NewPriorityQueue(opts ...Option) *PriorityQueue {
	q := &PriorityQueue{
		onFull: ports.OnQueueFullDropLowest,
		ready:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Put inserts f without ever blocking. It returns false only when the queue
// is bounded, full, and f itself was shed.
func (q *PriorityQueue) Put(f *domain.RawFrame) bool {
	if f == nil {
		return false
	}

	q.mu.Lock()
	var evicted *domain.RawFrame
	if q.cap > 0 && len(q.items) >= q.cap {
		if q.onFull == ports.OnQueueFullReject {
			q.mu.Unlock()
			q.drop(f, "queue_full")
			return false
		}
		victim := q.lowestOldest()
		if victim < 0 || f.Priority() > q.items[victim].frame.Priority() {
			q.mu.Unlock()
			q.drop(f, "queue_full")
			return false
		}
		evicted = heap.Remove(&q.items, victim).(*entry).frame
	}
	q.nextID++
	heap.Push(&q.items, &entry{frame: f, order: q.nextID})
	q.mu.Unlock()

	if evicted != nil {
		q.drop(evicted, "evicted")
	}
	q.signal()
	return true
}

// Pop waits up to timeout for a frame. It returns false on timeout or when
// ctx is cancelled.
func (q *PriorityQueue) Pop(ctx context.Context, timeout time.Duration) (*domain.RawFrame, bool) {
	if f, ok := q.tryPop(); ok {
		return f, true
	}
	if timeout <= 0 {
		return nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-timer.C:
			return q.tryPop()
		case <-q.ready:
			if f, ok := q.tryPop(); ok {
				return f, true
			}
		}
	}
}

func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *PriorityQueue) tryPop() (*domain.RawFrame, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	e := heap.Pop(&q.items).(*entry)
	more := len(q.items) > 0
	q.mu.Unlock()

	// Wake another waiter if frames remain.
	if more {
		q.signal()
	}
	return e.frame, true
}

func (q *PriorityQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// lowestOldest returns the heap index of the oldest frame in the least
// urgent class present, or -1 when empty. Caller holds mu.
func (q *PriorityQueue) lowestOldest() int {
	victim := -1
	for i, e := range q.items {
		if victim < 0 {
			victim = i
			continue
		}
		v := q.items[victim]
		c, vc := e.frame.Priority(), v.frame.Priority()
		if c > vc || (c == vc && e.order < v.order) {
			victim = i
		}
	}
	return victim
}

func (q *PriorityQueue) drop(f *domain.RawFrame, reason string) {
	if q.dropped != nil {
		q.dropped(f, reason)
	}
}

type entry struct {
	frame *domain.RawFrame
	order uint64
}

type frameHeap []*entry

func (h frameHeap) Len() int { return len(h) }

func (h frameHeap) Less(i, j int) bool {
	a, b := h[i].frame.Key(), h[j].frame.Key()
	if a != b {
		return a.Less(b)
	}
	return h[i].order < h[j].order
}

func (h frameHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *frameHeap) Push(x any) {
	*h = append(*h, x.(*entry))
}

func (h *frameHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

var _ ports.FrameQueue = (*PriorityQueue)(nil)
