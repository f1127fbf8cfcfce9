package ews

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// nodeHeap orders nodes by priority descending, then sequence ascending.
type nodeHeap []*requestNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*requestNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	last := len(old) - 1
	n := old[last]
	old[last] = nil
	n.index = -1
	*h = old[:last]
	return n
}

var errSchedulerClosed = errors.New("connection closed")

// scheduler is the per-connection admission controller. It holds queued nodes
// and hands at most limit of them to the transport at a time. Completion
// sinks are never invoked while mu is held.
type scheduler struct {
	ctx   context.Context
	limit int
	out   chan<- *requestNode

	mu       sync.Mutex
	pending  nodeHeap
	inFlight map[*requestNode]struct{}
	seq      uint64
	closed   bool

	created     time.Time
	submitted   atomic.Int64
	completed   atomic.Int64
	failed      atomic.Int64
	cancelled   atomic.Int64
	maxInFlight atomic.Int64
}

// newScheduler creates a scheduler that dispatches into out. out must have
// capacity for limit nodes so dispatch never blocks under the lock.
func newScheduler(ctx context.Context, limit int, out chan<- *requestNode) *scheduler {
	return &scheduler{
		ctx:      ctx,
		limit:    limit,
		out:      out,
		inFlight: make(map[*requestNode]struct{}, limit),
		created:  time.Now(),
	}
}

// enqueue inserts n by priority and immediately attempts dispatch.
func (s *scheduler) enqueue(n *requestNode) {
	s.submitted.Add(1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.cancelled.Add(1)
		n.finish(newCancelledError(n.operation, errSchedulerClosed))
		return
	}
	if n.cancelled() {
		n.state = stateDone
		s.mu.Unlock()
		s.cancelled.Add(1)
		n.finish(newCancelledError(n.operation, context.Cause(n.ctx)))
		return
	}

	s.seq++
	n.seq = s.seq
	n.state = stateQueued
	n.enqueued = time.Now()
	heap.Push(&s.pending, n)
	n.stop = context.AfterFunc(n.ctx, func() { s.cancelQueued(n) })

	s.promoteLocked()
	queued, inFlight := len(s.pending), len(s.inFlight)
	s.mu.Unlock()

	if queued > 0 {
		fields := n.logFields()
		fields["queued"] = queued
		fields["in_flight"] = inFlight
		LogQueueEvent(s.ctx, "queue_saturated", fields)
	}
}

// promoteLocked moves nodes from pending to in flight while slots are free.
func (s *scheduler) promoteLocked() {
	for s.pending.Len() > 0 && len(s.inFlight) < s.limit {
		n := heap.Pop(&s.pending).(*requestNode)
		if n.stop != nil {
			n.stop()
		}
		n.state = stateInFlight
		s.inFlight[n] = struct{}{}

		count := int64(len(s.inFlight))
		for {
			cur := s.maxInFlight.Load()
			if count <= cur || s.maxInFlight.CompareAndSwap(cur, count) {
				break
			}
		}

		fields := n.logFields()
		fields["in_flight"] = len(s.inFlight)
		fields["queued_ms"] = time.Since(n.enqueued).Milliseconds()
		LogQueueEvent(s.ctx, "request_dispatched", fields)

		s.out <- n
	}
}

// cancelQueued removes n if it is still waiting for a slot. In-flight nodes
// are aborted through their request context instead.
func (s *scheduler) cancelQueued(n *requestNode) {
	s.mu.Lock()
	if n.state != stateQueued {
		s.mu.Unlock()
		return
	}
	heap.Remove(&s.pending, n.index)
	n.state = stateDone
	s.mu.Unlock()

	s.cancelled.Add(1)
	LogQueueEvent(s.ctx, "request_cancelled", n.logFields())
	n.finish(newCancelledError(n.operation, context.Cause(n.ctx)))
}

// complete frees n's slot, promotes the next node and then satisfies n's
// sink with err.
func (s *scheduler) complete(n *requestNode, err error) {
	s.mu.Lock()
	if n.state != stateInFlight {
		s.mu.Unlock()
		return
	}
	delete(s.inFlight, n)
	n.state = stateDone
	s.promoteLocked()
	s.mu.Unlock()

	switch {
	case err == nil:
		s.completed.Add(1)
	case IsCancelledError(err):
		s.cancelled.Add(1)
	default:
		s.failed.Add(1)
	}

	fields := n.logFields()
	fields["success"] = err == nil
	LogQueueEvent(s.ctx, "request_completed", fields)

	n.finish(err)
}

// close rejects further submissions and cancels everything still queued.
// In-flight nodes complete through the normal path.
func (s *scheduler) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	drained := make([]*requestNode, 0, s.pending.Len())
	for s.pending.Len() > 0 {
		n := heap.Pop(&s.pending).(*requestNode)
		if n.stop != nil {
			n.stop()
		}
		n.state = stateDone
		drained = append(drained, n)
	}
	s.mu.Unlock()

	for _, n := range drained {
		s.cancelled.Add(1)
		n.finish(newCancelledError(n.operation, errSchedulerClosed))
	}
}

func (s *scheduler) stats() ConnectionStats {
	s.mu.Lock()
	queued, inFlight := s.pending.Len(), len(s.inFlight)
	s.mu.Unlock()

	return ConnectionStats{
		Queued:      queued,
		InFlight:    inFlight,
		MaxInFlight: s.maxInFlight.Load(),
		Submitted:   s.submitted.Load(),
		Completed:   s.completed.Load(),
		Failed:      s.failed.Load(),
		Cancelled:   s.cancelled.Load(),
		Uptime:      time.Since(s.created),
	}
}
