package usecase

import (
	"container/list"
	"sync"
	"time"
)

// StreamExitRequest is a pending openExitStreamTo call waiting to be matched
// against an eligible circuit. It becomes complete exactly once, either by
// the matcher finding a circuit or by its deadline/cancellation firing.
type StreamExitRequest struct {
	Host   string
	Port   uint16
	Target string

	enqueuedAt time.Time
	deadline   time.Time

	mu        sync.Mutex
	completed bool
	done      chan outcome
}

type outcome struct {
	out OpenExitStreamOutput
	err error
}

func newStreamExitRequest(host string, port uint16, target string, deadline time.Duration) *StreamExitRequest {
	now := time.Now()
	return &StreamExitRequest{
		Host:       host,
		Port:       port,
		Target:     target,
		enqueuedAt: now,
		deadline:   now.Add(deadline),
		done:       make(chan outcome, 1),
	}
}

// complete marks the request done exactly once; later calls are no-ops, so
// a matcher racing a deadline sweep can't double-deliver a result.
func (r *StreamExitRequest) complete(out OpenExitStreamOutput, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed {
		return false
	}
	r.completed = true
	r.done <- outcome{out, err}
	return true
}

func (r *StreamExitRequest) isCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

func (r *StreamExitRequest) expired() bool { return time.Now().After(r.deadline) }

// streamRequestQueue is a shared FIFO of pending StreamExitRequests. The
// matcher (CircuitManager.drainPendingRequests, after every tick or build)
// iterates a snapshot and completes whatever it can; a caller's
// interruption or deadline removes its own request independently.
type streamRequestQueue struct {
	mu   sync.Mutex
	reqs *list.List // *list.Element holding *StreamExitRequest
}

func newStreamRequestQueue() *streamRequestQueue {
	return &streamRequestQueue{reqs: list.New()}
}

func (q *streamRequestQueue) enqueue(r *StreamExitRequest) *list.Element {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reqs.PushBack(r)
}

// remove drops e from the queue; safe to call more than once.
func (q *streamRequestQueue) remove(e *list.Element) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reqs.Remove(e)
}

// snapshot returns the requests currently queued, oldest first.
func (q *streamRequestQueue) snapshot() []*StreamExitRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*StreamExitRequest, 0, q.reqs.Len())
	for e := q.reqs.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*StreamExitRequest))
	}
	return out
}

func (q *streamRequestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reqs.Len()
}
