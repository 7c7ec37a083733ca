// Package queue provides a bounded in-process message queue with
// per-message delivery delays and at-least-once semantics. It stands in
// for a managed broker at the same contract boundary: a message becomes
// deliverable no earlier than its delay, a failed handling attempt
// redelivers, and a message that keeps failing is eventually dropped.
package queue

import (
	"fmt"
	"sync"
	"time"
)

// Message is one queued payload. ReceiveCount counts delivery attempts,
// starting at 1 on first delivery.
type Message struct {
	ID           string
	Body         []byte
	ReceiveCount int
}

// Queue is a bounded delay queue preserving ready-time FIFO ordering.
type Queue struct {
	mu        sync.Mutex
	ready     []Message
	scheduled int
	capacity  int
	nextID    uint64
	closed    bool
}

// New creates a queue holding at most capacity messages, scheduled and
// ready combined.
func New(capacity int) *Queue {
	return &Queue{
		ready:    make([]Message, 0, capacity),
		capacity: capacity,
	}
}

// Submit enqueues body for delivery no earlier than delay from now.
// It fails when the queue is full or closed; the caller decides whether a
// failed submit is tolerable (the dispatcher's per-entry policy) or not.
func (q *Queue) Submit(body []byte, delay time.Duration) (string, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", fmt.Errorf("queue is closed")
	}
	if q.size() >= q.capacity {
		q.mu.Unlock()
		return "", fmt.Errorf("queue is full (capacity %d)", q.capacity)
	}

	q.nextID++
	msg := Message{ID: fmt.Sprintf("msg-%d", q.nextID), Body: body}

	if delay <= 0 {
		q.ready = append(q.ready, msg)
		q.mu.Unlock()
		return msg.ID, nil
	}

	q.scheduled++
	q.mu.Unlock()

	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.scheduled--
		if q.closed {
			return
		}
		q.ready = append(q.ready, msg)
	})
	return msg.ID, nil
}

// Redeliver puts a previously delivered message back after delay.
// Redelivery ignores the capacity bound: the message's slot was already
// accounted for when it was first submitted.
func (q *Queue) Redeliver(msg Message, delay time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.scheduled++
	q.mu.Unlock()

	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.scheduled--
		if q.closed {
			return
		}
		q.ready = append(q.ready, msg)
	})
}

// DequeueBatch removes and returns up to max ready messages, incrementing
// their receive counts. Returns nil when nothing is deliverable yet.
func (q *Queue) DequeueBatch(max int) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ready) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.ready) {
		max = len(q.ready)
	}

	out := make([]Message, max)
	copy(out, q.ready[:max])
	q.ready = append(q.ready[:0], q.ready[max:]...)

	for i := range out {
		out[i].ReceiveCount++
	}
	return out
}

// Len returns the number of messages pending delivery, ready and
// scheduled combined.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size()
}

// Close stops accepting and delivering messages.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.ready = nil
}

// size must be called with q.mu held.
func (q *Queue) size() int {
	return len(q.ready) + q.scheduled
}
