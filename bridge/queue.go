package bridge

import (
	"context"
	"io"
	"sync"
)

// eventQueue is an unbounded FIFO between one session's background run and
// whichever consumer is currently attached. Close is the stream sentinel: a
// consumer drains whatever is buffered and then sees io.EOF. Publishing after
// close is a silent no-op so a superseded run can finish its bookkeeping
// without disturbing anyone.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	wake   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

func (q *eventQueue) Publish(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.notify()
}

// Close marks the end of the stream. Idempotent.
func (q *eventQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

func (q *eventQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Next returns the oldest unread event, blocking until one is published or
// the queue is closed. After the buffer is drained on a closed queue it
// returns io.EOF.
func (q *eventQueue) Next(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			pending := len(q.items) > 0 || q.closed
			q.mu.Unlock()
			if pending {
				// Re-arm so a follow-up Next doesn't block on a
				// consumed wake token.
				q.notify()
			}
			return ev, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Event{}, io.EOF
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
