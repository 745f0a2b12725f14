package events

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Next once the queue has been closed and drained.
var ErrClosed = errors.New("event queue closed")

// Queue is an unbounded FIFO of envelopes. Any number of producers may Publish;
// a single subscriber is expected to drain it with Next. There is no replay and
// nothing is ever dropped: envelopes stay queued until someone takes them.
//
// Several concurrent subscribers are not supported. They will not crash, but each
// envelope goes to exactly one of them.
type Queue struct {
	mu     sync.Mutex
	items  []Envelope
	ready  chan struct{} // closed and replaced whenever items become available
	closed bool

	onPublish func(Envelope)
	onDepth   func(int)
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithPublishHook registers fn to be called for every published envelope.
func WithPublishHook(fn func(Envelope)) QueueOption {
	return func(q *Queue) {
		q.onPublish = fn
	}
}

// WithDepthHook registers fn to be called with the queue length after each change.
func WithDepthHook(fn func(int)) QueueOption {
	return func(q *Queue) {
		q.onDepth = fn
	}
}

// NewQueue creates an empty Queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

var _ Publisher = (*Queue)(nil)

// Publish appends env to the queue. It never blocks on the consumer. Envelopes
// published after Close are discarded.
func (q *Queue) Publish(env Envelope) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, env)
	depth := len(q.items)
	q.wake()
	q.mu.Unlock()

	if q.onPublish != nil {
		q.onPublish(env)
	}
	if q.onDepth != nil {
		q.onDepth(depth)
	}
}

// Next removes and returns the oldest envelope, blocking until one is available,
// ctx ends, or the queue is closed and empty.
func (q *Queue) Next(ctx context.Context) (Envelope, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			env := q.items[0]
			q.items[0] = Envelope{}
			q.items = q.items[1:]
			depth := len(q.items)
			q.mu.Unlock()

			if q.onDepth != nil {
				q.onDepth(depth)
			}
			return env, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Envelope{}, ErrClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

// Len returns the number of queued envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting envelopes and releases blocked subscribers once the
// remaining envelopes have been consumed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wake()
}

// wake must be called with mu held.
func (q *Queue) wake() {
	close(q.ready)
	q.ready = make(chan struct{})
}
