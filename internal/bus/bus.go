// Package bus implements the in-process publish/consume message bus (C2):
// two independent FIFO streams — inbound (channels → agent) and outbound
// (agent → channels) — each an unbounded multi-producer/multi-consumer
// queue with await-on-empty consume semantics.
//
// Grounded on the teacher's internal/channels.Registry.AggregateMessages
// fan-in (condition-variable-free goroutine+channel composition), but
// redesigned as a proper two-stream MPMC queue rather than a one-shot
// fan-in: AggregateMessages starts one goroutine per channel and merges
// into a single output channel for the lifetime of the registry; this
// bus instead holds the queued messages in a mutex-guarded slice plus a
// condition variable so producers never block on a goroutine being
// present to receive, and consumers can come and go freely.
package bus

import (
	"sync"

	"github.com/haasonsaas/nexus/pkg/models"
)

// ErrBusClosed is returned by publish/consume operations once Close has
// been called.
type busClosedError struct{}

func (busClosedError) Error() string { return "bus closed" }

// ErrBusClosed is the sentinel returned once the bus is closed.
var ErrBusClosed error = busClosedError{}

// queue is a single FIFO stream: an unbounded slice buffer guarded by a
// mutex, with a condition variable to implement await-on-empty consume.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// publish appends msg and returns ErrBusClosed if the queue is closed.
// Never drops a message: append either succeeds (the message becomes
// observable to a future consume) or the queue is closed and the
// message is rejected outright.
func (q *queue[T]) publish(msg T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrBusClosed
	}
	q.items = append(q.items, msg)
	q.cond.Signal()
	return nil
}

// tryPublish is the non-suspending variant. Under this implementation
// publish never suspends except for the mutex itself, so tryPublish is
// identical to publish; it exists as a distinct named operation because
// the specification treats it as a separate contract for callers (hook
// Notify) that must never be blocked by bus internals.
func (q *queue[T]) tryPublish(msg T) error {
	return q.publish(msg)
}

// consume blocks until at least one item is available or the queue is
// closed with nothing left to drain, then returns the oldest item.
func (q *queue[T]) consume() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	var zero T
	if len(q.items) == 0 {
		return zero, ErrBusClosed
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Bus is the pair of inbound/outbound streams connecting channel drivers
// to the agent loop (or container proxy).
type Bus struct {
	inbound  *queue[models.InboundMessage]
	outbound *queue[models.OutboundMessage]
}

// New creates an open Bus.
func New() *Bus {
	return &Bus{
		inbound:  newQueue[models.InboundMessage](),
		outbound: newQueue[models.OutboundMessage](),
	}
}

// PublishInbound appends msg to the inbound stream.
func (b *Bus) PublishInbound(msg models.InboundMessage) error {
	return b.inbound.publish(msg)
}

// PublishOutbound appends msg to the outbound stream.
func (b *Bus) PublishOutbound(msg models.OutboundMessage) error {
	return b.outbound.publish(msg)
}

// TryPublishOutbound is the non-suspending publish used by hook
// notifications so they never block the agent loop.
func (b *Bus) TryPublishOutbound(msg models.OutboundMessage) error {
	return b.outbound.tryPublish(msg)
}

// ConsumeInbound suspends the caller until a message is available,
// returning the oldest unconsumed inbound message.
func (b *Bus) ConsumeInbound() (models.InboundMessage, error) {
	return b.inbound.consume()
}

// ConsumeOutbound suspends the caller until a message is available,
// returning the oldest unconsumed outbound message.
func (b *Bus) ConsumeOutbound() (models.OutboundMessage, error) {
	return b.outbound.consume()
}

// Close marks both streams closed. Pending consumers wake and, once
// drained, observe ErrBusClosed. Safe to call more than once.
func (b *Bus) Close() {
	b.inbound.close()
	b.outbound.close()
}
