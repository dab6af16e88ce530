// Package bus implements the bounded event queue between collectors and the dispatcher.
package bus

import (
	"context"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// Bus is a bounded multi-producer, single-consumer FIFO of events.
// Publish blocks while the queue is full; events are never dropped.
type Bus struct {
	ch chan types.Event
}

// New creates a bus holding at most capacity undelivered events.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{ch: make(chan types.Event, capacity)}
}

// Publish enqueues ev, waiting for space. It fails only when ctx is done.
func (b *Bus) Publish(ctx context.Context, ev types.Event) error {
	select {
	case b.ch <- ev:
		return nil
	default:
	}
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the receive side. Only the dispatcher should read from it.
func (b *Bus) Events() <-chan types.Event {
	return b.ch
}

// Len returns the number of queued events.
func (b *Bus) Len() int { return len(b.ch) }

// Cap returns the bus capacity.
func (b *Bus) Cap() int { return cap(b.ch) }
