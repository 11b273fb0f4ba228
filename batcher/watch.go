package batcher

import (
	"github.com/oasisprotocol/tablebatch/errs"
	"github.com/oasisprotocol/tablebatch/internal/pubsub"
)

// EventKind discriminates the lifecycle events a Batcher publishes.
type EventKind int

const (
	EventFlushing EventKind = iota
	EventFlushed
	EventAborted
)

// Event is published on the channel returned by Batcher.Watch. It is
// purely observational: nothing in the batcher's correctness depends on
// whether anyone is watching, and publication never happens while the
// Batcher mutex is held (spec.md §5's callback discipline).
type Event struct {
	Kind   EventKind
	Status errs.Status
}

// Watch subscribes to this batch's lifecycle events. The returned
// subscription should be Closed once the caller no longer needs it.
func (b *Batcher) Watch() (pubsub.ClosableSubscription, <-chan Event) {
	return b.events.Subscribe()
}

func (b *Batcher) publish(ev Event) {
	b.events.Broadcast(ev)
}
