// Package pubsub provides a small generic broadcast Broker, in the shape
// the corpus uses for "watch" APIs (Subscribe returning a
// ClosableSubscription paired with a typed channel): every subscriber
// receives every value published after it subscribed, delivered off an
// unbounded per-subscriber queue so a slow watcher never blocks Publish.
// The per-subscriber queue itself is an eapache/channels.InfiniteChannel,
// the same unbounded-buffer primitive the corpus reaches for wherever a
// producer must never block on a slow consumer.
package pubsub

import (
	"sync"

	"github.com/eapache/channels"
)

// ClosableSubscription is returned by Broker.Subscribe. Close detaches
// the subscription and closes its bound channel.
type ClosableSubscription interface {
	Close()
}

// Broker broadcasts published values of type T to every currently
// subscribed channel.
type Broker[T any] struct {
	mu   sync.Mutex
	subs map[*subscription[T]]struct{}
}

// NewBroker constructs an empty Broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[*subscription[T]]struct{})}
}

// Subscribe registers a new subscriber and starts delivering to the
// returned channel immediately.
func (b *Broker[T]) Subscribe() (ClosableSubscription, <-chan T) {
	s := &subscription[T]{broker: b, ch: make(chan T), queue: channels.NewInfiniteChannel(), done: make(chan struct{})}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s, s.ch
}

// Broadcast publishes v to every current subscriber.
func (b *Broker[T]) Broadcast(v T) {
	b.mu.Lock()
	subs := make([]*subscription[T], 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.push(v)
	}
}

type subscription[T any] struct {
	broker *Broker[T]
	ch     chan T
	queue  *channels.InfiniteChannel
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Close detaches the subscription. It closes the underlying infinite
// channel and waits for the pump goroutine to drain whatever was already
// queued before closing the delivery channel, so a Close racing with a
// Broadcast never drops the tail of the queue mid-delivery.
func (s *subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.queue.Close()
	<-s.done

	s.broker.mu.Lock()
	delete(s.broker.subs, s)
	s.broker.mu.Unlock()
}

func (s *subscription[T]) push(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue.In() <- v
}

func (s *subscription[T]) pump() {
	defer close(s.done)
	for v := range s.queue.Out() {
		s.ch <- v.(T)
	}
	close(s.ch)
}
