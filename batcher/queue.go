package batcher

import "github.com/gammazero/deque"

// opDeque is the ready_queue named in spec.md §3: ops whose lookup has
// settled, held in admission order until the GroupingPlanner drains them
// for sorting. Backed by gammazero/deque the way the corpus reaches for
// a typed queue (container/heap's outOfOrderRoundQueue) to hold
// asynchronously-settled items pending an ordered drain.
type opDeque struct {
	d deque.Deque
}

func newOpDeque() *opDeque {
	return &opDeque{}
}

func (q *opDeque) push(op *inFlightOp) {
	q.d.PushBack(op)
}

func (q *opDeque) len() int {
	return q.d.Len()
}

// snapshot returns the queue's current contents without draining it,
// preserving admission order. Safe to call only while nothing else can
// be pushing concurrently (i.e. under the Batcher lock, after the
// lookup rendezvous has passed).
func (q *opDeque) snapshot() []*inFlightOp {
	n := q.d.Len()
	if n == 0 {
		return nil
	}
	out := make([]*inFlightOp, n)
	for i := 0; i < n; i++ {
		out[i] = q.d.At(i).(*inFlightOp)
	}
	return out
}

// drainAll empties the queue into a freshly allocated slice, preserving
// admission order.
func (q *opDeque) drainAll() []*inFlightOp {
	n := q.d.Len()
	if n == 0 {
		return nil
	}
	out := make([]*inFlightOp, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, q.d.PopFront().(*inFlightOp))
	}
	return out
}
