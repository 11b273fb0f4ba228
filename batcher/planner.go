package batcher

import (
	"sort"

	"github.com/oasisprotocol/tablebatch/api"
)

// dispatchRun is one adjacent run produced by the GroupingPlanner: a
// contiguous slice of ops bound for the same shard and op-group.
type dispatchRun struct {
	shard  api.ShardHandle
	group  OpGroup
	flights []*inFlightOp
}

// tryDispatch is the dispatch attempt named throughout spec.md §4.2-4.3:
// a no-op unless the batch is Flushing and every lookup has settled
// (the rendezvous). Safe to call redundantly from any goroutine.
func (b *Batcher) tryDispatch() {
	b.mu.Lock()

	if b.state != stateFlushing || b.outstandingLookups != 0 {
		b.mu.Unlock()
		return
	}

	if b.transaction != nil && !b.txPrepared {
		b.forceConsistentRead = true

		snapshot := b.readyQueue.snapshot()
		payloads := make([]api.Operation, len(snapshot))
		for i, flight := range snapshot {
			payloads[i] = flight.payload
		}

		if ready := b.prepareTransactionLocked(payloads); !ready {
			// Deferred: onTransactionReady will re-enter tryDispatch (or
			// Abort the batch) once the transaction settles.
			b.mu.Unlock()
			return
		}
	}

	flights := b.readyQueue.drainAll()
	for _, flight := range flights {
		// Claim these ops for dispatch while still holding the Batcher
		// lock: Abort's opReadyToDispatch scan (batcher.go) must never see
		// an op that has already left the ready queue, or it will Abort an
		// op that is about to be handed to an RPC (spec.md §4.1's "not yet
		// handed to an RPC" carve-out).
		flight.markDispatched()
	}
	maxSidecar := 0
	if b.transport != nil {
		maxSidecar = b.transport.MaxSidecarSlices()
	}
	forceConsistent := b.forceConsistentRead

	b.mu.Unlock()

	if len(flights) == 0 {
		// Idempotent no-op: nothing ready to dispatch this attempt
		// (spec.md §4.3's empty-batch-after-rendezvous edge case).
		return
	}

	runs := planRuns(flights, maxSidecar)
	for i, run := range runs {
		needConsistent := forceConsistent || len(runs) > 1
		allowLocal := i == len(runs)-1
		b.sendRun(run, needConsistent, allowLocal)
	}
}

// planRuns sorts ops by (shard identity, op-group, sequence number) and
// slices them into adjacent runs, starting a new run whenever the shard
// or op-group changes, or the current run already holds maxSidecar
// sidecar-returning ops (spec.md §4.3).
func planRuns(flights []*inFlightOp, maxSidecar int) []dispatchRun {
	sort.SliceStable(flights, func(i, j int) bool {
		a, b := flights[i], flights[j]
		if a.shard.ShardID() != b.shard.ShardID() {
			return a.shard.ShardID() < b.shard.ShardID()
		}
		if a.group != b.group {
			return a.group < b.group
		}
		return a.sequenceNumber < b.sequenceNumber
	})

	var runs []dispatchRun
	var cur *dispatchRun
	sidecarCount := 0

	for _, flight := range flights {
		startNew := cur == nil ||
			cur.shard.ShardID() != flight.shard.ShardID() ||
			cur.group != flight.group ||
			(maxSidecar > 0 && sidecarCount >= maxSidecar)

		if startNew {
			runs = append(runs, dispatchRun{shard: flight.shard, group: flight.group})
			cur = &runs[len(runs)-1]
			sidecarCount = 0
		}

		cur.flights = append(cur.flights, flight)
		if flight.payload.ReturnsSidecar() {
			sidecarCount++
		}
	}

	return runs
}
