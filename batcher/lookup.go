package batcher

import (
	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// onLookupSettled is the LookupCoordinator's completion path (spec.md
// §4.2): a ShardLocator callback (or the Add-time shortcut for a
// pre-resolved shard) arrives here, under no lock held by the caller.
func (b *Batcher) onLookupSettled(flight *inFlightOp, result api.LookupResult) {
	b.mu.Lock()

	b.outstandingLookups--
	if b.metrics != nil {
		b.metrics.OutstandingLookups.Set(float64(b.outstandingLookups))
	}

	var (
		reportAborted bool
		reportFailed  bool
		failErr       error
	)

	switch {
	case b.state == stateAborted:
		delete(b.opsSet, flight)
		reportAborted = true

	case result.Err != nil:
		delete(b.opsSet, flight)
		reportFailed = true
		failErr = result.Err

	default:
		flight.attachShard(result.Shard, b.allowFollowers)
		b.readyQueue.push(flight)
	}

	if b.metrics != nil {
		b.metrics.BufferedOps.Set(float64(len(b.opsSet)))
	}

	b.mu.Unlock()

	switch {
	case reportAborted:
		b.aggregator.record(flight.payload, errs.New(errs.KindAborted, "batch aborted while lookup was outstanding"))
		b.runCompletionCheck()
	case reportFailed:
		b.aggregator.record(flight.payload, errs.Wrap(errs.KindLookupFailed, failErr))
		b.runCompletionCheck()
	}

	// Unconditionally trigger the dispatch attempt: it is a no-op unless
	// state == Flushing && outstandingLookups == 0 (the rendezvous).
	b.tryDispatch()
}

// runCompletionCheck fires the terminal callback exactly once, the
// moment the batch is Flushing and ops_set has drained to empty. It is
// safe to call redundantly (spec.md testable property #6): once state
// has advanced past Flushing, every subsequent call is a no-op.
func (b *Batcher) runCompletionCheck() {
	b.mu.Lock()

	if b.state != stateFlushing || len(b.opsSet) != 0 {
		b.mu.Unlock()
		return
	}

	b.state = stateFlushed
	cb := b.flushCallback
	b.flushCallback = nil
	b.mu.Unlock()

	status := b.aggregator.terminalStatus()
	b.fireTerminal(cb, status, EventFlushed)
}
