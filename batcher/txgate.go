package batcher

import (
	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// prepareTransactionLocked implements the TransactionGate (spec.md
// §4.4). It is called from tryDispatch with the Batcher lock held,
// matching the source's documented nesting (Prepare itself never
// blocks; it either answers synchronously or arranges an asynchronous
// onReady callback later, never recursing back into the Batcher from
// inside the Prepare call itself). Caller must hold b.mu.
func (b *Batcher) prepareTransactionLocked(ops []api.Operation) (ready bool) {
	if b.transaction == nil || b.txPrepared {
		return true
	}

	_, _, ready = b.transaction.Prepare(ops, b.forceConsistentRead, b.onTransactionReady)
	if ready {
		b.txPrepared = true
	}
	return ready
}

// onTransactionReady is the ready_callback passed to Prepare. On OK it
// re-enters the dispatch attempt; on error it aborts the whole batch
// with that status (spec.md §4.4).
func (b *Batcher) onTransactionReady(status errs.Status) {
	if status.IsOK() {
		b.mu.Lock()
		b.txPrepared = true
		b.mu.Unlock()
		b.tryDispatch()
		return
	}
	b.Abort(status)
}
