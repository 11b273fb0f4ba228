package batcher

import (
	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/internal/tracelog"
)

// processResponse is the ResponseProcessor (spec.md §4.6), invoked by
// the transport when an RPC completes. runFlights is the exact op slice
// handed to the RPC at dispatch time.
func (b *Batcher) processResponse(runFlights []*inFlightOp, result api.RpcResult) {
	groupLabel := ""
	if len(runFlights) > 0 {
		groupLabel = runFlights[0].group.String()
	}

	if !result.Status.IsOK() {
		// RPC-level failure: record status against every op in the RPC.
		for _, flight := range runFlights {
			flight.markTerminal(true)
			b.aggregator.record(flight.payload, result.Status)
		}
		tracelog.RpcSettled(shardIDOf(runFlights), groupLabel, len(runFlights), false, result.Status.Kind.String())
	} else {
		if result.HasPropagatedTime && b.readPoint != nil {
			b.readPoint.Advance(result.PropagatedHybridTime)
		}

		failedIndex := make(map[int]bool, len(result.RowErrors))
		for _, rowErr := range result.RowErrors {
			if rowErr.RowIndex < 0 || rowErr.RowIndex >= len(runFlights) {
				logger.Warn("per-row error with out-of-range row index, skipping",
					"row_index", rowErr.RowIndex, "run_size", len(runFlights))
				continue
			}
			failedIndex[rowErr.RowIndex] = true
			flight := runFlights[rowErr.RowIndex]
			flight.markTerminal(true)
			b.aggregator.record(flight.payload, rowErr.Status)
		}

		for i, flight := range runFlights {
			if failedIndex[i] {
				continue
			}
			flight.markTerminal(false)
		}
		tracelog.RpcSettled(shardIDOf(runFlights), groupLabel, len(runFlights), true, "")
	}

	// Common tail (spec.md §4.6): erase every op in the RPC from
	// ops_set, notify the transaction, and run the completion check. The
	// read point was already advanced above for a successful response.
	b.mu.Lock()
	for _, flight := range runFlights {
		if _, ok := b.opsSet[flight]; !ok {
			// Contract violation: an op handed to an RPC must still be
			// in ops_set until this exact removal (spec.md §4.6).
			panic("tablebatch: op missing from ops_set at RPC completion")
		}
		delete(b.opsSet, flight)
	}
	if b.metrics != nil {
		b.metrics.BufferedOps.Set(float64(len(b.opsSet)))
	}
	b.mu.Unlock()

	if b.transaction != nil {
		ops := make([]api.Operation, len(runFlights))
		for i, flight := range runFlights {
			ops[i] = flight.payload
		}
		usedReadTime := uint64(0)
		if result.HasPropagatedTime {
			usedReadTime = result.PropagatedHybridTime
		}
		b.transaction.Flushed(ops, usedReadTime, result.Status)
	}

	b.runCompletionCheck()
}

func shardIDOf(flights []*inFlightOp) string {
	if len(flights) == 0 || flights[0].shard == nil {
		return ""
	}
	return flights[0].shard.ShardID()
}
