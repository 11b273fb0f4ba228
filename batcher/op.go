package batcher

import (
	"sync"

	"github.com/oasisprotocol/tablebatch/api"
)

// opState is the per-op lifecycle state named in spec.md §3.
type opState int

const (
	opLookingUpShard opState = iota
	opReadyToDispatch
	opDispatched
	opCompleted
	opFailed
)

func (s opState) String() string {
	switch s {
	case opLookingUpShard:
		return "looking_up_shard"
	case opReadyToDispatch:
		return "ready_to_dispatch"
	case opDispatched:
		return "dispatched"
	case opCompleted:
		return "completed"
	case opFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// inFlightOp is the per-operation record (spec.md §3's InFlightOp): user
// payload, partition key, resolved shard, sequence number, and state,
// protected by its own mutex for lookup-callback/dispatch interleaving.
// The per-op lock is only ever acquired while the Batcher lock is held
// (spec.md §5's lock order).
type inFlightOp struct {
	mu sync.Mutex

	payload        api.Operation
	partitionKey   []byte
	shard          api.ShardHandle
	sequenceNumber uint64
	state          opState
	group          OpGroup
}

func newInFlightOp(payload api.Operation, partitionKey []byte, seq uint64) *inFlightOp {
	return &inFlightOp{
		payload:        payload,
		partitionKey:   partitionKey,
		sequenceNumber: seq,
		state:          opLookingUpShard,
	}
}

// attachShard transitions the op into ReadyToDispatch with the resolved
// shard. Caller must hold the Batcher lock.
func (op *inFlightOp) attachShard(shard api.ShardHandle, allowFollowers bool) {
	op.mu.Lock()
	defer op.mu.Unlock()

	op.shard = shard
	op.state = opReadyToDispatch
	op.group = classify(op.payload, allowFollowers)
}

func (op *inFlightOp) markDispatched() {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.state = opDispatched
}

func (op *inFlightOp) markTerminal(failed bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if failed {
		op.state = opFailed
	} else {
		op.state = opCompleted
	}
}

func (op *inFlightOp) currentState() opState {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}
