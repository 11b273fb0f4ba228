// Package api defines the contracts the batcher expects of its external
// collaborators (shard location, RPC transport, transactions, error
// reporting, hybrid-time tracking, and callback scheduling), plus the
// caller-supplied operation value the batcher groups and dispatches.
//
// None of these types know about the batcher's internal state machine;
// they are named here exactly so the batcher package can depend on
// interfaces instead of concrete collaborators.
package api

import (
	"context"
	"time"

	"github.com/oasisprotocol/tablebatch/errs"
)

// OperationKind discriminates what shape of remote call an Operation
// ultimately needs, before op-group/consistency configuration is applied.
type OperationKind int

const (
	// KindWrite is a row mutation; always dispatched as a WriteRpc to the leader.
	KindWrite OperationKind = iota
	// KindReadCacheStyle is a read that may be served by any replica when
	// the caller's configuration allows reads from followers.
	KindReadCacheStyle
	// KindReadRelational is a read that, when follower reads are allowed,
	// is still only eligible for the consistent-prefix level rather than
	// an arbitrary replica.
	KindReadRelational
)

// TableRef identifies the logical table an Operation targets and whether
// that table uses hash partitioning (which drives the Add-time hash-code
// fixup described in spec.md §4.1).
type TableRef struct {
	Name            string
	HashPartitioned bool
}

// Operation is the caller-supplied, per-row unit of work. It is treated
// as opaque payload by the batcher beyond this contract.
type Operation interface {
	// Table identifies the logical table this op targets.
	Table() TableRef
	// Kind reports the op's read/write discriminator.
	Kind() OperationKind
	// IsWrite reports whether this op mutates state.
	IsWrite() bool
	// PartitionKey derives the routing key for this op. Returns an error
	// (surfaced to the caller as errs.KindBadKey) if extraction fails.
	PartitionKey() ([]byte, error)
	// ReturnsSidecar reports whether this op's response carries an
	// out-of-band sidecar payload, counted against MaxSidecarSlices.
	ReturnsSidecar() bool
	// HashPartitioned mirrors Table().HashPartitioned for convenience.
	HashPartitioned() bool
	// SetHashCode records the decoded partition hash on hash-partitioned
	// write/read ops that carry one. A no-op for ops that don't.
	SetHashCode(code uint16)
	// EstimatedSize estimates the op's contribution to buffer_bytes_used.
	EstimatedSize() int64
}

// ShardHandle identifies a shard and exposes its identity for
// grouping/routing. The planner sorts and groups ops by ShardID(), so
// two handles for the same shard must report the same ShardID.
type ShardHandle interface {
	// ShardID returns a stable identifier for the shard this handle names.
	ShardID() string
	// Leader returns the current leader replica's address, if known.
	Leader() string
}

// LookupResult carries the outcome of an asynchronous shard lookup.
type LookupResult struct {
	Shard ShardHandle
	Err   error
}

// ShardLocator resolves a partition key to the shard that currently owns
// it. Implementations may answer synchronously before calling back, or
// defer arbitrarily; lateness after a batch aborts is absorbed by the
// Abort path, not by cancellation.
type ShardLocator interface {
	LookupByKey(ctx context.Context, table TableRef, partitionKey []byte, deadline time.Time, callback func(LookupResult))
}

// PreResolvedShardProvider is an optional capability an Operation may
// implement when the caller already knows which shard owns it (e.g. from
// a client-side routing cache), letting Add skip the ShardLocator round
// trip entirely.
type PreResolvedShardProvider interface {
	PreResolvedShard() (ShardHandle, bool)
}

// RpcHandle is returned by RpcTransport's Write/Read constructors. Send
// submits the RPC; the transport is responsible for invoking the
// batcher's ResponseProcessor completion path when it settles.
type RpcHandle interface {
	// SendRpc submits the RPC. The RunSpec's AllowLocal authorizes (but
	// does not require) synchronous local execution on the calling
	// goroutine.
	SendRpc()
}

// RunSpec describes one dispatch unit handed to RpcTransport: a
// contiguous, already-sorted slice of ops bound for the same shard and
// op-group.
type RunSpec struct {
	Shard            ShardHandle
	Group            OperationGroup
	Ops              []Operation
	AllowLocal       bool
	NeedConsistent   bool
}

// OperationGroup is re-declared here (mirrors batcher.OpGroup) so that
// api, which batcher depends on, doesn't need to import batcher back.
type OperationGroup int

const (
	GroupWrite OperationGroup = iota
	GroupLeaderRead
	GroupConsistentPrefixRead
)

func (g OperationGroup) String() string {
	switch g {
	case GroupWrite:
		return "write"
	case GroupLeaderRead:
		return "leader_read"
	case GroupConsistentPrefixRead:
		return "consistent_prefix_read"
	default:
		return "unknown"
	}
}

// RpcTransport submits Write/Read RPCs to the leader (or a follower) of
// a shard and returns an async handle. completion is invoked by the
// transport exactly once, from whatever goroutine observes the remote
// call settle, with the RunSpec's ops and the batch-level outcome.
type RpcTransport interface {
	WriteRpc(run RunSpec, completion func(RpcResult)) RpcHandle
	ReadRpc(run RunSpec, completion func(RpcResult)) RpcHandle
	// MaxSidecarSlices is the maximum number of sidecar-returning ops the
	// transport will accept bundled into a single RPC run.
	MaxSidecarSlices() int
}

// RowError is a single per-row failure reported on a write response.
type RowError struct {
	RowIndex int
	Status   errs.Status
}

// RpcResult is what the transport hands back to the ResponseProcessor.
type RpcResult struct {
	// Status is the RPC-level outcome; KindNone means the call completed
	// and any failures are carried per-row in RowErrors instead.
	Status errs.Status
	// RowErrors are populated only for write responses.
	RowErrors []RowError
	// PropagatedHybridTime is the server's clock value observed on this
	// response, if any (both write and read responses may carry one).
	PropagatedHybridTime uint64
	HasPropagatedTime    bool
}

// TransactionContext is the optional transaction collaborator. Prepare
// returns true when the transaction is immediately ready (metadata
// populated synchronously), or false to defer; in the deferred case the
// transaction later invokes onReady with the outcome.
type TransactionContext interface {
	Prepare(ops []Operation, forceConsistentRead bool, onReady func(errs.Status)) (metadata []byte, mayHaveMetadata bool, ready bool)
	Flushed(ops []Operation, usedReadTime uint64, status errs.Status)
}

// ErrorSink is the per-operation error accumulator queried by the user
// after flush. The batcher never reads back from it.
type ErrorSink interface {
	AddError(op Operation, status errs.Status)
}

// ReadPointClock is a hybrid-time tracker advanced by successful read
// and write responses.
type ReadPointClock interface {
	Advance(hybridTime uint64)
}

// CallbackExecutor is a thread pool onto which terminal flush callbacks
// are handed off. Submit returns false if handoff failed (pool full or
// shut down), in which case the caller runs the callback inline.
type CallbackExecutor interface {
	Submit(fn func()) bool
}
