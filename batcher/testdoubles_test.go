package batcher

import (
	"context"
	"sync"
	"time"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// fakeOp is a minimal api.Operation test double.
type fakeOp struct {
	table           api.TableRef
	kind            api.OperationKind
	write           bool
	key             []byte
	keyErr          error
	sidecar         bool
	hashPartitioned bool
	size            int64

	mu       sync.Mutex
	hashCode uint16
	hashSet  bool

	preShard    api.ShardHandle
	hasPreShard bool
}

func (o *fakeOp) Table() api.TableRef     { return o.table }
func (o *fakeOp) Kind() api.OperationKind { return o.kind }
func (o *fakeOp) IsWrite() bool           { return o.write }
func (o *fakeOp) PartitionKey() ([]byte, error) {
	if o.keyErr != nil {
		return nil, o.keyErr
	}
	return o.key, nil
}
func (o *fakeOp) ReturnsSidecar() bool  { return o.sidecar }
func (o *fakeOp) HashPartitioned() bool { return o.hashPartitioned }
func (o *fakeOp) SetHashCode(code uint16) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hashCode = code
	o.hashSet = true
}
func (o *fakeOp) EstimatedSize() int64 { return o.size }

func (o *fakeOp) PreResolvedShard() (api.ShardHandle, bool) {
	return o.preShard, o.hasPreShard
}

func writeOp(key string) *fakeOp {
	return &fakeOp{table: api.TableRef{Name: "t"}, kind: api.KindWrite, write: true, key: []byte(key), size: int64(len(key))}
}

func readOp(key string, kind api.OperationKind) *fakeOp {
	return &fakeOp{table: api.TableRef{Name: "t"}, kind: kind, write: false, key: []byte(key), size: int64(len(key))}
}

// fakeShard is a minimal api.ShardHandle test double.
type fakeShard struct {
	id string
}

func (s *fakeShard) ShardID() string { return s.id }
func (s *fakeShard) Leader() string  { return "leader-" + s.id }

// fakeLocator resolves every key to a preconfigured shard (or error),
// either synchronously or deferred to a goroutine.
type fakeLocator struct {
	mu       sync.Mutex
	shardFor func(partitionKey []byte) (api.ShardHandle, error)
	deferred bool
	calls    int
}

func newFakeLocator(shard api.ShardHandle) *fakeLocator {
	return &fakeLocator{shardFor: func([]byte) (api.ShardHandle, error) { return shard, nil }}
}

func (l *fakeLocator) LookupByKey(ctx context.Context, table api.TableRef, partitionKey []byte, deadline time.Time, callback func(api.LookupResult)) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()

	shard, err := l.shardFor(partitionKey)
	result := api.LookupResult{Shard: shard, Err: err}
	if l.deferred {
		go callback(result)
		return
	}
	callback(result)
}

// fakeRpcHandle immediately invokes its completion when SendRpc is called.
type fakeRpcHandle struct {
	fn func()
}

func (h *fakeRpcHandle) SendRpc() { h.fn() }

// fakeTransport records every dispatched run and answers with a
// preconfigured result (or a custom responder keyed by shard+group).
type fakeTransport struct {
	mu          sync.Mutex
	runs        []api.RunSpec
	maxSidecar  int
	respond     func(run api.RunSpec) api.RpcResult
}

func newFakeTransport(respond func(run api.RunSpec) api.RpcResult) *fakeTransport {
	return &fakeTransport{maxSidecar: 64, respond: respond}
}

func (t *fakeTransport) WriteRpc(run api.RunSpec, completion func(api.RpcResult)) api.RpcHandle {
	return t.build(run, completion)
}

func (t *fakeTransport) ReadRpc(run api.RunSpec, completion func(api.RpcResult)) api.RpcHandle {
	return t.build(run, completion)
}

func (t *fakeTransport) build(run api.RunSpec, completion func(api.RpcResult)) api.RpcHandle {
	t.mu.Lock()
	t.runs = append(t.runs, run)
	t.mu.Unlock()

	return &fakeRpcHandle{fn: func() {
		completion(t.respond(run))
	}}
}

func (t *fakeTransport) MaxSidecarSlices() int { return t.maxSidecar }

func (t *fakeTransport) recordedRuns() []api.RunSpec {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]api.RunSpec, len(t.runs))
	copy(out, t.runs)
	return out
}

func okResult() api.RpcResult { return api.RpcResult{Status: errs.OK} }

// fakeErrorSink collects every AddError call.
type fakeErrorSink struct {
	mu      sync.Mutex
	entries []fakeErrorEntry
}

type fakeErrorEntry struct {
	op     api.Operation
	status errs.Status
}

func (s *fakeErrorSink) AddError(op api.Operation, status errs.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, fakeErrorEntry{op: op, status: status})
}

func (s *fakeErrorSink) snapshot() []fakeErrorEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fakeErrorEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// fakeTransaction is a minimal api.TransactionContext test double.
type fakeTransaction struct {
	mu        sync.Mutex
	ready     bool
	readyErr  errs.Status
	prepared  []api.Operation
	flushed   []api.Operation
	onReady   func(errs.Status)
}

func (tx *fakeTransaction) Prepare(ops []api.Operation, forceConsistentRead bool, onReady func(errs.Status)) ([]byte, bool, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.prepared = ops
	tx.onReady = onReady
	return nil, false, tx.ready
}

func (tx *fakeTransaction) Flushed(ops []api.Operation, usedReadTime uint64, status errs.Status) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.flushed = ops
}

func (tx *fakeTransaction) settle(status errs.Status) {
	tx.mu.Lock()
	cb := tx.onReady
	tx.mu.Unlock()
	if cb != nil {
		cb(status)
	}
}

// fakeReadPoint records the last hybrid time advanced.
type fakeReadPoint struct {
	mu   sync.Mutex
	last uint64
}

func (r *fakeReadPoint) Advance(hybridTime uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = hybridTime
}
