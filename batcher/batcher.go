// Package batcher implements the client-side write/read batcher: it
// accepts a stream of single-row operations targeting a partitioned,
// replicated table store, groups them by destination shard and
// operation class, and dispatches them as consolidated remote calls
// with correct ordering, consistency, transaction, and error-reporting
// guarantees.
package batcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
	"github.com/oasisprotocol/tablebatch/internal/logging"
	"github.com/oasisprotocol/tablebatch/internal/pubsub"
	"github.com/oasisprotocol/tablebatch/metrics"
)

var logger = logging.GetLogger("batcher")

// state is the Batcher's top-level state machine (spec.md §4.1):
// Gathering -> Flushing -> Flushed|Aborted, with Abort reachable from
// either Gathering or Flushing.
type state int

const (
	stateGathering state = iota
	stateFlushing
	stateFlushed
	stateAborted
)

func (s state) String() string {
	switch s {
	case stateGathering:
		return "gathering"
	case stateFlushing:
		return "flushing"
	case stateFlushed:
		return "flushed"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// DefaultTimeout is used to compute a flush deadline when the caller
// never calls SetTimeout (spec.md §4.1).
const DefaultTimeout = 60 * time.Second

// DefaultMaxBufferSize is the default max_buffer_size (spec.md §5).
const DefaultMaxBufferSize = 7 << 20 // 7 MiB

// Options configures a new Batcher. Every field is optional; zero values
// fall back to spec-mandated defaults.
type Options struct {
	ShardLocator            api.ShardLocator
	Transport               api.RpcTransport
	ErrorSink               api.ErrorSink
	Transaction             api.TransactionContext
	ReadPoint               api.ReadPointClock
	CallbackExecutor        api.CallbackExecutor
	Metrics                 *metrics.Collector
	MaxBufferSize           int64
	AllowReadsFromFollowers bool
	CombineBatcherErrors    bool
}

// Batcher owns one batch of ops (spec.md §3). All exported methods are
// safe for concurrent use.
type Batcher struct {
	id string

	mu sync.Mutex

	state               state
	opsSet              map[*inFlightOp]struct{}
	readyQueue          *opDeque
	outstandingLookups  int
	nextSequenceNumber  uint64
	deadline            time.Time
	timeout             time.Duration
	timeoutSet          bool
	forceConsistentRead bool
	flushCallback       func(errs.Status)
	bufferBytesUsed     int64
	maxBufferSize       int64

	txPrepared bool

	aggregator *errorAggregator

	locator          api.ShardLocator
	transport        api.RpcTransport
	transaction      api.TransactionContext
	readPoint        api.ReadPointClock
	callbackExecutor api.CallbackExecutor
	metrics          *metrics.Collector
	events           *pubsub.Broker[Event]
	allowFollowers   bool

	flushStarted time.Time
}

// New constructs a Batcher in the Gathering state.
func New(opts Options) *Batcher {
	maxBuf := opts.MaxBufferSize
	if maxBuf == 0 {
		maxBuf = DefaultMaxBufferSize
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Noop()
	}

	return &Batcher{
		id:             uuid.NewString(),
		state:          stateGathering,
		opsSet:         make(map[*inFlightOp]struct{}),
		readyQueue:     newOpDeque(),
		maxBufferSize:  maxBuf,
		aggregator:     newErrorAggregator(opts.ErrorSink, opts.CombineBatcherErrors, m),
		locator:        opts.ShardLocator,
		transport:      opts.Transport,
		transaction:    opts.Transaction,
		readPoint:      opts.ReadPoint,
		callbackExecutor: opts.CallbackExecutor,
		metrics:        m,
		events:         pubsub.NewBroker[Event](),
		allowFollowers: opts.AllowReadsFromFollowers,
	}
}

// Add admits op into the batch (spec.md §4.1).
func (b *Batcher) Add(op api.Operation) errs.Status {
	partitionKey, err := op.PartitionKey()
	if err != nil {
		return errs.Wrap(errs.KindBadKey, err)
	}

	b.mu.Lock()

	if b.state != stateGathering {
		b.mu.Unlock()
		return errs.New(errs.KindInvalidState, "Add called outside the Gathering state")
	}

	if op.HashPartitioned() {
		op.SetHashCode(decodeHashCode(partitionKey))
	}

	seq := b.nextSequenceNumber
	b.nextSequenceNumber++

	flight := newInFlightOp(op, partitionKey, seq)
	b.opsSet[flight] = struct{}{}
	b.outstandingLookups++
	b.bufferBytesUsed += op.EstimatedSize()

	deadline := b.effectiveDeadlineLocked(time.Now())

	var preShard api.ShardHandle
	var hasPreShard bool
	if prov, ok := op.(api.PreResolvedShardProvider); ok {
		preShard, hasPreShard = prov.PreResolvedShard()
	}

	table := op.Table()
	locator := b.locator

	if b.metrics != nil {
		b.metrics.BufferedOps.Set(float64(len(b.opsSet)))
		b.metrics.OutstandingLookups.Set(float64(b.outstandingLookups))
	}

	b.mu.Unlock()

	if hasPreShard && preShard != nil {
		// Shortcut directly to the lookup-done path (spec.md §4.1).
		b.onLookupSettled(flight, api.LookupResult{Shard: preShard})
		return errs.OK
	}

	if locator == nil {
		b.onLookupSettled(flight, api.LookupResult{Err: fmt.Errorf("no ShardLocator configured")})
		return errs.OK
	}

	locator.LookupByKey(context.Background(), table, partitionKey, deadline, func(result api.LookupResult) {
		b.onLookupSettled(flight, result)
	})

	return errs.OK
}

// SetTimeout stores the timeout used to derive the flush deadline.
func (b *Batcher) SetTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeout = d
	b.timeoutSet = true
}

// effectiveDeadlineLocked returns the batch's deadline if already set by
// FlushAsync, or an ad-hoc deadline derived from the current timeout
// (spec.md §5's "pre-flush deadline"). Caller must hold b.mu.
func (b *Batcher) effectiveDeadlineLocked(now time.Time) time.Time {
	if !b.deadline.IsZero() {
		return b.deadline
	}
	timeout := b.timeout
	if !b.timeoutSet || timeout <= 0 {
		timeout = DefaultTimeout
		logger.Warn("no timeout set before a lookup was needed, using default", "default", DefaultTimeout)
	}
	return now.Add(timeout)
}

// FlushAsync transitions Gathering -> Flushing and arranges for callback
// to fire exactly once, when every admitted op has settled or the batch
// is aborted (spec.md §4.1).
func (b *Batcher) FlushAsync(callback func(errs.Status)) {
	b.mu.Lock()

	if b.state != stateGathering {
		b.mu.Unlock()
		if callback != nil {
			go callback(errs.New(errs.KindInvalidState, "FlushAsync called outside the Gathering state"))
		}
		return
	}

	b.state = stateFlushing
	b.flushCallback = callback
	b.flushStarted = time.Now()

	timeout := b.timeout
	if !b.timeoutSet || timeout <= 0 {
		timeout = DefaultTimeout
		logger.Warn("FlushAsync called with no timeout set, defaulting", "default", DefaultTimeout)
	}
	b.deadline = time.Now().Add(timeout)

	empty := len(b.opsSet) == 0

	b.mu.Unlock()

	b.publish(Event{Kind: EventFlushing})

	if empty {
		b.runCompletionCheck()
		return
	}

	b.tryDispatch()
}

// Abort transitions the batch to Aborted (spec.md §4.1): every op still
// ReadyToDispatch is removed and reported Aborted; ops already
// Dispatched run to completion normally (spec.md §5's cancellation
// model), and ops still LookingUpShard will find the batch aborted when
// their lookup settles (see onLookupSettled).
func (b *Batcher) Abort(status errs.Status) {
	b.mu.Lock()

	if b.state == stateAborted || b.state == stateFlushed {
		b.mu.Unlock()
		return
	}
	b.state = stateAborted

	var toReport []*inFlightOp
	for flight := range b.opsSet {
		if flight.currentState() == opReadyToDispatch {
			toReport = append(toReport, flight)
			delete(b.opsSet, flight)
		}
	}

	cb := b.flushCallback
	b.flushCallback = nil

	b.mu.Unlock()

	for _, flight := range toReport {
		b.aggregator.record(flight.payload, errs.New(errs.KindAborted, "batch aborted before dispatch"))
	}

	b.fireTerminal(cb, status, EventAborted)
}

// HasPendingOperations reports whether any op is still admitted.
func (b *Batcher) HasPendingOperations() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.opsSet) > 0
}

// CountBufferedOperations returns the number of ops currently admitted
// while the batch is still Gathering. Per spec.md §4.1 the buffered count
// is zero once Flushing has begun, regardless of how many admitted ops
// have yet to settle.
func (b *Batcher) CountBufferedOperations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateGathering {
		return 0
	}
	return len(b.opsSet)
}

// BufferedBytes returns the running buffer_bytes_used total.
func (b *Batcher) BufferedBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bufferBytesUsed
}

// MaxBufferSize returns the configured max_buffer_size.
func (b *Batcher) MaxBufferSize() int64 {
	return b.maxBufferSize
}

// fireTerminal invokes the terminal callback exactly once, handed off to
// the CallbackExecutor if one is configured, falling back to running it
// inline if handoff fails (spec.md §5). No lock is held here.
func (b *Batcher) fireTerminal(cb func(errs.Status), status errs.Status, kind EventKind) {
	if !b.flushStarted.IsZero() && b.metrics != nil {
		b.metrics.FlushDuration.Observe(time.Since(b.flushStarted).Seconds())
	}

	b.publish(Event{Kind: kind, Status: status})

	if cb == nil {
		return
	}

	run := func() { cb(status) }
	if b.callbackExecutor != nil && b.callbackExecutor.Submit(run) {
		return
	}
	run()
}
