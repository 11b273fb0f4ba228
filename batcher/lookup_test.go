package batcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// manualLocator hands back a fixed shard but only invokes each
// callback when the test explicitly calls settleOne, letting the test
// observe batcher state between lookups settling.
type manualLocator struct {
	shard   api.ShardHandle
	pending []func(api.LookupResult)
}

func (l *manualLocator) LookupByKey(ctx context.Context, table api.TableRef, partitionKey []byte, deadline time.Time, callback func(api.LookupResult)) {
	l.pending = append(l.pending, callback)
}

func (l *manualLocator) settleOne() {
	if len(l.pending) == 0 {
		return
	}
	cb := l.pending[0]
	l.pending = l.pending[1:]
	cb(api.LookupResult{Shard: l.shard})
}

// Property 1 (lookup rendezvous): no RPC is dispatched while any lookup
// is still outstanding, even if FlushAsync was already called.
func TestRendezvousBlocksDispatchUntilAllLookupsSettle(t *testing.T) {
	shard := &fakeShard{id: "A"}
	manual := &manualLocator{shard: shard}

	transport := newFakeTransport(func(run api.RunSpec) api.RpcResult { return okResult() })
	b := New(Options{ShardLocator: manual, Transport: transport})

	for i := 0; i < 3; i++ {
		require.True(t, b.Add(writeOp("k")).IsOK())
	}

	done := make(chan errs.Status, 1)
	b.FlushAsync(func(status errs.Status) { done <- status })

	assert.Empty(t, transport.recordedRuns(), "no RPC before any lookup settles")

	manual.settleOne()
	assert.Empty(t, transport.recordedRuns(), "still no RPC with 2 lookups outstanding")

	manual.settleOne()
	assert.Empty(t, transport.recordedRuns(), "still no RPC with 1 lookup outstanding")

	manual.settleOne()

	select {
	case status := <-done:
		assert.True(t, status.IsOK())
	case <-time.After(time.Second):
		t.Fatal("flush did not settle after the last lookup resolved")
	}
	assert.Len(t, transport.recordedRuns(), 1)
}

// A lookup failure removes the op and reports LookupFailed
// without blocking the rest of the batch from dispatching.
func TestLookupFailureReportsAndContinues(t *testing.T) {
	shard := &fakeShard{id: "A"}
	calls := 0
	locator := &fakeLocator{shardFor: func(key []byte) (api.ShardHandle, error) {
		calls++
		if string(key) == "bad" {
			return nil, assert.AnError
		}
		return shard, nil
	}}
	sink := &fakeErrorSink{}
	transport := newFakeTransport(func(run api.RunSpec) api.RpcResult { return okResult() })

	b := New(Options{ShardLocator: locator, Transport: transport, ErrorSink: sink})
	require.True(t, b.Add(writeOp("good")).IsOK())
	require.True(t, b.Add(writeOp("bad")).IsOK())

	status := flushAndWait(t, b)
	assert.False(t, status.IsOK())

	entries := sink.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, errs.KindLookupFailed, entries[0].status.Kind)

	runs := transport.recordedRuns()
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Ops, 1)
}
