package batcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// S4: a write RPC with 3 ops that returns a per-row error for index 1
// leaves ops 0 and 2 succeeded, op 1 recorded to the ErrorSink, and a
// non-OK terminal status.
func TestPerRowErrorsMapBackToOffendingOp(t *testing.T) {
	shard := &fakeShard{id: "A"}
	locator := newFakeLocator(shard)
	sink := &fakeErrorSink{}

	var targetOps []*fakeOp
	transport := newFakeTransport(func(run api.RunSpec) api.RpcResult {
		return api.RpcResult{
			Status: errs.OK,
			RowErrors: []api.RowError{
				{RowIndex: 1, Status: errs.New(errs.KindRowError, "row 1 failed")},
			},
		}
	})

	b := New(Options{ShardLocator: locator, Transport: transport, ErrorSink: sink})
	for i := 0; i < 3; i++ {
		op := writeOp(string(rune('a' + i)))
		targetOps = append(targetOps, op)
		require.True(t, b.Add(op).IsOK())
	}

	status := flushAndWait(t, b)
	assert.False(t, status.IsOK())

	entries := sink.snapshot()
	require.Len(t, entries, 1)
	assert.Same(t, targetOps[1], entries[0].op)
	assert.Equal(t, errs.KindRowError, entries[0].status.Kind)
}

func TestRpcLevelFailureReportsEveryOpInRun(t *testing.T) {
	shard := &fakeShard{id: "A"}
	locator := newFakeLocator(shard)
	sink := &fakeErrorSink{}

	transport := newFakeTransport(func(run api.RunSpec) api.RpcResult {
		return api.RpcResult{Status: errs.New(errs.KindRpcFailed, "transport down")}
	})

	b := New(Options{ShardLocator: locator, Transport: transport, ErrorSink: sink})
	require.True(t, b.Add(writeOp("a")).IsOK())
	require.True(t, b.Add(writeOp("b")).IsOK())

	status := flushAndWait(t, b)
	assert.False(t, status.IsOK())

	entries := sink.snapshot()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, errs.KindRpcFailed, e.status.Kind)
	}
}

func TestSuccessfulResponseAdvancesReadPoint(t *testing.T) {
	shard := &fakeShard{id: "A"}
	locator := newFakeLocator(shard)
	readPoint := &fakeReadPoint{}

	transport := newFakeTransport(func(run api.RunSpec) api.RpcResult {
		return api.RpcResult{Status: errs.OK, PropagatedHybridTime: 42, HasPropagatedTime: true}
	})

	b := New(Options{ShardLocator: locator, Transport: transport, ReadPoint: readPoint})
	require.True(t, b.Add(readOp("a", api.KindReadCacheStyle)).IsOK())

	status := flushAndWait(t, b)
	assert.True(t, status.IsOK())

	readPoint.mu.Lock()
	assert.Equal(t, uint64(42), readPoint.last)
	readPoint.mu.Unlock()
}

func TestOutOfRangeRowIndexIsSkippedNotFatal(t *testing.T) {
	shard := &fakeShard{id: "A"}
	locator := newFakeLocator(shard)
	sink := &fakeErrorSink{}

	transport := newFakeTransport(func(run api.RunSpec) api.RpcResult {
		return api.RpcResult{
			Status: errs.OK,
			RowErrors: []api.RowError{
				{RowIndex: 99, Status: errs.New(errs.KindRowError, "bogus index")},
			},
		}
	})

	b := New(Options{ShardLocator: locator, Transport: transport, ErrorSink: sink})
	require.True(t, b.Add(writeOp("a")).IsOK())

	status := flushAndWait(t, b)
	assert.True(t, status.IsOK(), "an out-of-range row error must not be recorded against anything")
	assert.Empty(t, sink.snapshot())
}
