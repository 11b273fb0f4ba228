package batcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasisprotocol/tablebatch/api"
)

func flightFor(shard api.ShardHandle, group OpGroup, seq uint64, sidecar bool) *inFlightOp {
	op := &fakeOp{sidecar: sidecar}
	f := newInFlightOp(op, nil, seq)
	f.shard = shard
	f.group = group
	return f
}

// Property 3 (no reorder within shard/group): planRuns must keep ops
// with the same (shard, group) in ascending sequence-number order.
func TestPlanRunsOrdersWithinShardAndGroup(t *testing.T) {
	shardA := &fakeShard{id: "A"}

	flights := []*inFlightOp{
		flightFor(shardA, GroupWrite, 5, false),
		flightFor(shardA, GroupWrite, 2, false),
		flightFor(shardA, GroupWrite, 8, false),
	}

	runs := planRuns(flights, 0)
	require.Len(t, runs, 1)
	require.Len(t, runs[0].flights, 3)
	assert.Equal(t, uint64(2), runs[0].flights[0].sequenceNumber)
	assert.Equal(t, uint64(5), runs[0].flights[1].sequenceNumber)
	assert.Equal(t, uint64(8), runs[0].flights[2].sequenceNumber)
}

func TestPlanRunsSplitsByShardThenGroup(t *testing.T) {
	shardA := &fakeShard{id: "A"}
	shardB := &fakeShard{id: "B"}

	flights := []*inFlightOp{
		flightFor(shardA, GroupWrite, 0, false),
		flightFor(shardA, GroupLeaderRead, 1, false),
		flightFor(shardB, GroupWrite, 2, false),
	}

	runs := planRuns(flights, 0)
	require.Len(t, runs, 3)
	assert.Equal(t, "A", runs[0].shard.ShardID())
	assert.Equal(t, GroupWrite, runs[0].group)
	assert.Equal(t, "A", runs[1].shard.ShardID())
	assert.Equal(t, GroupLeaderRead, runs[1].group)
	assert.Equal(t, "B", runs[2].shard.ShardID())
}

// Sidecar cap: a run splits once it already holds MaxSidecarSlices
// sidecar-returning ops, even though shard and group are unchanged.
func TestPlanRunsSplitsOnSidecarCap(t *testing.T) {
	shardA := &fakeShard{id: "A"}

	flights := []*inFlightOp{
		flightFor(shardA, GroupWrite, 0, true),
		flightFor(shardA, GroupWrite, 1, true),
		flightFor(shardA, GroupWrite, 2, true),
	}

	runs := planRuns(flights, 2)
	require.Len(t, runs, 2)
	assert.Len(t, runs[0].flights, 2)
	assert.Len(t, runs[1].flights, 1)
}

func TestPlanRunsEmptyInputProducesNoRuns(t *testing.T) {
	runs := planRuns(nil, 10)
	assert.Empty(t, runs)
}
