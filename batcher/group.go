package batcher

import "github.com/oasisprotocol/tablebatch/api"

// OpGroup is purely a function of op kind, read-only flag, and the
// allow-reads-from-followers configuration (spec.md §3).
type OpGroup = api.OperationGroup

const (
	GroupWrite                = api.GroupWrite
	GroupLeaderRead           = api.GroupLeaderRead
	GroupConsistentPrefixRead = api.GroupConsistentPrefixRead
)

// classify derives an op's OpGroup from its kind and the batch's
// allow-reads-from-followers setting (spec.md §3/§9's "two axes: {read,
// write} x {leader-only, follower-ok}"). Cache-style reads are the
// follower-ok axis: LeaderRead unless follower reads are allowed, in
// which case they become eligible for ConsistentPrefixRead routing.
// Relational reads are the leader-only axis but still read at the
// consistent-prefix level unconditionally, since SQL-style reads need
// that ordering guarantee regardless of the follower-routing setting.
func classify(op api.Operation, allowFollowers bool) OpGroup {
	if op.IsWrite() {
		return GroupWrite
	}

	switch op.Kind() {
	case api.KindReadCacheStyle:
		if allowFollowers {
			return GroupConsistentPrefixRead
		}
		return GroupLeaderRead
	case api.KindReadRelational:
		return GroupConsistentPrefixRead
	default:
		return GroupLeaderRead
	}
}
