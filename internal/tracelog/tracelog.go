// Package tracelog is a secondary, high-volume structured logger used
// only by the Dispatcher to record one entry per RPC send/receive. It is
// deliberately separate from internal/logging: component logs are
// low-volume operational logs meant for a console/aggregator, while RPC
// trace entries are dense enough that a caller may want to ship them
// somewhere else entirely (a sampling sink, an analytics pipeline). Two
// distinct logging libraries in one codebase is an observed pattern in
// the corpus this module imitates, not an accident.
package tracelog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.Mutex
	log *zap.Logger
)

func logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if log == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		log = l
	}
	return log
}

// SetLogger overrides the process-wide trace logger, e.g. to route RPC
// traces to a test observer or a different zap core in tests.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// RpcSent records that a run was handed to the transport for dispatch.
func RpcSent(shardID, group string, opCount int, allowLocal, needConsistent bool) {
	logger().Debug("rpc_sent",
		zap.String("shard", shardID),
		zap.String("op_group", group),
		zap.Int("op_count", opCount),
		zap.Bool("allow_local", allowLocal),
		zap.Bool("need_consistent", needConsistent),
	)
}

// RpcSettled records that a run's RPC completed, successfully or not.
func RpcSettled(shardID, group string, opCount int, ok bool, errKind string) {
	logger().Debug("rpc_settled",
		zap.String("shard", shardID),
		zap.String("op_group", group),
		zap.Int("op_count", opCount),
		zap.Bool("ok", ok),
		zap.String("err_kind", errKind),
	)
}
