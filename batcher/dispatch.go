package batcher

import (
	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
	"github.com/oasisprotocol/tablebatch/internal/tracelog"
)

// sendRun turns one GroupingPlanner run into a Write or Read RPC via
// RpcTransport (spec.md §4.5). Ops are marked Dispatched by the caller
// (tryDispatch, while still holding the Batcher lock) before this runs;
// ResponseProcessor (response.go) reclaims them on completion.
func (b *Batcher) sendRun(run dispatchRun, needConsistent, allowLocal bool) {
	ops := make([]api.Operation, len(run.flights))
	for i, flight := range run.flights {
		ops[i] = flight.payload
	}

	spec := api.RunSpec{
		Shard:          run.shard,
		Group:          run.group,
		Ops:            ops,
		AllowLocal:     allowLocal,
		NeedConsistent: needConsistent,
	}

	completion := func(result api.RpcResult) {
		b.processResponse(run.flights, result)
	}

	tracelog.RpcSent(run.shard.ShardID(), run.group.String(), len(ops), allowLocal, needConsistent)

	if b.metrics != nil {
		b.metrics.DispatchedRPCsTotal.WithLabelValues(run.group.String()).Inc()
	}

	var handle api.RpcHandle
	if b.transport != nil {
		switch run.group {
		case GroupWrite:
			handle = b.transport.WriteRpc(spec, completion)
		default:
			handle = b.transport.ReadRpc(spec, completion)
		}
	}

	if handle != nil {
		handle.SendRpc()
	} else {
		// Construction itself failed: report identically to an RPC-level
		// failure (spec.md §4.5's "Failures before send are reported
		// identically to RPC-level failures").
		b.processResponse(run.flights, api.RpcResult{
			Status: errs.New(errs.KindRpcFailed, "transport failed to construct RPC"),
		})
	}
}
