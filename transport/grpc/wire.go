// Package grpc is a reference api.RpcTransport over google.golang.org/grpc,
// using a custom CBOR codec in place of generated protobuf stubs: ops are
// carried as opaque, per-op CBOR payloads the caller's Operation type
// produces itself, so this package never needs to know their concrete shape.
package grpc

import (
	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// WireMarshaler is the capability an Operation must implement to cross
// this transport: ops that don't implement it cannot be dispatched over
// grpc and are reported as a construction failure.
type WireMarshaler interface {
	MarshalWire() ([]byte, error)
}

// wireRunRequest is the CBOR-encoded form of an api.RunSpec.
type wireRunRequest struct {
	ShardID        string   `cbor:"shard_id"`
	Group          int      `cbor:"group"`
	AllowLocal     bool     `cbor:"allow_local"`
	NeedConsistent bool     `cbor:"need_consistent"`
	Ops            [][]byte `cbor:"ops"`
}

// wireRowError is the CBOR-encoded form of an api.RowError.
type wireRowError struct {
	RowIndex int    `cbor:"row_index"`
	Kind     int    `cbor:"kind"`
	Message  string `cbor:"message"`
}

// wireRunResponse is the CBOR-encoded form of an api.RpcResult.
type wireRunResponse struct {
	StatusKind           int            `cbor:"status_kind"`
	StatusMessage        string         `cbor:"status_message"`
	RowErrors            []wireRowError `cbor:"row_errors"`
	PropagatedHybridTime uint64         `cbor:"propagated_hybrid_time"`
	HasPropagatedTime    bool           `cbor:"has_propagated_time"`
}

func toWireRequest(run api.RunSpec) (wireRunRequest, error) {
	req := wireRunRequest{
		ShardID:        run.Shard.ShardID(),
		Group:          int(run.Group),
		AllowLocal:     run.AllowLocal,
		NeedConsistent: run.NeedConsistent,
		Ops:            make([][]byte, len(run.Ops)),
	}
	for i, op := range run.Ops {
		wm, ok := op.(WireMarshaler)
		if !ok {
			return wireRunRequest{}, errNotWireMarshalable
		}
		payload, err := wm.MarshalWire()
		if err != nil {
			return wireRunRequest{}, err
		}
		req.Ops[i] = payload
	}
	return req, nil
}

func fromWireResponse(resp wireRunResponse) api.RpcResult {
	result := api.RpcResult{
		PropagatedHybridTime: resp.PropagatedHybridTime,
		HasPropagatedTime:    resp.HasPropagatedTime,
	}
	if resp.StatusKind != int(errs.KindNone) {
		result.Status = errs.New(errs.Kind(resp.StatusKind), resp.StatusMessage)
	}
	result.RowErrors = make([]api.RowError, len(resp.RowErrors))
	for i, re := range resp.RowErrors {
		result.RowErrors[i] = api.RowError{
			RowIndex: re.RowIndex,
			Status:   errs.New(errs.Kind(re.Kind), re.Message),
		}
	}
	return result
}

func toWireResponse(result api.RpcResult) wireRunResponse {
	resp := wireRunResponse{
		StatusKind:           int(result.Status.Kind),
		StatusMessage:        result.Status.Message,
		PropagatedHybridTime: result.PropagatedHybridTime,
		HasPropagatedTime:    result.HasPropagatedTime,
	}
	resp.RowErrors = make([]wireRowError, len(result.RowErrors))
	for i, re := range result.RowErrors {
		resp.RowErrors[i] = wireRowError{RowIndex: re.RowIndex, Kind: int(re.Status.Kind), Message: re.Status.Message}
	}
	return resp
}

var errNotWireMarshalable = errs.New(errs.KindRpcFailed, "operation does not implement grpc.WireMarshaler")
