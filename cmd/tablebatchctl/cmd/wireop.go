package cmd

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/oasisprotocol/tablebatch/api"
)

// cliOp is the one api.Operation implementation this command line tool
// ever adds. It also implements grpc.WireMarshaler so the same value can
// be dispatched either against no transport at all (sanity-checking the
// locator/grouping wiring alone) or against a real transport/grpc.Client
// dialed at a `serve` instance via --grpc-addr.
type cliOp struct {
	Key []byte `cbor:"key"`
}

func (o *cliOp) Table() api.TableRef           { return api.TableRef{Name: "simulate"} }
func (o *cliOp) Kind() api.OperationKind       { return api.KindWrite }
func (o *cliOp) IsWrite() bool                 { return true }
func (o *cliOp) PartitionKey() ([]byte, error) { return o.Key, nil }
func (o *cliOp) ReturnsSidecar() bool          { return false }
func (o *cliOp) HashPartitioned() bool         { return false }
func (o *cliOp) SetHashCode(uint16)            {}
func (o *cliOp) EstimatedSize() int64          { return int64(len(o.Key)) }

// MarshalWire implements transport/grpc.WireMarshaler.
func (o *cliOp) MarshalWire() ([]byte, error) { return cbor.Marshal(o) }

// decodeCliOp reconstructs a cliOp from the bytes MarshalWire produced.
// Used on the `serve` side, which never sees a *cliOp value directly.
func decodeCliOp(payload []byte) (api.Operation, error) {
	var o cliOp
	if err := cbor.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("decode cli op: %w", err)
	}
	return &o, nil
}
