package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// Client is a reference api.RpcTransport dialed against a single
// *grpc.ClientConn. Construction of the wire request happens eagerly in
// WriteRpc/ReadRpc; the actual network call is deferred to SendRpc, per
// the RpcHandle contract.
type Client struct {
	conn             *grpc.ClientConn
	maxSidecarSlices int
}

// NewClient wraps an already-dialed connection. Dial it with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)) so
// calls negotiate the CBOR codec this package registers.
func NewClient(conn *grpc.ClientConn, maxSidecarSlices int) *Client {
	if maxSidecarSlices <= 0 {
		maxSidecarSlices = 1
	}
	return &Client{conn: conn, maxSidecarSlices: maxSidecarSlices}
}

// MaxSidecarSlices implements api.RpcTransport.
func (c *Client) MaxSidecarSlices() int { return c.maxSidecarSlices }

// WriteRpc implements api.RpcTransport.
func (c *Client) WriteRpc(run api.RunSpec, completion func(api.RpcResult)) api.RpcHandle {
	return c.buildHandle("/"+serviceName+"/Write", run, completion)
}

// ReadRpc implements api.RpcTransport.
func (c *Client) ReadRpc(run api.RunSpec, completion func(api.RpcResult)) api.RpcHandle {
	return c.buildHandle("/"+serviceName+"/Read", run, completion)
}

func (c *Client) buildHandle(method string, run api.RunSpec, completion func(api.RpcResult)) api.RpcHandle {
	req, err := toWireRequest(run)
	if err != nil {
		// Construction failed before a call could even be attempted;
		// returning nil tells the dispatcher to treat this as an
		// RPC-level failure (spec.md §4.5).
		return nil
	}

	return &rpcHandle{
		send: func() {
			var resp wireRunResponse
			callErr := c.conn.Invoke(context.Background(), method, &req, &resp)
			if callErr != nil {
				completion(api.RpcResult{Status: errs.Wrap(errs.KindRpcFailed, callErr)})
				return
			}
			completion(fromWireResponse(resp))
		},
	}
}

type rpcHandle struct {
	send func()
}

// SendRpc implements api.RpcHandle.
func (h *rpcHandle) SendRpc() {
	go h.send()
}
