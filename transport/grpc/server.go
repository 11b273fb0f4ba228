package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
	"github.com/oasisprotocol/tablebatch/internal/logging"
)

var serverLogger = logging.GetLogger("transport/grpc")

const serviceName = "tablebatch.Batcher"

// Applier is the server-side collaborator: it actually executes a run
// against local or replicated storage and returns the outcome. Handed
// the decoded RunSpec with Ops already reconstructed via opDecoder.
type Applier interface {
	Apply(ctx context.Context, run api.RunSpec) api.RpcResult
}

// opDecoder reconstructs an api.Operation from the opaque bytes a
// WireMarshaler produced on the client side. Required because this
// package cannot know the caller's concrete Operation type.
type opDecoder func(payload []byte) (api.Operation, error)

// Server adapts an Applier to the wire protocol over a *grpc.Server.
type Server struct {
	applier Applier
	decode  opDecoder
}

// NewServer constructs a Server. Register it onto a *grpc.Server with
// Register before calling Serve.
func NewServer(applier Applier, decode opDecoder) *Server {
	return &Server{applier: applier, decode: decode}
}

// Register attaches this server's handlers to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Write", Handler: writeHandler},
		{MethodName: "Read", Handler: readHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tablebatch.proto",
}

func writeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return handleRun(srv.(*Server), ctx, dec, interceptor)
}

func readHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return handleRun(srv.(*Server), ctx, dec, interceptor)
}

func handleRun(s *Server, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	var req wireRunRequest
	if err := dec(&req); err != nil {
		return nil, err
	}

	run := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.apply(ctx, req.(wireRunRequest)), nil
	}

	if interceptor == nil {
		out, err := run(ctx, req)
		if err != nil {
			return nil, err
		}
		resp := out.(wireRunResponse)
		return &resp, nil
	}

	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/" + serviceName + "/Write"}
	out, err := interceptor(ctx, req, info, run)
	if err != nil {
		return nil, err
	}
	resp := out.(wireRunResponse)
	return &resp, nil
}

func (s *Server) apply(ctx context.Context, req wireRunRequest) wireRunResponse {
	ops := make([]api.Operation, len(req.Ops))
	for i, payload := range req.Ops {
		op, err := s.decode(payload)
		if err != nil {
			serverLogger.Warn("failed to decode op from wire payload", "err", err, "index", i)
			return toWireResponse(api.RpcResult{Status: decodeFailureStatus(err)})
		}
		ops[i] = op
	}

	run := api.RunSpec{
		Shard:          wireShardHandle{id: req.ShardID},
		Group:          api.OperationGroup(req.Group),
		Ops:            ops,
		AllowLocal:     req.AllowLocal,
		NeedConsistent: req.NeedConsistent,
	}

	result := s.applier.Apply(ctx, run)
	return toWireResponse(result)
}

// wireShardHandle is the server-side reconstruction of an api.ShardHandle:
// only the identity survives the wire, since the leader address is a
// client-side routing concern.
type wireShardHandle struct {
	id string
}

func (h wireShardHandle) ShardID() string { return h.id }
func (h wireShardHandle) Leader() string  { return "" }

func decodeFailureStatus(err error) errs.Status {
	return errs.Wrap(errs.KindRpcFailed, err)
}
