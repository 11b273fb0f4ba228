package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
	grpctransport "github.com/oasisprotocol/tablebatch/transport/grpc"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a reference gRPC Applier backed by an in-memory row store",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7050", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	lis, err := net.Listen("tcp", serveAddr)
	if err != nil {
		return err
	}

	gs := grpc.NewServer()
	grpctransport.NewServer(newMemoryApplier(), decodeCliOp).Register(gs)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(lis) }()

	fmt.Printf("serving on %s\n", serveAddr)
	select {
	case <-ctx.Done():
		gs.GracefulStop()
		return nil
	case serveErr := <-errCh:
		return serveErr
	}
}

// memoryApplier is the reference transport/grpc.Applier: every write op
// lands in an in-memory map keyed by table name and partition key, so
// `serve` is runnable standalone with no external storage dependency.
type memoryApplier struct {
	mu   sync.Mutex
	rows map[string][]byte
}

func newMemoryApplier() *memoryApplier {
	return &memoryApplier{rows: make(map[string][]byte)}
}

func (a *memoryApplier) Apply(_ context.Context, run api.RunSpec) api.RpcResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, op := range run.Ops {
		if !op.IsWrite() {
			continue
		}
		key, err := op.PartitionKey()
		if err != nil {
			continue
		}
		a.rows[op.Table().Name+"/"+string(key)] = key
	}

	return api.RpcResult{Status: errs.OK}
}
