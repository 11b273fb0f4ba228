package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	bolt "go.etcd.io/bbolt"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/batcher"
	"github.com/oasisprotocol/tablebatch/errorsink"
	"github.com/oasisprotocol/tablebatch/errs"
	"github.com/oasisprotocol/tablebatch/metrics"
	"github.com/oasisprotocol/tablebatch/shardlocator"
	grpctransport "github.com/oasisprotocol/tablebatch/transport/grpc"
)

var (
	simulateOpCount  int
	simulateGrpcAddr string
	simulateErrorsDB string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Add a batch of synthetic ops against an in-memory locator and report the outcome",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simulateOpCount, "ops", 10, "number of synthetic write ops to add")
	simulateCmd.Flags().StringVar(&simulateGrpcAddr, "grpc-addr", "", "dial a running `serve` instance at this address instead of leaving the transport unconfigured")
	simulateCmd.Flags().StringVar(&simulateErrorsDB, "error-db", "", "path to a bbolt file for a durable error sink instead of the in-memory one")
}

func runSimulate(_ *cobra.Command, _ []string) error {
	locator := shardlocator.New(shardlocator.DefaultConfig())
	locator.SetRanges([]shardlocator.Range{
		{Start: nil, End: []byte{0x80}, Shard: &shardlocator.Shard{ID: "shard-0", LeaderAddr: "127.0.0.1:7000"}},
		{Start: []byte{0x80}, End: nil, Shard: &shardlocator.Shard{ID: "shard-1", LeaderAddr: "127.0.0.1:7001"}},
	})

	sink, closeSink, err := buildErrorSink()
	if err != nil {
		return err
	}
	defer closeSink()

	transport, closeTransport, err := buildTransport()
	if err != nil {
		return err
	}
	defer closeTransport()

	b := batcher.New(batcher.Options{
		ShardLocator:            locator,
		ErrorSink:               sink,
		Transport:               transport,
		Metrics:                 metrics.Noop(),
		MaxBufferSize:           cfg.MaxBufferSize,
		AllowReadsFromFollowers: cfg.AllowReadsFromFollowers,
		CombineBatcherErrors:    cfg.CombineBatcherErrors,
	})
	b.SetTimeout(cfg.DefaultTimeout)

	for i := 0; i < simulateOpCount; i++ {
		op := &cliOp{Key: []byte(fmt.Sprintf("key-%04d", i))}
		if status := b.Add(op); !status.IsOK() {
			fmt.Printf("add rejected: %s\n", status.Error())
		}
	}

	done := make(chan errs.Status, 1)
	b.FlushAsync(func(status errs.Status) { done <- status })

	select {
	case status := <-done:
		fmt.Printf("flush settled: %s\n", status.Error())
	case <-time.After(cfg.DefaultTimeout + 5*time.Second):
		fmt.Println("flush did not settle before the watchdog timeout")
	}

	fmt.Printf("errors recorded: %d\n", sink.Len())
	return nil
}

// errorCounterSink is the subset of errorsink.Memory/errorsink.Bolt that
// runSimulate needs to report a count; Bolt doesn't track an in-memory
// length, so its count comes from Entries() instead.
type errorCounterSink interface {
	api.ErrorSink
	Len() int
}

// boltSinkAdapter adapts errorsink.Bolt (whose Entries returns an error)
// to errorCounterSink for this command's reporting purposes only.
type boltSinkAdapter struct{ *errorsink.Bolt }

func (a boltSinkAdapter) Len() int {
	entries, err := a.Entries()
	if err != nil {
		return -1
	}
	return len(entries)
}

func buildErrorSink() (errorCounterSink, func(), error) {
	if simulateErrorsDB == "" {
		return errorsink.NewMemory(), func() {}, nil
	}

	db, err := bolt.Open(simulateErrorsDB, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("open error db: %w", err)
	}

	sink, err := errorsink.NewBolt(db, []byte("errors"))
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open error bucket: %w", err)
	}

	return boltSinkAdapter{sink}, func() { db.Close() }, nil
}

func buildTransport() (api.RpcTransport, func(), error) {
	if simulateGrpcAddr == "" {
		// No RpcTransport means every dispatch attempt is reported as an
		// RPC-level construction failure, useful for sanity-checking the
		// locator/grouping wiring alone.
		return nil, func() {}, nil
	}

	conn, err := grpc.Dial(simulateGrpcAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(grpctransport.CodecName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", simulateGrpcAddr, err)
	}

	return grpctransport.NewClient(conn, 8), func() { conn.Close() }, nil
}
