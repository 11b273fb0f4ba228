// Command tablebatchctl drives a Batcher from the command line for
// manual exercising against a running table-store deployment: it wires
// together the reference ShardLocator, grpc transport, and error sink
// collaborators, reading its configuration the way the rest of this
// module's daemons do (flags, environment, optional config file).
package main

import (
	"fmt"
	"os"

	"github.com/oasisprotocol/tablebatch/cmd/tablebatchctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
