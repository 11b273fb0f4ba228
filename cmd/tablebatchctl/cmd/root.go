// Package cmd holds tablebatchctl's cobra command tree.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oasisprotocol/tablebatch/config"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tablebatchctl",
	Short: "Exercise a client-side write/read batcher against a table store",
}

// Execute runs the command tree, returning the first error encountered.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (optional)")
	config.BindFlags(rootCmd.PersistentFlags())

	cobra.OnInitialize(func() {
		loaded, err := config.Load(cfgFile, rootCmd.PersistentFlags())
		if err != nil {
			cobra.CheckErr(err)
			return
		}
		cfg = loaded
	})

	rootCmd.AddCommand(simulateCmd)
}
