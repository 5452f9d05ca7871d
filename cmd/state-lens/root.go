package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath     string
	logLevel    string
	flagNetwork string
	flagRPCURL  string
	rootCmd     = &cobra.Command{
		Use:   "state-lens",
		Short: "Inspect and normalize Soroban contract state",
	}
)

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&flagNetwork, "network", "n", "", "Network preset override (futurenet, testnet, mainnet)")
	rootCmd.PersistentFlags().StringVar(&flagRPCURL, "rpc-url", "", "Soroban RPC URL override")

	rootCmd.AddCommand(
		versionCmd,
		validateCmd,
		decodeCmd,
		inspectCmd,
		networksCmd,
		serveCmd,
	)
}

// Execute runs the root command tree.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
