package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and ping the Soroban RPC endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		a, err := newApp(cmd.Context(), needs{rpc: true})
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		defer a.close()
		fmt.Fprintf(out, "config OK (version %d)\n", a.cfg.Version)
		fmt.Fprintf(out, "- network %s: %s\n", a.net.ID, a.net.RPCURL)

		failures := 0
		hr, err := a.client.GetHealth(cmd.Context())
		if err != nil {
			failures++
			fmt.Fprintf(out, "- rpc health: ERROR %v\n", err)
		} else {
			fmt.Fprintf(out, "- rpc health: %s (latest ledger %d)\n", hr.Status, hr.LatestLedger)
		}

		info, err := a.client.GetNetwork(cmd.Context())
		switch {
		case err != nil:
			failures++
			fmt.Fprintf(out, "- rpc network: ERROR %v\n", err)
		case info.Passphrase != a.net.Passphrase:
			failures++
			fmt.Fprintf(out, "- rpc network: passphrase mismatch (rpc %q, configured %q)\n", info.Passphrase, a.net.Passphrase)
		default:
			fmt.Fprintf(out, "- rpc network: protocol %d OK\n", info.ProtocolVersion)
		}

		if _, perr := a.worker.Ping(cmd.Context()); perr != nil {
			failures++
			fmt.Fprintf(out, "- decoder: ERROR %v\n", perr)
		} else {
			fmt.Fprintln(out, "- decoder: OK")
		}

		if failures > 0 {
			return fmt.Errorf("validate: %d check(s) failed", failures)
		}
		fmt.Fprintln(out, "validate: success")
		return nil
	},
}
