package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devblac/state-lens/internal/network"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List network presets and the active network",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), needs{store: true})
		if err != nil {
			return err
		}
		defer a.close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRPC URL\tPASSPHRASE")
		for _, id := range network.PresetIDs() {
			p, _ := network.ResolvePreset(id)
			marker := " "
			if p.ID == a.net.ID {
				marker = "*"
			}
			fmt.Fprintf(tw, "%s %s\t%s\t%s\n", marker, p.ID, p.RPCURL, p.Passphrase)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if last, ok, err := a.store.LastCustomURL(cmd.Context()); err == nil && ok {
			fmt.Fprintf(cmd.OutOrStdout(), "last custom rpc: %s\n", last)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active: %s (%s)\n", a.net.ID, a.net.RPCURL)
		return nil
	},
}

var networksUseCmd = &cobra.Command{
	Use:   "use <preset>",
	Short: "Persist a preset (plus --rpc-url) as the default network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preset, ok := network.ResolvePreset(args[0])
		if !ok {
			return fmt.Errorf("unknown network %q", args[0])
		}
		a, err := newApp(cmd.Context(), needs{store: true})
		if err != nil {
			return err
		}
		defer a.close()

		if flagRPCURL != "" {
			url, ok := network.SanitizeRPCURL(flagRPCURL)
			if !ok {
				return fmt.Errorf("--rpc-url: %w", network.ValidateRPCURL(flagRPCURL))
			}
			preset.RPCURL = network.NormalizeRPCURL(url)
			if err := a.store.SaveNetworkConfig(cmd.Context(), preset); err != nil {
				return err
			}
			if err := a.store.SetLastCustomURL(cmd.Context(), preset.RPCURL); err != nil {
				return err
			}
		} else if err := a.store.SaveNetworkConfig(cmd.Context(), preset); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "network set to %s (%s)\n", preset.ID, preset.RPCURL)
		return nil
	},
}

func init() {
	networksCmd.AddCommand(networksUseCmd)
}
