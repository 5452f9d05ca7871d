package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devblac/state-lens/internal/lens"
)

var (
	flagKeys   []string
	flagTx     string
	flagWhere  []string
	flagCached bool
)

func init() {
	inspectCmd.Flags().StringArrayVar(&flagKeys, "key", nil, "Extra base64 LedgerKey to fetch (repeatable)")
	inspectCmd.Flags().StringVar(&flagTx, "tx", "", "Base64 transaction envelope; its simulated footprint is fetched too")
	inspectCmd.Flags().StringArrayVar(&flagWhere, "where", nil, `Filter entries, e.g. "status in added,changed" (repeatable)`)
	inspectCmd.Flags().BoolVar(&flagCached, "cached", false, "Print the cached snapshot without calling RPC")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <contract-id>",
	Short: "Fetch, normalize and diff a contract's ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preds, err := lens.CompileFilter(flagWhere)
		if err != nil {
			return fmt.Errorf("--where: %w", err)
		}

		a, err := newApp(cmd.Context(), needs{rpc: true})
		if err != nil {
			return err
		}
		defer a.close()

		var res *lens.Inspection
		switch {
		case flagCached:
			entries, err := a.explorer.Cached(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res = &lens.Inspection{ContractID: args[0], Entries: entries}
		case flagTx != "":
			res, err = a.explorer.InspectFootprint(cmd.Context(), args[0], flagTx)
		default:
			res, err = a.explorer.Inspect(cmd.Context(), args[0], flagKeys...)
		}
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}

		res.Entries, err = lens.Filter(res.Entries, preds)
		if err != nil {
			return err
		}
		if res.Entries == nil {
			res.Entries = []lens.Entry{}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
