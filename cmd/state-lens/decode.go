package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devblac/state-lens/internal/decoder"
)

var (
	flagAsAddress bool
	flagWire      bool
)

func init() {
	decodeCmd.Flags().BoolVar(&flagAsAddress, "address", false, "Decode each value as an ScvAddress")
	decodeCmd.Flags().BoolVar(&flagWire, "wire", false, `Inputs are JSON requests ({"scVal":...,"asAddress":...}) instead of base64 XDR`)
}

var decodeCmd = &cobra.Command{
	Use:   "decode [input...]",
	Short: "Normalize ScVals given as base64 XDR (args or stdin lines)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), needs{decoder: true})
		if err != nil {
			return err
		}
		defer a.close()

		inputs := args
		if len(inputs) == 0 {
			inputs, err = readLines(cmd.InOrStdin())
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		failures := 0
		for _, in := range inputs {
			var res decoder.Result
			if flagWire {
				req, err := decoder.ParseRequest([]byte(in))
				if err != nil {
					res = decoder.Result{Err: &decoder.Error{Code: decoder.CodeInvalidRequest, Message: err.Error()}}
				} else {
					res = a.worker.Normalize(cmd.Context(), req)
				}
			} else {
				res = a.worker.NormalizeXDR(cmd.Context(), in, flagAsAddress)
			}
			if res.IsError() {
				failures++
				a.log.Warn("decode failed", "code", res.Err.Code, "error", res.Err.Message)
			}
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
		if failures > 0 {
			return fmt.Errorf("decode: %d of %d input(s) failed", failures, len(inputs))
		}
		return nil
	},
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return out, nil
}
