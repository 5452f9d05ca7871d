package rpc

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/stellar/go-stellar-sdk/xdr"
)

// SimulateResponse is the simulateTransaction result. Servers report the
// footprint inside TransactionData; Footprint is accepted for callers that
// already split it out.
type SimulateResponse struct {
	TransactionData string           `json:"transactionData,omitempty"`
	MinResourceFee  string           `json:"minResourceFee,omitempty"`
	Results         []SimulateOutput `json:"results,omitempty"`
	Footprint       *Footprint       `json:"footprint,omitempty"`
	Error           string           `json:"error,omitempty"`
	LatestLedger    *uint32          `json:"latestLedger,omitempty"`
}

// SimulateOutput is one host function result.
type SimulateOutput struct {
	Auth []json.RawMessage `json:"auth,omitempty"`
	XDR  string            `json:"xdr,omitempty"`
}

// Footprint lists the base64 LedgerKeys a transaction reads and writes.
type Footprint struct {
	ReadOnly  []string `json:"readOnly"`
	ReadWrite []string `json:"readWrite"`
}

// SimulateResult is a simulation reduced to what discovery needs.
type SimulateResult struct {
	Success      bool             `json:"success"`
	LatestLedger *uint32          `json:"latestLedger,omitempty"`
	Results      []SimulateOutput `json:"results,omitempty"`
	Footprint    *Footprint       `json:"footprint,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// AdaptSimulation turns a raw response into a SimulateResult. A nil response
// or one carrying an error is unsuccessful.
func AdaptSimulation(resp *SimulateResponse) SimulateResult {
	if resp == nil {
		return SimulateResult{Error: "No response provided"}
	}
	if resp.Error != "" {
		return SimulateResult{Error: resp.Error}
	}

	fp := Footprint{ReadOnly: []string{}, ReadWrite: []string{}}
	switch {
	case resp.Footprint != nil:
		if resp.Footprint.ReadOnly != nil {
			fp.ReadOnly = resp.Footprint.ReadOnly
		}
		if resp.Footprint.ReadWrite != nil {
			fp.ReadWrite = resp.Footprint.ReadWrite
		}
	case resp.TransactionData != "":
		decoded, err := FootprintFromTransactionData(resp.TransactionData)
		if err != nil {
			return SimulateResult{Error: err.Error()}
		}
		fp = decoded
	}

	results := resp.Results
	if results == nil {
		results = []SimulateOutput{}
	}
	return SimulateResult{
		Success:      true,
		LatestLedger: resp.LatestLedger,
		Results:      results,
		Footprint:    &fp,
	}
}

// FootprintFromTransactionData reads the footprint out of a base64
// SorobanTransactionData.
func FootprintFromTransactionData(b64 string) (Footprint, error) {
	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(b64, &data); err != nil {
		return Footprint{}, fmt.Errorf("decode transaction data: %w", err)
	}
	ro, err := encodeKeys(data.Resources.Footprint.ReadOnly)
	if err != nil {
		return Footprint{}, err
	}
	rw, err := encodeKeys(data.Resources.Footprint.ReadWrite)
	if err != nil {
		return Footprint{}, err
	}
	return Footprint{ReadOnly: ro, ReadWrite: rw}, nil
}

func encodeKeys(keys []xdr.LedgerKey) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		s, err := xdr.MarshalBase64(k)
		if err != nil {
			return nil, fmt.Errorf("encode ledger key: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ExtractFootprint returns deduplicated, sorted key lists. Both lists are
// non-nil even for a nil footprint.
func ExtractFootprint(fp *Footprint) Footprint {
	if fp == nil {
		return Footprint{ReadOnly: []string{}, ReadWrite: []string{}}
	}
	return Footprint{ReadOnly: dedupeSorted(fp.ReadOnly), ReadWrite: dedupeSorted(fp.ReadWrite)}
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
