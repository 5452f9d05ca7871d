package rpc

import (
	"context"
	"errors"
)

// HealthResponse is the getHealth result.
type HealthResponse struct {
	Status                string `json:"status"`
	LatestLedger          uint32 `json:"latestLedger"`
	OldestLedger          uint32 `json:"oldestLedger"`
	LedgerRetentionWindow uint32 `json:"ledgerRetentionWindow"`
}

// NetworkResponse is the getNetwork result.
type NetworkResponse struct {
	FriendbotURL    string `json:"friendbotUrl,omitempty"`
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// LatestLedgerResponse is the getLatestLedger result.
type LatestLedgerResponse struct {
	ID              string `json:"id"`
	ProtocolVersion int    `json:"protocolVersion"`
	Sequence        uint32 `json:"sequence"`
}

// LedgerEntry is one entry returned by getLedgerEntries. Key and XDR are
// base64 LedgerKey and LedgerEntryData.
type LedgerEntry struct {
	Key                   string  `json:"key"`
	XDR                   string  `json:"xdr"`
	LastModifiedLedgerSeq uint32  `json:"lastModifiedLedgerSeq"`
	LiveUntilLedgerSeq    *uint32 `json:"liveUntilLedgerSeq,omitempty"`
}

// LedgerEntriesResponse is the getLedgerEntries result.
type LedgerEntriesResponse struct {
	Entries      []LedgerEntry `json:"entries"`
	LatestLedger uint32        `json:"latestLedger"`
}

// ErrNoKeys is returned when GetLedgerEntries is called without keys.
var ErrNoKeys = errors.New("at least one ledger key is required")

// GetHealth calls getHealth.
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.Call(ctx, "getHealth", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping reports whether the server answers getHealth with status healthy.
func (c *Client) Ping(ctx context.Context) error {
	h, err := c.GetHealth(ctx)
	if err != nil {
		return err
	}
	if h.Status != "healthy" {
		return &Error{Code: CodeUnknown, Message: "rpc status " + h.Status}
	}
	return nil
}

// GetNetwork calls getNetwork.
func (c *Client) GetNetwork(ctx context.Context) (*NetworkResponse, error) {
	var out NetworkResponse
	if err := c.Call(ctx, "getNetwork", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLatestLedger calls getLatestLedger.
func (c *Client) GetLatestLedger(ctx context.Context) (*LatestLedgerResponse, error) {
	var out LatestLedgerResponse
	if err := c.Call(ctx, "getLatestLedger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLedgerEntries fetches the entries for base64 LedgerKey keys. Keys with no
// live entry are simply absent from the result.
func (c *Client) GetLedgerEntries(ctx context.Context, keys []string) (*LedgerEntriesResponse, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	var out LedgerEntriesResponse
	if err := c.Call(ctx, "getLedgerEntries", map[string]any{"keys": keys}, &out); err != nil {
		return nil, err
	}
	c.metrics.EntriesFetched(len(out.Entries))
	return &out, nil
}

// SimulateTransaction simulates a base64 TransactionEnvelope.
func (c *Client) SimulateTransaction(ctx context.Context, txXDR string) (*SimulateResponse, error) {
	var out SimulateResponse
	if err := c.Call(ctx, "simulateTransaction", map[string]any{"transaction": txXDR}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
