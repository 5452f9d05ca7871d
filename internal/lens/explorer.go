// Package lens fetches a contract's ledger entries, normalizes their values and
// tracks how they moved since the last inspection.
package lens

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/stellar/go-stellar-sdk/xdr"

	"github.com/devblac/state-lens/internal/decoder"
	"github.com/devblac/state-lens/internal/diff"
	"github.com/devblac/state-lens/internal/network"
	"github.com/devblac/state-lens/internal/rpc"
	"github.com/devblac/state-lens/internal/sink"
	"github.com/devblac/state-lens/internal/storage"
)

// Source is the slice of the Soroban RPC client the explorer needs.
type Source interface {
	GetLedgerEntries(ctx context.Context, keys []string) (*rpc.LedgerEntriesResponse, error)
	SimulateTransaction(ctx context.Context, txXDR string) (*rpc.SimulateResponse, error)
}

// Normalizer turns base64 XDR ScVals into JSON-safe values.
type Normalizer interface {
	NormalizeXDR(ctx context.Context, b64 string, asAddress bool) decoder.Result
}

// Entry is one inspected ledger entry.
type Entry struct {
	Key                string      `json:"key"`
	LedgerKey          string      `json:"ledgerKey"`
	ContractID         string      `json:"contractId"`
	Type               string      `json:"type"`
	Durability         string      `json:"durability,omitempty"`
	EntryKey           any         `json:"entryKey,omitempty"`
	Value              any         `json:"value"`
	Status             diff.Status `json:"status"`
	LastModifiedLedger uint32      `json:"lastModifiedLedger,omitempty"`
	LiveUntilLedger    *uint32     `json:"liveUntilLedger,omitempty"`
}

// Inspection is the outcome of one Inspect pass.
type Inspection struct {
	ContractID   string  `json:"contractId"`
	LatestLedger uint32  `json:"latestLedger"`
	Entries      []Entry `json:"entries"`
}

// Explorer wires the RPC source, the decoder and the local cache.
type Explorer struct {
	source  Source
	decoder Normalizer
	store   *storage.Store
	logger  *slog.Logger
	nowFunc func() time.Time

	network string
	sinks   []sink.Sender
}

// NewExplorer builds an explorer. store may be nil, in which case every entry
// reports as added and nothing is persisted.
func NewExplorer(source Source, dec Normalizer, store *storage.Store, logger *slog.Logger) (*Explorer, error) {
	if source == nil || dec == nil {
		return nil, errors.New("explorer needs an rpc source and a decoder")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Explorer{
		source:  source,
		decoder: dec,
		store:   store,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// NotifyTo sends a change summary to every sink after each inspection that
// found added, changed or removed entries.
func (e *Explorer) NotifyTo(networkID string, sinks ...sink.Sender) {
	e.network = networkID
	e.sinks = append(e.sinks, sinks...)
}

// Inspect fetches the contract instance plus any extra ledger keys, decodes
// them, diffs against the cache and writes the new snapshot back.
func (e *Explorer) Inspect(ctx context.Context, contractID string, extraKeys ...string) (*Inspection, error) {
	id, err := network.ValidateContractID(contractID)
	if err != nil {
		return nil, err
	}
	instanceKey, err := network.ContractInstanceKey(id)
	if err != nil {
		return nil, err
	}
	keys := uniqueKeys(append([]string{instanceKey}, extraKeys...))

	resp, err := e.source.GetLedgerEntries(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger entries: %w", err)
	}

	now := e.nowFunc().UTC()
	out := &Inspection{ContractID: id, LatestLedger: resp.LatestLedger}
	var (
		upserts  []storage.LedgerEntry
		removals []string
		seen     = make(map[string]bool, len(resp.Entries))
	)

	for _, raw := range resp.Entries {
		entry, rec, err := e.decodeEntry(ctx, id, raw)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %s: %w", raw.Key, err)
		}
		seen[raw.Key] = true

		prev, found, err := e.cached(ctx, entry.Key)
		if err != nil {
			return nil, err
		}
		if found {
			entry.Status = diff.Compare(prev, entry.Value)
		} else {
			entry.Status = diff.Added
		}
		rec.UpdatedAt = now
		upserts = append(upserts, rec)
		out.Entries = append(out.Entries, entry)
	}

	for _, k := range keys {
		if seen[k] {
			continue
		}
		entryType, owner, err := ledgerKeyOwner(k, id)
		if err != nil {
			return nil, err
		}
		storeKey, err := storage.MakeLedgerEntryKey(owner, entryType, k)
		if err != nil {
			return nil, err
		}
		_, found, err := e.cached(ctx, storeKey)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		removals = append(removals, storeKey)
		out.Entries = append(out.Entries, Entry{
			Key:        storeKey,
			LedgerKey:  k,
			ContractID: owner,
			Type:       entryType,
			Value:      nil,
			Status:     diff.Removed,
		})
	}

	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].Key < out.Entries[j].Key })

	if e.store != nil && (len(upserts) > 0 || len(removals) > 0) {
		if err := e.store.ApplyLedgerBatch(ctx, upserts, removals); err != nil {
			return nil, fmt.Errorf("persist entries: %w", err)
		}
	}
	e.logger.Info("inspected contract",
		"contract", id,
		"entries", len(out.Entries),
		"latest_ledger", out.LatestLedger,
		"removed", len(removals))
	e.notify(ctx, out)
	return out, nil
}

// notify logs sink failures; the snapshot is already persisted by then.
func (e *Explorer) notify(ctx context.Context, in *Inspection) {
	if len(e.sinks) == 0 {
		return
	}
	payload := sink.ChangePayload{
		Network:      e.network,
		ContractID:   in.ContractID,
		LatestLedger: in.LatestLedger,
	}
	for _, entry := range in.Entries {
		if entry.Status == diff.Unchanged {
			continue
		}
		payload.Changes = append(payload.Changes, sink.Change{
			Key:        entry.Key,
			Durability: entry.Durability,
			Status:     string(entry.Status),
			Value:      entry.Value,
		})
	}
	if len(payload.Changes) == 0 {
		return
	}
	for _, s := range e.sinks {
		if err := s.Send(ctx, payload); err != nil {
			e.logger.Warn("sink send failed", "contract", in.ContractID, "error", err)
		}
	}
}

// InspectFootprint simulates txXDR and inspects every key of its footprint
// alongside the contract instance.
func (e *Explorer) InspectFootprint(ctx context.Context, contractID, txXDR string) (*Inspection, error) {
	sim, err := e.source.SimulateTransaction(ctx, txXDR)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	res := rpc.AdaptSimulation(sim)
	if !res.Success {
		return nil, fmt.Errorf("simulate: %s", res.Error)
	}
	fp := rpc.ExtractFootprint(res.Footprint)
	keys := append(append([]string{}, fp.ReadOnly...), fp.ReadWrite...)
	return e.Inspect(ctx, contractID, keys...)
}

// Cached returns the last persisted snapshot of a contract without touching RPC.
func (e *Explorer) Cached(ctx context.Context, contractID string) ([]Entry, error) {
	if e.store == nil {
		return []Entry{}, nil
	}
	id, err := network.ValidateContractID(contractID)
	if err != nil {
		return nil, err
	}
	recs, err := e.store.LedgerEntriesByContract(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		var v any
		if r.ValueJSON != "" {
			if err := json.Unmarshal([]byte(r.ValueJSON), &v); err != nil {
				return nil, fmt.Errorf("cached value %s: %w", r.Key, err)
			}
		}
		entry := Entry{
			Key:                r.Key,
			ContractID:         r.ContractID,
			Type:               r.Type,
			Durability:         r.Durability,
			Value:              v,
			Status:             diff.Unchanged,
			LastModifiedLedger: r.LastModifiedLedger,
			LiveUntilLedger:    r.LiveUntilLedger,
		}
		if parsed, ok := storage.ParseLedgerEntryKey(r.Key); ok {
			entry.LedgerKey = parsed.KeyPart
		}
		out = append(out, entry)
	}
	return out, nil
}

func (e *Explorer) cached(ctx context.Context, key string) (any, bool, error) {
	if e.store == nil {
		return nil, false, nil
	}
	rec, ok, err := e.store.GetLedgerEntry(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var v any
	if rec.ValueJSON != "" {
		if err := json.Unmarshal([]byte(rec.ValueJSON), &v); err != nil {
			return nil, false, fmt.Errorf("cached value %s: %w", key, err)
		}
	}
	return v, true, nil
}

func (e *Explorer) decodeEntry(ctx context.Context, contractID string, raw rpc.LedgerEntry) (Entry, storage.LedgerEntry, error) {
	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(raw.XDR, &data); err != nil {
		return Entry{}, storage.LedgerEntry{}, fmt.Errorf("decode entry xdr: %w", err)
	}

	entry := Entry{
		LedgerKey:          raw.Key,
		ContractID:         contractID,
		Type:               entryTypeName(data.Type),
		LastModifiedLedger: raw.LastModifiedLedgerSeq,
		LiveUntilLedger:    raw.LiveUntilLedgerSeq,
	}

	switch data.Type {
	case xdr.LedgerEntryTypeContractData:
		cd, _ := data.GetContractData()
		if owner, err := cd.Contract.String(); err == nil {
			entry.ContractID = owner
		}
		entry.Durability = durabilityName(cd)
		if cd.Key.Type != xdr.ScValTypeScvLedgerKeyContractInstance {
			k, err := e.normalize(ctx, cd.Key)
			if err != nil {
				return Entry{}, storage.LedgerEntry{}, fmt.Errorf("key: %w", err)
			}
			entry.EntryKey = k
		}
		v, err := e.normalize(ctx, cd.Val)
		if err != nil {
			return Entry{}, storage.LedgerEntry{}, fmt.Errorf("value: %w", err)
		}
		entry.Value = v
	case xdr.LedgerEntryTypeContractCode:
		code, _ := data.GetContractCode()
		entry.Value = map[string]any{
			"hash": hex.EncodeToString(code.Hash[:]),
			"size": float64(len(code.Code)),
		}
	}

	key, err := storage.MakeLedgerEntryKey(entry.ContractID, entry.Type, raw.Key)
	if err != nil {
		return Entry{}, storage.LedgerEntry{}, err
	}
	entry.Key = key

	valueJSON, err := json.Marshal(entry.Value)
	if err != nil {
		return Entry{}, storage.LedgerEntry{}, fmt.Errorf("encode value: %w", err)
	}
	rec := storage.LedgerEntry{
		Key:                key,
		ContractID:         entry.ContractID,
		Type:               entry.Type,
		Durability:         entry.Durability,
		ValueJSON:          string(valueJSON),
		RawXDR:             raw.XDR,
		LastModifiedLedger: raw.LastModifiedLedgerSeq,
		LiveUntilLedger:    raw.LiveUntilLedgerSeq,
	}
	return entry, rec, nil
}

// normalize runs an ScVal through the decoder and round-trips the result
// through JSON so fresh and cached values share one shape.
func (e *Explorer) normalize(ctx context.Context, v xdr.ScVal) (any, error) {
	b64, err := xdr.MarshalBase64(v)
	if err != nil {
		return nil, err
	}
	res := e.decoder.NormalizeXDR(ctx, b64, false)
	if res.IsError() {
		return nil, res.Err
	}
	raw, err := json.Marshal(res.Value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func entryTypeName(t xdr.LedgerEntryType) string {
	switch t {
	case xdr.LedgerEntryTypeContractData:
		return storage.EntryContractData
	case xdr.LedgerEntryTypeContractCode:
		return storage.EntryContractCode
	case xdr.LedgerEntryTypeAccount:
		return storage.EntryAccount
	case xdr.LedgerEntryTypeTrustline:
		return storage.EntryTrustline
	default:
		return storage.EntryOther
	}
}

func durabilityName(cd xdr.ContractDataEntry) string {
	if cd.Key.Type == xdr.ScValTypeScvLedgerKeyContractInstance {
		return storage.DurabilityInstance
	}
	if cd.Durability == xdr.ContractDataDurabilityTemporary {
		return storage.DurabilityTemporary
	}
	return storage.DurabilityPersistent
}

// ledgerKeyOwner returns the entry type of a base64 LedgerKey and the contract
// its cached row is filed under: the key's own contract for contract data,
// fallback otherwise. It mirrors the owner decodeEntry picks for live entries.
func ledgerKeyOwner(b64, fallback string) (string, string, error) {
	var key xdr.LedgerKey
	if err := xdr.SafeUnmarshalBase64(b64, &key); err != nil {
		return "", "", fmt.Errorf("decode ledger key: %w", err)
	}
	owner := fallback
	if cd, ok := key.GetContractData(); ok {
		if s, err := cd.Contract.String(); err == nil {
			owner = s
		}
	}
	return entryTypeName(key.Type), owner, nil
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
