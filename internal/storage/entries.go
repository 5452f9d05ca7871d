package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entry types and durabilities recorded for cached entries.
const (
	EntryContractData = "ContractData"
	EntryContractCode = "ContractCode"
	EntryAccount      = "Account"
	EntryTrustline    = "Trustline"
	EntryOther        = "Other"

	DurabilityPersistent = "Persistent"
	DurabilityTemporary  = "Temporary"
	DurabilityInstance   = "Instance"
)

// LedgerEntry is a decoded ledger entry as cached locally. ValueJSON holds the
// normalized value; RawXDR the LedgerEntryData it came from.
type LedgerEntry struct {
	Key                string
	ContractID         string
	Type               string
	Durability         string
	ValueJSON          string
	RawXDR             string
	LastModifiedLedger uint32
	LiveUntilLedger    *uint32
	UpdatedAt          time.Time
}

func (e LedgerEntry) validate() error {
	if strings.TrimSpace(e.Key) == "" || strings.TrimSpace(e.ContractID) == "" {
		return errors.New("ledger entry key and contract id required")
	}
	if e.Type == "" {
		return fmt.Errorf("ledger entry %s: type required", e.Key)
	}
	return nil
}

const upsertEntrySQL = `
INSERT INTO ledger_entries (key, contract_id, entry_type, durability, value_json, raw_xdr,
  last_modified_ledger, live_until_ledger, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
ON CONFLICT(key) DO UPDATE SET
  contract_id=excluded.contract_id,
  entry_type=excluded.entry_type,
  durability=excluded.durability,
  value_json=excluded.value_json,
  raw_xdr=excluded.raw_xdr,
  last_modified_ledger=excluded.last_modified_ledger,
  live_until_ledger=excluded.live_until_ledger,
  updated_at=excluded.updated_at;
`

// UpsertLedgerEntries writes entries in one transaction; a bad entry aborts
// the whole batch.
func (s *Store) UpsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error {
	return s.ApplyLedgerBatch(ctx, entries, nil)
}

// RemoveLedgerEntries deletes the given keys. Unknown keys are ignored.
func (s *Store) RemoveLedgerEntries(ctx context.Context, keys []string) error {
	return s.ApplyLedgerBatch(ctx, nil, keys)
}

// ApplyLedgerBatch upserts and removes entries atomically. Removals run after
// upserts, so a key present in both ends up removed.
func (s *Store) ApplyLedgerBatch(ctx context.Context, upserts []LedgerEntry, removals []string) error {
	for _, e := range upserts {
		if err := e.validate(); err != nil {
			return err
		}
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, e := range upserts {
			var live any
			if e.LiveUntilLedger != nil {
				live = *e.LiveUntilLedger
			}
			if _, err := tx.ExecContext(ctx, upsertEntrySQL,
				e.Key, e.ContractID, e.Type, nullString(e.Durability), e.ValueJSON, nullString(e.RawXDR),
				e.LastModifiedLedger, live, nullTime(e.UpdatedAt)); err != nil {
				return fmt.Errorf("upsert ledger entry %s: %w", e.Key, err)
			}
		}
		for _, k := range removals {
			if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE key = ?;`, k); err != nil {
				return fmt.Errorf("remove ledger entry %s: %w", k, err)
			}
		}
		return nil
	})
}

// ClearLedgerEntries drops every cached entry.
func (s *Store) ClearLedgerEntries(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ledger_entries;`); err != nil {
		return fmt.Errorf("clear ledger entries: %w", err)
	}
	return nil
}

const selectEntrySQL = `
SELECT key, contract_id, entry_type, COALESCE(durability, ''), value_json, COALESCE(raw_xdr, ''),
  last_modified_ledger, live_until_ledger, updated_at
FROM ledger_entries`

// GetLedgerEntry retrieves one cached entry.
func (s *Store) GetLedgerEntry(ctx context.Context, key string) (LedgerEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, selectEntrySQL+` WHERE key = ?;`, key)
	e, err := scanEntry(row)
	switch {
	case err == nil:
		return e, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return LedgerEntry{}, false, nil
	default:
		return LedgerEntry{}, false, fmt.Errorf("get ledger entry: %w", err)
	}
}

// LedgerEntriesByContract lists a contract's cached entries ordered by key.
// A blank contract id matches nothing.
func (s *Store) LedgerEntriesByContract(ctx context.Context, contractID string) ([]LedgerEntry, error) {
	if strings.TrimSpace(contractID) == "" {
		return []LedgerEntry{}, nil
	}
	rows, err := s.db.QueryContext(ctx, selectEntrySQL+` WHERE contract_id = ? ORDER BY key;`, contractID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	out := []LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (LedgerEntry, error) {
	var (
		e    LedgerEntry
		live sql.NullInt64
	)
	if err := r.Scan(&e.Key, &e.ContractID, &e.Type, &e.Durability, &e.ValueJSON, &e.RawXDR,
		&e.LastModifiedLedger, &live, &e.UpdatedAt); err != nil {
		return LedgerEntry{}, err
	}
	if live.Valid {
		v := uint32(live.Int64)
		e.LiveUntilLedger = &v
	}
	return e, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
