package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

const keySeparator = "::"

// MakeLedgerEntryKey joins the trimmed parts as contract::type::part. Every
// part must be non-blank.
func MakeLedgerEntryKey(contractID, entryType, keyPart string) (string, error) {
	parts := []struct{ name, v string }{
		{"contractId", contractID},
		{"entryType", entryType},
		{"keyPart", keyPart},
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p.v)
		if v == "" {
			return "", fmt.Errorf("%s must be a non-empty string", p.name)
		}
		out = append(out, v)
	}
	return strings.Join(out, keySeparator), nil
}

// LedgerEntryKey is a parsed contract::type::part key.
type LedgerEntryKey struct {
	ContractID string
	EntryType  string
	KeyPart    string
}

// ParseLedgerEntryKey splits key into exactly three non-blank parts.
func ParseLedgerEntryKey(key string) (LedgerEntryKey, bool) {
	if strings.TrimSpace(key) == "" {
		return LedgerEntryKey{}, false
	}
	parts := strings.Split(key, keySeparator)
	if len(parts) != 3 {
		return LedgerEntryKey{}, false
	}
	k := LedgerEntryKey{
		ContractID: strings.TrimSpace(parts[0]),
		EntryType:  strings.TrimSpace(parts[1]),
		KeyPart:    strings.TrimSpace(parts[2]),
	}
	if k.ContractID == "" || k.EntryType == "" || k.KeyPart == "" {
		return LedgerEntryKey{}, false
	}
	return k, true
}

// SerializeExpandedNodes encodes node ids as a compact JSON array, keeping the
// first occurrence of each id.
func SerializeExpandedNodes(nodes []string) string {
	b, _ := json.Marshal(dedupe(nodes))
	return string(b)
}

// DeserializeExpandedNodes is the inverse of SerializeExpandedNodes. Anything
// other than a JSON array of strings yields an empty list.
func DeserializeExpandedNodes(raw string) []string {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		return []string{}
	}
	nodes := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return []string{}
		}
		nodes = append(nodes, s)
	}
	return dedupe(nodes)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
