// Package network holds the known Stellar network presets and the
// validators for user supplied RPC URLs and contract ids.
package network

import (
	"sort"
	"strings"
)

// Config identifies the network a lens session talks to.
type Config struct {
	ID         string `json:"networkId" yaml:"id"`
	Passphrase string `json:"networkPassphrase" yaml:"passphrase"`
	RPCURL     string `json:"rpcUrl" yaml:"rpc_url"`
	HorizonURL string `json:"horizonUrl,omitempty" yaml:"horizon_url"`
}

// DefaultPreset is used whenever a stored or configured network is unusable.
const DefaultPreset = "futurenet"

var presets = map[string]Config{
	"futurenet": {
		ID:         "futurenet",
		Passphrase: "Test SDF Future Network ; October 2022",
		RPCURL:     "https://rpc-futurenet.stellar.org",
		HorizonURL: "https://horizon-futurenet.stellar.org",
	},
	"testnet": {
		ID:         "testnet",
		Passphrase: "Test SDF Network ; September 2015",
		RPCURL:     "https://soroban-testnet.stellar.org",
		HorizonURL: "https://horizon-testnet.stellar.org",
	},
	"mainnet": {
		ID:         "mainnet",
		Passphrase: "Public Global Stellar Network ; September 2015",
		RPCURL:     "https://soroban.stellar.org",
		HorizonURL: "https://horizon.stellar.org",
	},
}

// PresetIDs lists the preset ids in sorted order.
func PresetIDs() []string {
	ids := make([]string, 0, len(presets))
	for id := range presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolvePreset looks up a preset by trimmed, case-insensitive id. The
// returned Config is a copy.
func ResolvePreset(id string) (Config, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Config{}, false
	}
	cfg, ok := presets[id]
	return cfg, ok
}

// SanitizeConfig coerces an untrusted stored value into a complete Config.
// Missing, blank or mistyped fields take the futurenet values; unknown keys
// are dropped.
func SanitizeConfig(input any) Config {
	fallback := presets[DefaultPreset]

	var fields map[string]any
	switch v := input.(type) {
	case Config:
		fields = v.asMap()
	case *Config:
		if v != nil {
			fields = v.asMap()
		}
	case map[string]any:
		fields = v
	}
	if fields == nil {
		return fallback
	}

	return Config{
		ID:         pick(fields["networkId"], fallback.ID),
		Passphrase: pick(fields["networkPassphrase"], fallback.Passphrase),
		RPCURL:     pick(fields["rpcUrl"], fallback.RPCURL),
		HorizonURL: pick(fields["horizonUrl"], fallback.HorizonURL),
	}
}

func (c Config) asMap() map[string]any {
	return map[string]any{
		"networkId":         c.ID,
		"networkPassphrase": c.Passphrase,
		"rpcUrl":            c.RPCURL,
		"horizonUrl":        c.HorizonURL,
	}
}

func pick(v any, def string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
