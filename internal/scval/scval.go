package scval

// ScValType is the wire discriminant of an ScVal.
type ScValType string

const (
	TypeBool                      ScValType = "ScvBool"
	TypeVoid                      ScValType = "ScvVoid"
	TypeU32                       ScValType = "ScvU32"
	TypeI32                       ScValType = "ScvI32"
	TypeU64                       ScValType = "ScvU64"
	TypeI64                       ScValType = "ScvI64"
	TypeTimepoint                 ScValType = "ScvTimepoint"
	TypeDuration                  ScValType = "ScvDuration"
	TypeU128                      ScValType = "ScvU128"
	TypeI128                      ScValType = "ScvI128"
	TypeU256                      ScValType = "ScvU256"
	TypeI256                      ScValType = "ScvI256"
	TypeBytes                     ScValType = "ScvBytes"
	TypeString                    ScValType = "ScvString"
	TypeSymbol                    ScValType = "ScvSymbol"
	TypeVec                       ScValType = "ScvVec"
	TypeMap                       ScValType = "ScvMap"
	TypeAddress                   ScValType = "ScvAddress"
	TypeContractInstance          ScValType = "ScvContractInstance"
	TypeLedgerKeyContractInstance ScValType = "ScvLedgerKeyContractInstance"
	TypeLedgerKeyNonce            ScValType = "ScvLedgerKeyNonce"
)

// invalidVariant names fallbacks for a missing or malformed discriminant.
const invalidVariant = "Invalid"

var knownTypes = map[ScValType]struct{}{
	TypeBool: {}, TypeVoid: {}, TypeU32: {}, TypeI32: {}, TypeU64: {}, TypeI64: {},
	TypeTimepoint: {}, TypeDuration: {}, TypeU128: {}, TypeI128: {}, TypeU256: {},
	TypeI256: {}, TypeBytes: {}, TypeString: {}, TypeSymbol: {}, TypeVec: {},
	TypeMap: {}, TypeAddress: {}, TypeContractInstance: {},
	TypeLedgerKeyContractInstance: {}, TypeLedgerKeyNonce: {},
}

// Known reports whether t is one of the enumerated wire tags.
func (t ScValType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// ScVal is one untrusted wire-format contract value. An empty Switch means the
// discriminant was missing or malformed; Value then holds the raw input as
// received. Vector payloads are []*ScVal.
type ScVal struct {
	Switch ScValType
	Value  any
}

// Unsupported is emitted for unrecognized variants and payloads that fail
// validation.
type Unsupported struct {
	Unsupported bool   `json:"__unsupported"`
	Variant     string `json:"variant"`
	RawData     any    `json:"rawData"`
}

func newUnsupported(variant string, raw any) Unsupported {
	return Unsupported{Unsupported: true, Variant: variant, RawData: raw}
}

// IsUnsupported reports whether v is an Unsupported record, including one that
// went through a JSON round trip.
func IsUnsupported(v any) bool {
	switch u := v.(type) {
	case Unsupported:
		return u.Unsupported
	case *Unsupported:
		return u != nil && u.Unsupported
	case map[string]any:
		flag, ok := u["__unsupported"].(bool)
		return ok && flag
	}
	return false
}

// Value is a normalized, JSON-safe tree: nil, bool, int64, string, []Value,
// map[string]Value, Unsupported or CycleMarker.
type Value = any

// AddressType classifies a StrKey-encoded address by its prefix.
type AddressType string

const (
	AddressAccount          AddressType = "account"
	AddressContract         AddressType = "contract"
	AddressMuxedAccount     AddressType = "muxedAccount"
	AddressClaimableBalance AddressType = "claimableBalance"
	AddressLiquidityPool    AddressType = "liquidityPool"
	AddressUnknown          AddressType = "unknown"
)

// NormalizedAddress is the display form of an ScvAddress value.
type NormalizedAddress struct {
	Type        string      `json:"type"`
	AddressType AddressType `json:"addressType"`
	Value       string      `json:"value"`
}
