package scval

import (
	"fmt"
	"strings"

	"github.com/stellar/go-stellar-sdk/xdr"
)

// ParseXDR decodes a base64 XDR ScVal as returned by Soroban RPC.
func ParseXDR(b64 string) (*ScVal, error) {
	var v xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(b64, &v); err != nil {
		return nil, fmt.Errorf("decode scval xdr: %w", err)
	}
	return FromXDR(v)
}

// FromXDR maps an SDK ScVal onto the tagged union. Variants the normalizer
// decodes get native payloads; an address keeps the base64 XDR of its
// ScAddress and every other variant the base64 XDR of the whole value.
func FromXDR(v xdr.ScVal) (*ScVal, error) {
	switch v.Type {
	case xdr.ScValTypeScvBool:
		b, _ := v.GetB()
		return &ScVal{Switch: TypeBool, Value: b}, nil
	case xdr.ScValTypeScvVoid:
		return &ScVal{Switch: TypeVoid}, nil
	case xdr.ScValTypeScvU32:
		if n, ok := v.GetU32(); ok {
			return &ScVal{Switch: TypeU32, Value: uint32(n)}, nil
		}
		return &ScVal{Switch: TypeU32}, nil
	case xdr.ScValTypeScvI32:
		if n, ok := v.GetI32(); ok {
			return &ScVal{Switch: TypeI32, Value: int32(n)}, nil
		}
		return &ScVal{Switch: TypeI32}, nil
	case xdr.ScValTypeScvString:
		s, _ := v.GetStr()
		return &ScVal{Switch: TypeString, Value: string(s)}, nil
	case xdr.ScValTypeScvSymbol:
		s, _ := v.GetSym()
		return &ScVal{Switch: TypeSymbol, Value: string(s)}, nil
	case xdr.ScValTypeScvVec:
		vec, ok := v.GetVec()
		if !ok || vec == nil {
			return &ScVal{Switch: TypeVec}, nil
		}
		elems := make([]*ScVal, 0, len(*vec))
		for i, el := range *vec {
			child, err := FromXDR(el)
			if err != nil {
				return nil, fmt.Errorf("vec[%d]: %w", i, err)
			}
			elems = append(elems, child)
		}
		return &ScVal{Switch: TypeVec, Value: elems}, nil
	case xdr.ScValTypeScvAddress:
		addr, ok := v.GetAddress()
		if !ok {
			return &ScVal{Switch: TypeAddress}, nil
		}
		raw, err := xdr.MarshalBase64(addr)
		if err != nil {
			return nil, fmt.Errorf("encode address xdr: %w", err)
		}
		return &ScVal{Switch: TypeAddress, Value: raw}, nil
	}

	raw, err := xdr.MarshalBase64(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s xdr: %w", v.Type, err)
	}
	return &ScVal{Switch: variantName(v.Type), Value: raw}, nil
}

// variantName turns the SDK enum name (ScValTypeScvU64) into the wire tag (ScvU64).
func variantName(t xdr.ScValType) ScValType {
	return ScValType(strings.TrimPrefix(t.String(), "ScValType"))
}
