package scval

import (
	"fmt"

	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/xdr"
)

// NormalizeAddress decodes an ScvAddress value into its StrKey form. It returns
// nil when v is absent, is not an address, or carries no decodable address
// payload. An error means the StrKey codec itself failed.
func NormalizeAddress(v *ScVal) (*NormalizedAddress, error) {
	if v == nil || v.Switch != TypeAddress {
		return nil, nil
	}

	encoded, ok, err := encodeAddress(v.Value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &NormalizedAddress{
		Type:        "address",
		AddressType: ClassifyAddress(encoded),
		Value:       encoded,
	}, nil
}

// ClassifyAddress maps a StrKey string to its address family by first character.
func ClassifyAddress(s string) AddressType {
	if s == "" {
		return AddressUnknown
	}
	switch s[0] {
	case 'G':
		return AddressAccount
	case 'C':
		return AddressContract
	case 'M':
		return AddressMuxedAccount
	case 'B':
		return AddressClaimableBalance
	case 'P':
		return AddressLiquidityPool
	default:
		return AddressUnknown
	}
}

// encodeAddress accepts an SDK ScAddress, a base64 XDR ScAddress, or a string
// that is already a valid StrKey.
func encodeAddress(payload any) (string, bool, error) {
	var addr xdr.ScAddress
	switch p := payload.(type) {
	case xdr.ScAddress:
		addr = p
	case *xdr.ScAddress:
		if p == nil {
			return "", false, nil
		}
		addr = *p
	case string:
		if p == "" {
			return "", false, nil
		}
		if _, _, err := strkey.DecodeAny(p); err == nil {
			return p, true, nil
		}
		if err := xdr.SafeUnmarshalBase64(p, &addr); err != nil {
			return "", false, nil
		}
	default:
		return "", false, nil
	}

	s, err := addr.String()
	if err != nil {
		return "", false, fmt.Errorf("encode strkey: %w", err)
	}
	return s, true, nil
}
