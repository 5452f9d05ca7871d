package network

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/xdr"
)

var (
	ErrEmptyContractID   = errors.New("Contract ID cannot be empty")
	ErrInvalidContractID = errors.New(`Invalid contract ID format. Must be a valid Stellar contract ID starting with "C"`)
)

var contractIDPattern = regexp.MustCompile(`^C[A-Z2-7]{55}$`)

// NormalizeContractIDInput strips every whitespace rune and uppercases the rest.
func NormalizeContractIDInput(raw string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))
}

// IsContractID is a shape check only: 56 base32 characters starting with C,
// with no surrounding whitespace. It does not verify the checksum.
func IsContractID(s string) bool {
	return contractIDPattern.MatchString(s)
}

// ValidateContractID normalizes input and verifies it as a contract StrKey,
// checksum included. It returns the normalized id.
func ValidateContractID(input string) (string, error) {
	id := NormalizeContractIDInput(input)
	if id == "" {
		return "", ErrEmptyContractID
	}
	if _, err := strkey.Decode(strkey.VersionByteContract, id); err != nil {
		return "", ErrInvalidContractID
	}
	return id, nil
}

// wire discriminants for a persistent contract instance LedgerKey
const (
	ledgerEntryContractData      = 6
	scAddressContract            = 1
	scvLedgerKeyContractInstance = 20
	durabilityPersistent         = 1
)

// ContractInstanceKey returns the base64 XDR LedgerKey of a contract's
// instance entry, the entry that holds its instance storage.
func ContractInstanceKey(contractID string) (string, error) {
	id, err := ValidateContractID(contractID)
	if err != nil {
		return "", err
	}
	hash, err := strkey.Decode(strkey.VersionByteContract, id)
	if err != nil {
		return "", fmt.Errorf("decode contract id: %w", err)
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(ledgerEntryContractData))
	_ = binary.Write(&buf, binary.BigEndian, uint32(scAddressContract))
	buf.Write(hash)
	_ = binary.Write(&buf, binary.BigEndian, uint32(scvLedgerKeyContractInstance))
	_ = binary.Write(&buf, binary.BigEndian, uint32(durabilityPersistent))

	var key xdr.LedgerKey
	if err := xdr.SafeUnmarshalBase64(base64.StdEncoding.EncodeToString(buf.Bytes()), &key); err != nil {
		return "", fmt.Errorf("build instance key: %w", err)
	}
	return xdr.MarshalBase64(key)
}
