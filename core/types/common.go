// Package types defines the value types shared by the anchor store and the
// message bus: hashes, addresses, messages and their statuses.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	HashLength    = 32
	AddressLength = 20
)

var errInvalidHex = errors.New("types: invalid hex string")

// Hash represents a 32-byte Keccak256 digest.
type Hash [HashLength]byte

// Address represents the 20-byte address of an account on either ledger.
type Address [AddressLength]byte

// BytesToHash converts bytes to Hash, left-padding if shorter than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a hex string to Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hex string representation of the hash.
func (h Hash) Hex() string { return fmt.Sprintf("0x%x", h[:]) }

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// IsZero returns whether the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// MarshalText encodes the hash as 0x-prefixed hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText decodes a 0x-prefixed hex hash of exactly 32 bytes.
func (h *Hash) UnmarshalText(input []byte) error {
	b, err := decodeFixedHex(string(input), HashLength)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	copy(h[:], b)
	return nil
}

// BytesToAddress converts bytes to Address, left-padding if shorter than 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress converts a hex string to Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

// Bytes returns the byte representation of the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the hex string representation of the address.
func (a Address) Hex() string { return fmt.Sprintf("0x%x", a[:]) }

// SetBytes sets the address from a byte slice.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// IsZero returns whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// MarshalText encodes the address as 0x-prefixed hex.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText decodes a 0x-prefixed hex address of exactly 20 bytes.
func (a *Address) UnmarshalText(input []byte) error {
	b, err := decodeFixedHex(string(input), AddressLength)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	copy(a[:], b)
	return nil
}

// fromHex decodes a hex string, stripping optional "0x" prefix.
func fromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func decodeFixedHex(s string, size int) ([]byte, error) {
	if !has0xPrefix(s) {
		return nil, fmt.Errorf("%w: missing 0x prefix", errInvalidHex)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidHex, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", errInvalidHex, size, len(b))
	}
	return b, nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
