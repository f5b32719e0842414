package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MessageStatus is the per-box lifecycle state of a message. The numeric
// values are part of the wire format: they are the storage words that
// remote-ledger proofs assert.
type MessageStatus uint8

const (
	Undeclared MessageStatus = iota
	Declared
	Progressed
	DeclaredRevocation
	Revoked
)

var statusNames = [...]string{
	Undeclared:         "Undeclared",
	Declared:           "Declared",
	Progressed:         "Progressed",
	DeclaredRevocation: "DeclaredRevocation",
	Revoked:            "Revoked",
}

// String returns the status name.
func (s MessageStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("MessageStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the five defined statuses.
func (s MessageStatus) Valid() bool {
	return s <= Revoked
}

// ParseMessageStatus returns the status with the given name.
func ParseMessageStatus(name string) (MessageStatus, error) {
	for i, n := range statusNames {
		if n == name {
			return MessageStatus(i), nil
		}
	}
	return Undeclared, fmt.Errorf("types: unknown message status %q", name)
}

// MarshalText encodes the status by name.
func (s MessageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *MessageStatus) UnmarshalText(input []byte) error {
	v, err := ParseMessageStatus(string(input))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Message is a cross-ledger message. It is never mutated after declaration;
// its identity is the hash computed by bus.MessageHash.
type Message struct {
	MessageTypeHash Hash
	IntentHash      Hash
	Nonce           uint64
	GasPrice        uint256.Int
	GasLimit        uint256.Int
	Sender          Address
	HashLock        Hash
	GasConsumed     uint256.Int
}
