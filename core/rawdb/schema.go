package rawdb

import (
	"encoding/binary"

	"github.com/eth2030/xlbus/core/types"
)

// Key prefixes for the database schema.
var (
	outboxPrefix = []byte("o") // o + message hash -> status byte
	inboxPrefix  = []byte("i") // i + message hash -> status byte

	anchorRootPrefix = []byte("a") // a + height (8 bytes BE) -> state root

	latestAnchorKey  = []byte("LastAnchorHeight") // -> height (8 bytes BE)
	anchorChainIDKey = []byte("AnchorChainID")    // -> remote chain id (8 bytes BE)
)

// Box selects one of the two message status tables.
type Box uint8

const (
	Outbox Box = iota
	Inbox
)

// String returns the table name.
func (b Box) String() string {
	if b == Inbox {
		return "inbox"
	}
	return "outbox"
}

// encodeBlockNumber encodes a block number as an 8-byte big-endian value.
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

// statusKey = box prefix + message hash
func statusKey(box Box, hash types.Hash) []byte {
	prefix := outboxPrefix
	if box == Inbox {
		prefix = inboxPrefix
	}
	return append(append([]byte{}, prefix...), hash[:]...)
}

// anchorRootKey = anchorRootPrefix + height
func anchorRootKey(height uint64) []byte {
	return append(append([]byte{}, anchorRootPrefix...), encodeBlockNumber(height)...)
}
