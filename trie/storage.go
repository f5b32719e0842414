package trie

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
)

// StorageSlot derives the slot of a mapping entry declared at storage index
// with the given key components:
//
//	keccak256(pad32(k1) || ... || pad32(kn) || pad32(index))
//
// Each component is left-padded to 32 bytes.
func StorageSlot(index uint64, keys ...[]byte) types.Hash {
	buf := make([]byte, 0, (len(keys)+1)*32)
	for _, k := range keys {
		buf = append(buf, pad32(k)...)
	}
	var idx [32]byte
	binary.BigEndian.PutUint64(idx[24:], index)
	buf = append(buf, idx[:]...)
	return crypto.Keccak256Hash(buf)
}

// StorageKey is the storage trie path of a slot. Storage tries are keyed by
// the hash of the slot, not the slot itself.
func StorageKey(slot types.Hash) []byte {
	return crypto.Keccak256(slot[:])
}

// VerifyStorageProof verifies proof for slot against an account's storage
// root and returns the stored word as trimmed big-endian bytes. An absent
// slot yields an empty word.
func VerifyStorageProof(storageRoot types.Hash, slot types.Hash, proof [][]byte) ([]byte, error) {
	val, err := VerifyProof(storageRoot, StorageKey(slot), proof)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return []byte{}, nil
	}
	var word []byte
	if err := rlp.DecodeBytes(val, &word); err != nil {
		return nil, fmt.Errorf("%w: storage value: %v", ErrProofInvalid, err)
	}
	if len(word) > 32 {
		return nil, fmt.Errorf("%w: storage word of %d bytes", ErrProofInvalid, len(word))
	}
	return word, nil
}

func pad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
