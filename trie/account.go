package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
)

var (
	// ErrAccountAbsent is returned when an account proof shows that the
	// account does not exist under the state root.
	ErrAccountAbsent = errors.New("trie: account not in state")
)

// Account is the 4-tuple stored at an account leaf of the state trie.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	Root     types.Hash // storage trie root
	CodeHash []byte
}

// DecodeAccount decodes an RLP account leaf: [nonce, balance, storageRoot, codeHash].
func DecodeAccount(data []byte) (*Account, error) {
	var acc Account
	if err := rlp.DecodeBytes(data, &acc); err != nil {
		return nil, fmt.Errorf("%w: account encoding: %v", ErrProofInvalid, err)
	}
	if acc.Balance == nil {
		acc.Balance = new(uint256.Int)
	}
	return &acc, nil
}

// EncodeAccount is the inverse of DecodeAccount.
func EncodeAccount(acc *Account) ([]byte, error) {
	return rlp.EncodeToBytes(acc)
}

// VerifyAccountProof verifies proof for address against the state root and
// returns the decoded account. The trie path is keccak256(address).
func VerifyAccountProof(root types.Hash, address types.Address, proof [][]byte) (*Account, error) {
	val, err := VerifyProof(root, crypto.Keccak256(address[:]), proof)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, ErrAccountAbsent
	}
	return DecodeAccount(val)
}
