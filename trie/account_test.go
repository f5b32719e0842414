package trie_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
	"github.com/eth2030/xlbus/trie"
	"github.com/eth2030/xlbus/trie/trietest"
)

func TestDecodeAccountMatchesStateAccount(t *testing.T) {
	storageRoot := crypto.Keccak256Hash([]byte("storage"))
	enc, err := rlp.EncodeToBytes(&gethtypes.StateAccount{
		Nonce:    9,
		Balance:  uint256.NewInt(1_000_000),
		Root:     common.Hash(storageRoot),
		CodeHash: gethtypes.EmptyCodeHash.Bytes(),
	})
	require.NoError(t, err)

	acc, err := trie.DecodeAccount(enc)
	require.NoError(t, err)
	require.Equal(t, uint64(9), acc.Nonce)
	require.Equal(t, uint64(1_000_000), acc.Balance.Uint64())
	require.Equal(t, storageRoot, acc.Root)
	require.Equal(t, gethtypes.EmptyCodeHash.Bytes(), acc.CodeHash)

	again, err := trie.EncodeAccount(acc)
	require.NoError(t, err)
	require.Equal(t, enc, again)

	_, err = trie.DecodeAccount([]byte{0xc1, 0x01})
	require.ErrorIs(t, err, trie.ErrProofInvalid)
}

func TestStorageSlot(t *testing.T) {
	key := crypto.Keccak256Hash([]byte("message"))
	slot := trie.StorageSlot(7, key[:])

	buf := make([]byte, 64)
	copy(buf, key[:])
	buf[63] = 7
	require.Equal(t, crypto.Keccak256Hash(buf), slot)

	// Short components are left-padded.
	short := trie.StorageSlot(1, []byte{0xab})
	buf = make([]byte, 64)
	buf[31] = 0xab
	buf[63] = 1
	require.Equal(t, crypto.Keccak256Hash(buf), short)

	// Plain variables hash only the padded index.
	idx := new(big.Int).SetUint64(3).FillBytes(make([]byte, 32))
	require.Equal(t, crypto.Keccak256Hash(idx), trie.StorageSlot(3))
}

func TestVerifyAccountAndStorageProof(t *testing.T) {
	contract := types.HexToAddress("0x00000000000000000000000000000000000000b5")
	msgHash := crypto.Keccak256Hash([]byte("msg"))
	slot := trie.StorageSlot(7, msgHash[:])

	state := trietest.NewState(64)
	state.SetStorage(contract, slot, []byte{2})
	state.SetStorage(contract, trie.StorageSlot(8, msgHash[:]), []byte{1})
	root, err := state.Commit()
	require.NoError(t, err)

	accountProof, err := state.ProveAccount(contract)
	require.NoError(t, err)
	acc, err := trie.VerifyAccountProof(root, contract, accountProof)
	require.NoError(t, err)
	require.Equal(t, state.StorageRoot(contract), acc.Root)

	storageProof, err := state.ProveStorage(contract, slot)
	require.NoError(t, err)
	word, err := trie.VerifyStorageProof(acc.Root, slot, storageProof)
	require.NoError(t, err)
	require.Equal(t, []byte{2}, word)

	// An unset slot proves an empty word.
	unset := trie.StorageSlot(7, crypto.Keccak256([]byte("other")))
	absentProof, err := state.ProveStorage(contract, unset)
	require.NoError(t, err)
	word, err = trie.VerifyStorageProof(acc.Root, unset, absentProof)
	require.NoError(t, err)
	require.Empty(t, word)

	// The storage proof does not verify against the state root.
	_, err = trie.VerifyStorageProof(root, slot, storageProof)
	require.ErrorIs(t, err, trie.ErrProofInvalid)
}

func TestVerifyAccountProofAbsent(t *testing.T) {
	state := trietest.NewState(16)
	state.SetNonce(types.Address{0x01}, 1)
	root, err := state.Commit()
	require.NoError(t, err)

	missing := types.Address{0x02}
	proof, err := state.ProveAccount(missing)
	require.NoError(t, err)
	_, err = trie.VerifyAccountProof(root, missing, proof)
	require.ErrorIs(t, err, trie.ErrAccountAbsent)
}
