// Package trietest builds real Merkle-Patricia state with go-ethereum's trie
// implementation so tests can produce the proofs a remote ledger node would
// serve from eth_getProof.
package trietest

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	gethrawdb "github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
	"github.com/eth2030/xlbus/trie"
)

// ProofList collects proof nodes in the order the trie emits them, root first.
type ProofList [][]byte

// Put implements ethdb.KeyValueWriter.
func (l *ProofList) Put(_ []byte, value []byte) error {
	*l = append(*l, append([]byte(nil), value...))
	return nil
}

// Delete implements ethdb.KeyValueWriter.
func (l *ProofList) Delete([]byte) error {
	return fmt.Errorf("trietest: delete not supported")
}

// NewTrie returns an empty in-memory go-ethereum trie.
func NewTrie() *gethtrie.Trie {
	return gethtrie.NewEmpty(triedb.NewDatabase(gethrawdb.NewMemoryDatabase(), nil))
}

// Prove returns the ordered proof for key in tr.
func Prove(tr *gethtrie.Trie, key []byte) ([][]byte, error) {
	var list ProofList
	if err := tr.Prove(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// State is a remote ledger's account and storage state.
type State struct {
	nonces   map[types.Address]uint64
	storage  map[types.Address]map[types.Hash][]byte
	accounts *gethtrie.Trie
	storages map[types.Address]*gethtrie.Trie
	roots    map[types.Address]types.Hash
	padding  int
}

// NewState returns an empty state. padding unrelated accounts are added on
// every Commit so proofs have realistic depth.
func NewState(padding int) *State {
	return &State{
		nonces:  make(map[types.Address]uint64),
		storage: make(map[types.Address]map[types.Hash][]byte),
		padding: padding,
	}
}

// SetStorage stores word at slot of addr. An empty word clears the slot.
func (s *State) SetStorage(addr types.Address, slot types.Hash, word []byte) {
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[types.Hash][]byte)
		s.storage[addr] = slots
	}
	if len(word) == 0 {
		delete(slots, slot)
		return
	}
	slots[slot] = common.TrimLeftZeroes(word)
}

// SetNonce sets the nonce of addr, creating the account.
func (s *State) SetNonce(addr types.Address, nonce uint64) {
	s.nonces[addr] = nonce
	if _, ok := s.storage[addr]; !ok {
		s.storage[addr] = make(map[types.Hash][]byte)
	}
}

// Commit rebuilds the tries and returns the state root.
func (s *State) Commit() (types.Hash, error) {
	s.accounts = NewTrie()
	s.storages = make(map[types.Address]*gethtrie.Trie)
	s.roots = make(map[types.Address]types.Hash)

	addrs := make([]types.Address, 0, len(s.storage))
	for addr := range s.storage {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return string(addrs[i][:]) < string(addrs[j][:]) })

	for _, addr := range addrs {
		st := NewTrie()
		for slot, word := range s.storage[addr] {
			enc, err := rlp.EncodeToBytes(word)
			if err != nil {
				return types.Hash{}, err
			}
			if err := st.Update(trie.StorageKey(slot), enc); err != nil {
				return types.Hash{}, err
			}
		}
		root := types.Hash(st.Hash())
		s.storages[addr] = st
		s.roots[addr] = root

		acc := &gethtypes.StateAccount{
			Nonce:    s.nonces[addr],
			Balance:  uint256.NewInt(1),
			Root:     common.Hash(root),
			CodeHash: gethtypes.EmptyCodeHash.Bytes(),
		}
		enc, err := rlp.EncodeToBytes(acc)
		if err != nil {
			return types.Hash{}, err
		}
		if err := s.accounts.Update(crypto.Keccak256(addr[:]), enc); err != nil {
			return types.Hash{}, err
		}
	}
	for i := 0; i < s.padding; i++ {
		filler := crypto.Keccak256([]byte(fmt.Sprintf("filler-%d", i)))
		enc, err := rlp.EncodeToBytes(&gethtypes.StateAccount{
			Nonce:    uint64(i),
			Balance:  uint256.NewInt(uint64(i)),
			Root:     gethtypes.EmptyRootHash,
			CodeHash: gethtypes.EmptyCodeHash.Bytes(),
		})
		if err != nil {
			return types.Hash{}, err
		}
		if err := s.accounts.Update(filler, enc); err != nil {
			return types.Hash{}, err
		}
	}
	return types.Hash(s.accounts.Hash()), nil
}

// StorageRoot returns the storage root of addr as of the last Commit.
func (s *State) StorageRoot(addr types.Address) types.Hash {
	return s.roots[addr]
}

// ProveAccount returns the account proof of addr as of the last Commit.
func (s *State) ProveAccount(addr types.Address) ([][]byte, error) {
	if s.accounts == nil {
		return nil, fmt.Errorf("trietest: state not committed")
	}
	return Prove(s.accounts, crypto.Keccak256(addr[:]))
}

// ProveStorage returns the storage proof of slot in addr as of the last Commit.
func (s *State) ProveStorage(addr types.Address, slot types.Hash) ([][]byte, error) {
	st, ok := s.storages[addr]
	if !ok {
		return nil, fmt.Errorf("trietest: unknown account %s", addr)
	}
	return Prove(st, trie.StorageKey(slot))
}
