package proofsource

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/eth2030/xlbus/anchor"
	"github.com/eth2030/xlbus/auth"
	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/rawdb"
	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
	"github.com/eth2030/xlbus/log"
	"github.com/eth2030/xlbus/trie"
	"github.com/eth2030/xlbus/trie/trietest"
)

var remoteBus = types.HexToAddress("0x00000000000000000000000000000000000b0b05")

// fakeEth serves the subset of the eth namespace the source uses, backed
// by a single committed trietest state at height head.
type fakeEth struct {
	state   *trietest.State
	root    types.Hash
	head    uint64
	corrupt bool
}

type storageResult struct {
	Key   string       `json:"key"`
	Value *hexutil.Big `json:"value"`
	Proof []string     `json:"proof"`
}

type accountResult struct {
	Address      common.Address  `json:"address"`
	AccountProof []string        `json:"accountProof"`
	Balance      *hexutil.Big    `json:"balance"`
	CodeHash     common.Hash     `json:"codeHash"`
	Nonce        hexutil.Uint64  `json:"nonce"`
	StorageHash  common.Hash     `json:"storageHash"`
	StorageProof []storageResult `json:"storageProof"`
}

func (f *fakeEth) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(f.head)
}

func (f *fakeEth) GetBlockByNumber(_ context.Context, number string, _ bool) (*gethtypes.Header, error) {
	n, err := hexutil.DecodeUint64(number)
	if err != nil {
		return nil, err
	}
	if n != f.head {
		return nil, nil
	}
	return &gethtypes.Header{
		Number:     new(big.Int).SetUint64(n),
		Root:       common.Hash(f.root),
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
		Time:       1_700_000_000,
	}, nil
}

func (f *fakeEth) GetProof(_ context.Context, addr common.Address, keys []string, block string) (*accountResult, error) {
	n, err := hexutil.DecodeUint64(block)
	if err != nil || n != f.head {
		return nil, fmt.Errorf("unknown block %s", block)
	}
	acc, err := f.state.ProveAccount(types.Address(addr))
	if err != nil {
		return nil, err
	}
	res := &accountResult{
		Address:      addr,
		AccountProof: encodeNodes(acc),
		Balance:      (*hexutil.Big)(big.NewInt(1)),
		CodeHash:     gethtypes.EmptyCodeHash,
		StorageHash:  common.Hash(f.state.StorageRoot(types.Address(addr))),
	}
	for _, k := range keys {
		slot := types.HexToHash(k)
		proof, err := f.state.ProveStorage(types.Address(addr), slot)
		if err != nil {
			return nil, err
		}
		word, err := trie.VerifyStorageProof(f.state.StorageRoot(types.Address(addr)), slot, proof)
		if err != nil {
			return nil, err
		}
		nodes := encodeNodes(proof)
		if f.corrupt {
			nodes[0] = "0xzz"
		}
		res.StorageProof = append(res.StorageProof, storageResult{
			Key:   k,
			Value: (*hexutil.Big)(new(big.Int).SetBytes(word)),
			Proof: nodes,
		})
	}
	return res, nil
}

func encodeNodes(nodes [][]byte) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = hexutil.Encode(n)
	}
	return out
}

func testMessage(t *testing.T) *types.Message {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	msg := &types.Message{
		MessageTypeHash: crypto.Keccak256Hash([]byte("gatewaylink")),
		IntentHash:      crypto.Keccak256Hash([]byte("intent")),
		Nonce:           1,
		Sender:          crypto.PubkeyToAddress(&key.PublicKey),
		HashLock:        crypto.HashLock([]byte("s")),
	}
	msg.GasPrice.SetUint64(1_000_000_000)
	return msg
}

func newFake(t *testing.T, msg *types.Message, status types.MessageStatus) (*Source, *fakeEth) {
	t.Helper()
	state := trietest.NewState(16)
	hash := bus.MessageHash(msg)
	state.SetStorage(remoteBus, trie.StorageSlot(bus.DefaultOutboxSlot, hash[:]), uint256.NewInt(uint64(status)).Bytes())
	root, err := state.Commit()
	require.NoError(t, err)

	fake := &fakeEth{state: state, root: root, head: 42}
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", fake))
	t.Cleanup(srv.Stop)

	src := New(rpc.DialInProc(srv), bus.DefaultConfig(remoteBus))
	t.Cleanup(src.Close)
	return src, fake
}

func TestStatusProofFeedsBus(t *testing.T) {
	msg := testMessage(t)
	src, fake := newFake(t, msg, types.Declared)
	ctx := context.Background()

	head, err := src.LatestHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(42), head)

	proof, status, err := src.StatusProof(ctx, bus.Outbox, bus.MessageHash(msg), head)
	require.NoError(t, err)
	require.Equal(t, types.Declared, status)
	require.Equal(t, fake.root, proof.StateRoot)
	require.Equal(t, head, proof.BlockHeight)

	anc, err := anchor.New(rawdb.NewMemoryDB(), anchor.Config{
		RemoteChainID: 1, MaxEntries: 8, GenesisHeight: head, GenesisRoot: fake.root,
	}, auth.AllowAll, anchor.WithLogger(log.Discard()))
	require.NoError(t, err)
	b, err := bus.New(rawdb.NewMemoryDB(), bus.DefaultConfig(remoteBus), anc, auth.AllowAll, nil, bus.WithLogger(log.Discard()))
	require.NoError(t, err)

	hash, err := b.ConfirmMessage(msg, proof)
	require.NoError(t, err)
	st, err := b.InboxStatus(hash)
	require.NoError(t, err)
	require.Equal(t, types.Declared, st)
}

func TestStatusProofAbsentMessage(t *testing.T) {
	src, _ := newFake(t, testMessage(t), types.Progressed)

	other := crypto.Keccak256Hash([]byte("unknown"))
	proof, status, err := src.StatusProof(context.Background(), bus.Outbox, other, 42)
	require.NoError(t, err)
	require.Equal(t, types.Undeclared, status)
	require.NotEmpty(t, proof.StorageProof)

	// The inbox slot of a known message is empty too.
	_, status, err = src.StatusProof(context.Background(), bus.Inbox, other, 42)
	require.NoError(t, err)
	require.Equal(t, types.Undeclared, status)
}

func TestStatusProofErrors(t *testing.T) {
	msg := testMessage(t)
	src, fake := newFake(t, msg, types.Declared)
	ctx := context.Background()

	_, _, err := src.StatusProof(ctx, bus.Outbox, bus.MessageHash(msg), 41)
	require.Error(t, err)

	fake.corrupt = true
	_, _, err = src.StatusProof(ctx, bus.Outbox, bus.MessageHash(msg), 42)
	require.ErrorIs(t, err, ErrMalformedResponse)

	fake.corrupt = false
	fake.root = crypto.Keccak256Hash([]byte("forged root"))
	_, _, err = src.StatusProof(ctx, bus.Outbox, bus.MessageHash(msg), 42)
	require.ErrorIs(t, err, trie.ErrProofInvalid)
}
