// Package proofsource fetches status proofs from a remote ledger node over
// JSON-RPC (eth_getProof, EIP-1186) and shapes them for the message bus.
package proofsource

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/log"
	"github.com/eth2030/xlbus/trie"
)

var (
	ErrMalformedResponse = errors.New("proofsource: malformed eth_getProof response")
	ErrHeightMismatch    = errors.New("proofsource: node returned a different block")
)

// Source reads the remote bus's storage through a remote ledger node.
type Source struct {
	rpc        *rpc.Client
	eth        *ethclient.Client
	geth       *gethclient.Client
	remoteBus  types.Address
	outboxSlot uint64
	inboxSlot  uint64
	log        *log.Logger
}

// Dial connects to the node at url.
func Dial(ctx context.Context, url string, cfg bus.Config) (*Source, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("proofsource: dial %s: %w", url, err)
	}
	return New(c, cfg), nil
}

// New wraps an existing RPC client.
func New(c *rpc.Client, cfg bus.Config) *Source {
	return &Source{
		rpc:        c,
		eth:        ethclient.NewClient(c),
		geth:       gethclient.New(c),
		remoteBus:  cfg.RemoteBus,
		outboxSlot: cfg.OutboxSlot,
		inboxSlot:  cfg.InboxSlot,
		log:        log.Default().Module("proofsource"),
	}
}

// Close closes the underlying connection.
func (s *Source) Close() {
	s.rpc.Close()
}

// LatestHeight returns the node's head block number.
func (s *Source) LatestHeight(ctx context.Context) (uint64, error) {
	return s.eth.BlockNumber(ctx)
}

// StateRoot returns the state root of the remote block at height.
func (s *Source) StateRoot(ctx context.Context, height uint64) (types.Hash, error) {
	header, err := s.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(height))
	if err != nil {
		return types.Hash{}, fmt.Errorf("proofsource: header %d: %w", height, err)
	}
	if header.Number == nil || header.Number.Uint64() != height {
		return types.Hash{}, fmt.Errorf("%w: asked for %d, got %v", ErrHeightMismatch, height, header.Number)
	}
	return types.Hash(header.Root), nil
}

// StatusProof fetches a proof of hash's status in the remote box at height.
// The proof is checked against the block's state root before it is
// returned, together with the status it proves.
func (s *Source) StatusProof(ctx context.Context, box bus.Box, hash types.Hash, height uint64) (*bus.StatusProof, types.MessageStatus, error) {
	root, err := s.StateRoot(ctx, height)
	if err != nil {
		return nil, types.Undeclared, err
	}

	index := s.outboxSlot
	if box == bus.Inbox {
		index = s.inboxSlot
	}
	slot := trie.StorageSlot(index, hash[:])
	res, err := s.geth.GetProof(ctx, common.Address(s.remoteBus), []string{slot.Hex()}, new(big.Int).SetUint64(height))
	if err != nil {
		return nil, types.Undeclared, fmt.Errorf("proofsource: eth_getProof: %w", err)
	}
	if len(res.StorageProof) != 1 {
		return nil, types.Undeclared, fmt.Errorf("%w: %d storage proofs", ErrMalformedResponse, len(res.StorageProof))
	}

	proof := &bus.StatusProof{BlockHeight: height, StateRoot: root}
	if proof.AccountProof, err = decodeNodes(res.AccountProof); err != nil {
		return nil, types.Undeclared, err
	}
	if proof.StorageProof, err = decodeNodes(res.StorageProof[0].Proof); err != nil {
		return nil, types.Undeclared, err
	}

	acc, err := trie.VerifyAccountProof(root, s.remoteBus, proof.AccountProof)
	if err != nil {
		return nil, types.Undeclared, fmt.Errorf("proofsource: account proof: %w", err)
	}
	if acc.Root != types.Hash(res.StorageHash) {
		return nil, types.Undeclared, fmt.Errorf("%w: storage hash %s, proven %s", ErrMalformedResponse, res.StorageHash, acc.Root)
	}
	word, err := trie.VerifyStorageProof(acc.Root, slot, proof.StorageProof)
	if err != nil {
		return nil, types.Undeclared, fmt.Errorf("proofsource: storage proof: %w", err)
	}
	status, err := bus.DecodeStatus(word)
	if err != nil {
		return nil, types.Undeclared, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	s.log.Debug("Fetched status proof", "box", box, "hash", hash, "height", height, "status", status,
		"accountNodes", len(proof.AccountProof), "storageNodes", len(proof.StorageProof))
	return proof, status, nil
}

func decodeNodes(hexNodes []string) ([][]byte, error) {
	nodes := make([][]byte, len(hexNodes))
	for i, h := range hexNodes {
		n, err := hexutil.Decode(h)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d: %v", ErrMalformedResponse, i, err)
		}
		nodes[i] = n
	}
	return nodes, nil
}
