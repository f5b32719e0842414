package bus

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/trie"
)

// StatusProof asserts the status of a message in the remote bus's storage
// at an anchored remote block.
type StatusProof struct {
	BlockHeight  uint64
	StateRoot    types.Hash
	AccountProof [][]byte // state trie path to the remote bus account
	StorageProof [][]byte // storage trie path to the status slot
}

// RootReader provides anchored remote state roots. A zero hash means the
// height is not anchored.
type RootReader interface {
	GetStateRoot(height uint64) types.Hash
}

// remoteSlot returns the storage slot index of the remote box opposite to
// box: outbox transitions are proven against the remote inbox and vice versa.
func (b *MessageBus) remoteSlot(box Box) uint64 {
	if box == Outbox {
		return b.inboxSlot
	}
	return b.outboxSlot
}

// verifyRemoteStatus checks that proof shows hash in the remote box with one
// of the accepted statuses.
func (b *MessageBus) verifyRemoteStatus(box Box, hash types.Hash, proof *StatusProof, accepted ...types.MessageStatus) (err error) {
	start := time.Now()
	defer func() { b.metrics.ProofVerified(start, err == nil) }()

	if proof == nil {
		return fmt.Errorf("%w: missing proof", ErrInvalidProof)
	}
	anchored := b.roots.GetStateRoot(proof.BlockHeight)
	if anchored.IsZero() {
		return fmt.Errorf("%w: no state root anchored at height %d", ErrInvalidProof, proof.BlockHeight)
	}
	if anchored != proof.StateRoot {
		return fmt.Errorf("%w: state root %s does not match anchored root %s at height %d",
			ErrInvalidProof, proof.StateRoot, anchored, proof.BlockHeight)
	}
	acc, err := trie.VerifyAccountProof(anchored, b.remoteBus, proof.AccountProof)
	if err != nil {
		return fmt.Errorf("%w: account: %v", ErrInvalidProof, err)
	}
	slot := trie.StorageSlot(b.remoteSlot(box), hash[:])
	word, err := trie.VerifyStorageProof(acc.Root, slot, proof.StorageProof)
	if err != nil {
		return fmt.Errorf("%w: storage: %v", ErrInvalidProof, err)
	}
	status, err := DecodeStatus(word)
	if err != nil {
		return err
	}
	for _, s := range accepted {
		if status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: remote %s status is %s", ErrInvalidProof, oppositeBox(box), status)
}

// DecodeStatus interprets a remote storage word as a message status. An
// empty word is Undeclared.
func DecodeStatus(word []byte) (types.MessageStatus, error) {
	v := new(uint256.Int).SetBytes(word)
	if !v.IsUint64() || v.Uint64() > uint64(types.Revoked) {
		return types.Undeclared, fmt.Errorf("%w: storage word 0x%x is not a status", ErrInvalidProof, word)
	}
	return types.MessageStatus(v.Uint64()), nil
}

func oppositeBox(box Box) Box {
	if box == Outbox {
		return Inbox
	}
	return Outbox
}
