package anchor

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
)

var commitDomain = []byte("xlbus.anchor.commit")

// CommitDigest returns the hash a worker signs to commit root at height of
// the remote chain chainID:
//
//	keccak256("xlbus.anchor.commit" || chainID (8 bytes BE) || height (8 bytes BE) || root)
func CommitDigest(chainID, height uint64, root types.Hash) types.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], chainID)
	binary.BigEndian.PutUint64(buf[8:], height)
	return crypto.Keccak256Hash(commitDomain, buf[:], root[:])
}

// SignCommit signs the commit digest of (chainID, height, root) with key.
func SignCommit(key *ecdsa.PrivateKey, chainID, height uint64, root types.Hash) ([]byte, error) {
	return crypto.Sign(CommitDigest(chainID, height, root), key)
}

// CommitSignedStateRoot commits root at height on behalf of the worker whose
// key produced sig over CommitDigest. A signature that does not recover, or
// recovers to an account without the worker role, is rejected with
// ErrUnauthorized.
func (a *StateRootAnchor) CommitSignedStateRoot(height uint64, root types.Hash, sig []byte) error {
	caller, err := crypto.RecoverAddress(CommitDigest(a.chainID, height, root), sig)
	if err != nil {
		a.metrics.AnchorRejected("unauthorized")
		return fmt.Errorf("%w: commit signature: %v", ErrUnauthorized, err)
	}
	return a.CommitStateRoot(caller, height, root)
}
