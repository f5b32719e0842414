// Package trie verifies Merkle-Patricia proofs produced by a remote ledger:
// plain key/value proofs, account proofs against a state root and storage
// slot proofs against an account's storage root.
package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
)

// EmptyRoot is the root of a trie with no entries, keccak256(rlp("")).
var EmptyRoot = types.HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

var (
	// ErrProofInvalid is returned when a Merkle proof is malformed, does not
	// hash-link to the root, or carries nodes that are not on the key's path.
	ErrProofInvalid = errors.New("trie: invalid proof")
)

// VerifyProof checks that proof proves the value stored under key in the trie
// with the given root. The proof is the ordered list of RLP-encoded nodes on
// the path, root first. Children referenced by hash consume the next node;
// children embedded in their parent (encodings shorter than 32 bytes) are
// walked in place and have no entry of their own.
//
// The value is returned on success. A nil value with a nil error means the
// proof shows the key is absent from the trie; an empty trie needs no nodes
// to show that.
func VerifyProof(root types.Hash, key []byte, proof [][]byte) ([]byte, error) {
	if len(proof) == 0 {
		if root == EmptyRoot {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: empty proof", ErrProofInvalid)
	}
	var (
		path   = keybytesToHex(key)
		want   = root[:]
		next   = 0
		node   []byte
		pos    int
		value  []byte
		absent bool
	)
walk:
	for {
		if node == nil {
			if next >= len(proof) {
				return nil, fmt.Errorf("%w: missing node %d", ErrProofInvalid, next)
			}
			node = proof[next]
			if !bytes.Equal(crypto.Keccak256(node), want) {
				return nil, fmt.Errorf("%w: node %d hash mismatch", ErrProofInvalid, next)
			}
			next++
		}
		elems, err := splitNode(node)
		if err != nil {
			return nil, err
		}

		var ref []byte
		switch len(elems) {
		case 2:
			nibbles, err := nodeKey(elems[0])
			if err != nil {
				return nil, err
			}
			rest := path[pos:]
			if hasTerm(nibbles) {
				if nibblesEqual(nibbles, rest) {
					if value, err = stringContent(elems[1]); err != nil {
						return nil, err
					}
				} else {
					absent = true
				}
				break walk
			}
			if len(nibbles) > len(rest) || !nibblesEqual(nibbles, rest[:len(nibbles)]) {
				absent = true
				break walk
			}
			pos += len(nibbles)
			ref = elems[1]

		case 17:
			nibble := path[pos]
			if nibble == terminatorNibble {
				if value, err = stringContent(elems[16]); err != nil {
					return nil, err
				}
				absent = len(value) == 0
				break walk
			}
			pos++
			ref = elems[nibble]

		default:
			return nil, fmt.Errorf("%w: node with %d items", ErrProofInvalid, len(elems))
		}

		node, want, err = resolveRef(ref)
		if err != nil {
			return nil, err
		}
		if node == nil && want == nil {
			absent = true
			break walk
		}
	}
	if next != len(proof) {
		return nil, fmt.Errorf("%w: %d unused nodes", ErrProofInvalid, len(proof)-next)
	}
	if absent {
		return nil, nil
	}
	return value, nil
}

// splitNode returns the raw RLP encodings of the items of a trie node.
func splitNode(node []byte) ([][]byte, error) {
	content, rest, err := rlp.SplitList(node)
	if err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: node is not an RLP list", ErrProofInvalid)
	}
	var elems [][]byte
	for len(content) > 0 {
		_, _, tail, err := rlp.Split(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofInvalid, err)
		}
		elems = append(elems, content[:len(content)-len(tail)])
		content = tail
		if len(elems) > 17 {
			break
		}
	}
	return elems, nil
}

// nodeKey decodes the hex-prefix key of a short node.
func nodeKey(item []byte) ([]byte, error) {
	compact, err := stringContent(item)
	if err != nil {
		return nil, err
	}
	if len(compact) == 0 || compact[0]>>4 > 3 {
		return nil, fmt.Errorf("%w: bad node key", ErrProofInvalid)
	}
	return compactToHex(compact), nil
}

// resolveRef interprets a child reference. It returns either the embedded
// node itself, the hash the next proof node must match, or two nils for an
// empty slot.
func resolveRef(ref []byte) (node, hash []byte, err error) {
	kind, content, _, err := rlp.Split(ref)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	switch {
	case kind == rlp.List:
		return ref, nil, nil
	case len(content) == 0:
		return nil, nil, nil
	case len(content) == types.HashLength:
		return nil, content, nil
	default:
		return nil, nil, fmt.Errorf("%w: child reference of %d bytes", ErrProofInvalid, len(content))
	}
}

func stringContent(item []byte) ([]byte, error) {
	kind, content, _, err := rlp.Split(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	if kind == rlp.List {
		return nil, fmt.Errorf("%w: expected string item", ErrProofInvalid)
	}
	return content, nil
}

// DecodeProofNodes splits the serialized form of a proof, an RLP list whose
// items are the path nodes, into the individual node encodings.
func DecodeProofNodes(data []byte) ([][]byte, error) {
	content, rest, err := rlp.SplitList(data)
	if err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: proof is not an RLP list", ErrProofInvalid)
	}
	var nodes [][]byte
	for len(content) > 0 {
		kind, _, tail, err := rlp.Split(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofInvalid, err)
		}
		if kind != rlp.List {
			return nil, fmt.Errorf("%w: proof item is not a node", ErrProofInvalid)
		}
		nodes = append(nodes, content[:len(content)-len(tail)])
		content = tail
	}
	return nodes, nil
}

// EncodeProofNodes is the inverse of DecodeProofNodes.
func EncodeProofNodes(nodes [][]byte) ([]byte, error) {
	raw := make([]rlp.RawValue, len(nodes))
	for i, n := range nodes {
		raw[i] = n
	}
	return rlp.EncodeToBytes(raw)
}
