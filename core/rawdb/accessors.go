package rawdb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/eth2030/xlbus/core/types"
)

// ReadStatus returns the status of hash in box. Missing entries are Undeclared.
func ReadStatus(db KeyValueReader, box Box, hash types.Hash) (types.MessageStatus, error) {
	data, err := db.Get(statusKey(box, hash))
	if errors.Is(err, ErrNotFound) {
		return types.Undeclared, nil
	}
	if err != nil {
		return types.Undeclared, err
	}
	if len(data) != 1 || !types.MessageStatus(data[0]).Valid() {
		return types.Undeclared, fmt.Errorf("rawdb: corrupt %s status for %s", box, hash)
	}
	return types.MessageStatus(data[0]), nil
}

// WriteStatus stores the status of hash in box. Undeclared is never stored.
func WriteStatus(db KeyValueWriter, box Box, hash types.Hash, status types.MessageStatus) error {
	if status == types.Undeclared {
		return db.Delete(statusKey(box, hash))
	}
	return db.Put(statusKey(box, hash), []byte{byte(status)})
}

// ReadStateRoot returns the root anchored at height, or the zero hash.
func ReadStateRoot(db KeyValueReader, height uint64) (types.Hash, error) {
	data, err := db.Get(anchorRootKey(height))
	if errors.Is(err, ErrNotFound) {
		return types.Hash{}, nil
	}
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(data), nil
}

// WriteStateRoot stores the root anchored at height.
func WriteStateRoot(db KeyValueWriter, height uint64, root types.Hash) error {
	return db.Put(anchorRootKey(height), root[:])
}

// DeleteStateRoot removes the root anchored at height.
func DeleteStateRoot(db KeyValueWriter, height uint64) error {
	return db.Delete(anchorRootKey(height))
}

// ReadAnchorHeights returns every height with a stored root, ascending.
func ReadAnchorHeights(db Iteratee) ([]uint64, error) {
	it := db.NewIterator(anchorRootPrefix, nil)
	defer it.Release()

	var heights []uint64
	for it.Next() {
		key := it.Key()
		if len(key) != len(anchorRootPrefix)+8 {
			continue
		}
		heights = append(heights, binary.BigEndian.Uint64(key[len(anchorRootPrefix):]))
	}
	return heights, it.Error()
}

// ReadLatestAnchorHeight returns the highest anchored height and whether any
// anchor state has been written.
func ReadLatestAnchorHeight(db KeyValueReader) (uint64, bool, error) {
	return readUint64(db, latestAnchorKey)
}

// WriteLatestAnchorHeight stores the highest anchored height.
func WriteLatestAnchorHeight(db KeyValueWriter, height uint64) error {
	return db.Put(latestAnchorKey, encodeBlockNumber(height))
}

// ReadAnchorChainID returns the remote chain id the anchor store was created for.
func ReadAnchorChainID(db KeyValueReader) (uint64, bool, error) {
	return readUint64(db, anchorChainIDKey)
}

// WriteAnchorChainID stores the remote chain id.
func WriteAnchorChainID(db KeyValueWriter, id uint64) error {
	return db.Put(anchorChainIDKey, encodeBlockNumber(id))
}

func readUint64(db KeyValueReader, key []byte) (uint64, bool, error) {
	data, err := db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("rawdb: corrupt value under %q", key)
	}
	return binary.BigEndian.Uint64(data), true, nil
}
