// Package rawdb provides the key-value persistence behind the anchor store
// and the message boxes, plus typed accessors for each record.
//
// Each record kind uses a distinct single-byte key prefix to avoid collisions.
package rawdb

import "errors"

var (
	ErrNotFound = errors.New("rawdb: not found")
)

// KeyValueReader wraps the Has and Get methods of a backing data store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete methods of a backing data store.
type KeyValueWriter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// KeyValueStore combines read and write access to a backing data store.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Close() error
}

// Batch is a write-only database that commits changes atomically. A batch
// must be closed once it is no longer needed, written or not.
type Batch interface {
	KeyValueWriter
	ValueSize() int
	Write() error
	Reset()
	Close() error
}

// Iterator walks a key range in ascending key order. Key and Value are only
// valid until the next call to Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Iteratee wraps the NewIterator method of a backing data store.
type Iteratee interface {
	// NewIterator iterates the keys carrying prefix, starting at
	// prefix+start.
	NewIterator(prefix []byte, start []byte) Iterator
}

// Batcher wraps the NewBatch method of a backing data store.
type Batcher interface {
	NewBatch() Batch
}

// Database is the full database interface combining all capabilities.
type Database interface {
	KeyValueStore
	Batcher
	Iteratee
}
