package rawdb

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryDB is an in-memory key-value database implementing Database. It is
// safe for concurrent use and backs tests and ephemeral nodes.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryDB creates a new in-memory database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

func (db *MemoryDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.data[string(key)]
	return ok, nil
}

func (db *MemoryDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	val, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

func (db *MemoryDB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *MemoryDB) Close() error { return nil }

// Len returns the number of entries in the database.
func (db *MemoryDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.data)
}

// NewIterator returns an iterator over a snapshot of the keys with prefix.
func (db *MemoryDB) NewIterator(prefix []byte, start []byte) Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	from := append(append([]byte(nil), prefix...), start...)
	var keys []string
	for k := range db.data {
		if bytes.HasPrefix([]byte(k), prefix) && k >= string(from) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	it := &memIterator{pos: -1}
	for _, k := range keys {
		it.keys = append(it.keys, []byte(k))
		it.values = append(it.values, append([]byte(nil), db.data[k]...))
	}
	return it
}

// NewBatch creates a batch whose writes apply together under one lock.
func (db *MemoryDB) NewBatch() Batch {
	return &memBatch{db: db}
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memBatch struct {
	db   *MemoryDB
	ops  []batchOp
	size int
}

func (b *memBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
	b.size += len(key)
	return nil
}

func (b *memBatch) ValueSize() int { return b.size }

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.db.data, string(op.key))
		} else {
			b.db.data[string(op.key)] = op.value
		}
	}
	return nil
}

func (b *memBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

func (b *memBatch) Close() error {
	b.ops = nil
	return nil
}

type memIterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
}

func (it *memIterator) Next() bool {
	if it.pos >= len(it.keys) {
		return false
	}
	it.pos++
	return it.pos < len(it.keys)
}

func (it *memIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return it.keys[it.pos]
}

func (it *memIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return it.values[it.pos]
}

func (it *memIterator) Error() error { return nil }

func (it *memIterator) Release() {
	it.keys, it.values = nil, nil
}
