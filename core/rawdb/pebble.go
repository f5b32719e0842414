package rawdb

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleDB is a persistent Database backed by pebble. Every write is synced.
type PebbleDB struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble database in dir.
func OpenPebble(dir string) (*PebbleDB, error) {
	return openPebble(dir, &pebble.Options{})
}

// OpenPebbleInMemory opens a pebble database on an in-memory filesystem.
func OpenPebbleInMemory() (*PebbleDB, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(dir string, opts *pebble.Options) (*PebbleDB, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("rawdb: open pebble %q: %w", dir, err)
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (p *PebbleDB) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleDB) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// NewBatch returns a pebble batch committed atomically by Write.
func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{db: p.db, b: p.db.NewBatch()}
}

type pebbleBatch struct {
	db   *pebble.DB
	b    *pebble.Batch
	size int
}

func (b *pebbleBatch) Put(key, value []byte) error {
	b.size += len(key) + len(value)
	return b.b.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.b.Delete(key, nil)
}

func (b *pebbleBatch) ValueSize() int { return b.size }

func (b *pebbleBatch) Write() error {
	return b.b.Commit(pebble.Sync)
}

func (b *pebbleBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

func (b *pebbleBatch) Close() error {
	return b.b.Close()
}

// NewIterator returns an iterator over the keys with prefix, starting at
// prefix+start.
func (p *PebbleDB) NewIterator(prefix []byte, start []byte) Iterator {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: append(append([]byte(nil), prefix...), start...),
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return &pebbleIterator{err: err}
	}
	iter.First()
	return &pebbleIterator{iter: iter, moved: true}
}

// upperBound returns the smallest key greater than every key with prefix,
// or nil when there is none.
func upperBound(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] == 0xff {
			continue
		}
		limit := append([]byte(nil), prefix[:i+1]...)
		limit[i]++
		return limit
	}
	return nil
}

type pebbleIterator struct {
	iter     *pebble.Iterator
	moved    bool
	released bool
	err      error
}

func (it *pebbleIterator) Next() bool {
	if it.iter == nil || it.released {
		return false
	}
	if it.moved {
		it.moved = false
		return it.iter.Valid()
	}
	return it.iter.Next()
}

func (it *pebbleIterator) Key() []byte {
	if it.iter == nil || it.released || !it.iter.Valid() {
		return nil
	}
	return it.iter.Key()
}

func (it *pebbleIterator) Value() []byte {
	if it.iter == nil || it.released || !it.iter.Valid() {
		return nil
	}
	return it.iter.Value()
}

func (it *pebbleIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	if it.iter == nil {
		return nil
	}
	return it.iter.Error()
}

func (it *pebbleIterator) Release() {
	if it.iter != nil && !it.released {
		it.iter.Close()
		it.released = true
	}
}
