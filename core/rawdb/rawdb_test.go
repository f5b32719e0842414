package rawdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eth2030/xlbus/core/types"
)

func testDatabases(t *testing.T) map[string]Database {
	t.Helper()
	pdb, err := OpenPebbleInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { pdb.Close() })
	return map[string]Database{
		"memory": NewMemoryDB(),
		"pebble": pdb,
	}
}

func TestStatusAccessors(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			hash := types.HexToHash("0x01")

			status, err := ReadStatus(db, Outbox, hash)
			require.NoError(t, err)
			require.Equal(t, types.Undeclared, status)

			require.NoError(t, WriteStatus(db, Outbox, hash, types.Declared))
			status, err = ReadStatus(db, Outbox, hash)
			require.NoError(t, err)
			require.Equal(t, types.Declared, status)

			// The boxes are independent.
			status, err = ReadStatus(db, Inbox, hash)
			require.NoError(t, err)
			require.Equal(t, types.Undeclared, status)

			require.NoError(t, WriteStatus(db, Outbox, hash, types.Undeclared))
			ok, err := db.Has(statusKey(Outbox, hash))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestCorruptStatus(t *testing.T) {
	db := NewMemoryDB()
	hash := types.HexToHash("0x02")
	require.NoError(t, db.Put(statusKey(Inbox, hash), []byte{9}))
	_, err := ReadStatus(db, Inbox, hash)
	require.Error(t, err)
}

func TestAnchorAccessors(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := ReadLatestAnchorHeight(db)
			require.NoError(t, err)
			require.False(t, ok)

			root := types.HexToHash("0xabcd")
			batch := db.NewBatch()
			require.NoError(t, WriteStateRoot(batch, 5, root))
			require.NoError(t, WriteLatestAnchorHeight(batch, 5))
			require.NoError(t, WriteAnchorChainID(batch, 1410))

			// Nothing is visible before the batch is written.
			got, err := ReadStateRoot(db, 5)
			require.NoError(t, err)
			require.True(t, got.IsZero())

			require.NoError(t, batch.Write())

			got, err = ReadStateRoot(db, 5)
			require.NoError(t, err)
			require.Equal(t, root, got)

			height, ok, err := ReadLatestAnchorHeight(db)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, uint64(5), height)

			id, ok, err := ReadAnchorChainID(db)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, uint64(1410), id)

			require.NoError(t, DeleteStateRoot(db, 5))
			got, err = ReadStateRoot(db, 5)
			require.NoError(t, err)
			require.True(t, got.IsZero())
		})
	}
}

func TestBatchReset(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			batch := db.NewBatch()
			require.NoError(t, batch.Put([]byte("k"), []byte("v")))
			require.Positive(t, batch.ValueSize())
			batch.Reset()
			require.Zero(t, batch.ValueSize())
			require.NoError(t, batch.Write())

			_, err := db.Get([]byte("k"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestReadAnchorHeights(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			heights, err := ReadAnchorHeights(db)
			require.NoError(t, err)
			require.Empty(t, heights)

			for _, h := range []uint64{300, 7, 256, 1 << 40} {
				require.NoError(t, WriteStateRoot(db, h, types.HexToHash("0x01")))
			}
			// Neighbouring keys outside the root range.
			require.NoError(t, WriteLatestAnchorHeight(db, 300))
			require.NoError(t, WriteAnchorChainID(db, 5))
			require.NoError(t, WriteStatus(db, Outbox, types.HexToHash("0x02"), types.Declared))
			require.NoError(t, db.Put([]byte("b"), []byte{1}))

			heights, err = ReadAnchorHeights(db)
			require.NoError(t, err)
			require.Equal(t, []uint64{7, 256, 300, 1 << 40}, heights)

			require.NoError(t, DeleteStateRoot(db, 256))
			heights, err = ReadAnchorHeights(db)
			require.NoError(t, err)
			require.Equal(t, []uint64{7, 300, 1 << 40}, heights)
		})
	}
}

func TestIteratorStart(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"p1", "p2", "p3", "q1"} {
				require.NoError(t, db.Put([]byte(k), []byte(k)))
			}
			it := db.NewIterator([]byte("p"), []byte("2"))
			defer it.Release()

			var keys []string
			for it.Next() {
				keys = append(keys, string(it.Key()))
				require.Equal(t, it.Key(), it.Value())
			}
			require.NoError(t, it.Error())
			require.Equal(t, []string{"p2", "p3"}, keys)
			require.False(t, it.Next())
		})
	}
}

func TestUpperBound(t *testing.T) {
	require.Equal(t, []byte("b"), upperBound([]byte("a")))
	require.Equal(t, []byte{0x01}, upperBound([]byte{0x00, 0xff}))
	require.Nil(t, upperBound([]byte{0xff, 0xff}))
	require.Nil(t, upperBound(nil))
}

func TestBatchClose(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			batch := db.NewBatch()
			require.NoError(t, batch.Put([]byte("k"), []byte("v")))
			require.NoError(t, batch.Write())
			require.NoError(t, batch.Close())

			got, err := db.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), got)
		})
	}
}

func TestPebblePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenPebble(dir)
	require.NoError(t, err)
	require.NoError(t, WriteStateRoot(db, 7, types.HexToHash("0x07")))
	require.NoError(t, db.Close())

	db, err = OpenPebble(dir)
	require.NoError(t, err)
	defer db.Close()
	got, err := ReadStateRoot(db, 7)
	require.NoError(t, err)
	require.Equal(t, types.HexToHash("0x07"), got)
}
