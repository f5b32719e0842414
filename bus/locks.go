package bus

import (
	"sync"

	"github.com/eth2030/xlbus/core/types"
)

const lockStripes = 256

// stripedLock serializes operations on the same message hash. Hashes are
// uniformly distributed, so the first byte picks the stripe.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(hash types.Hash) (unlock func()) {
	m := &l.stripes[hash[0]]
	m.Lock()
	return m.Unlock
}
