package crypto

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/lru"

	"github.com/eth2030/xlbus/core/types"
)

// DefaultSigCacheSize is the capacity used when NewCachingVerifier is given
// a non-positive size.
const DefaultSigCacheSize = 4096

// SigCacheStats holds hit/miss statistics for a CachingVerifier.
type SigCacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// CachingVerifier is an ECDSA verifier that remembers the signer recovered
// for each (hash, signature) pair. Resubmitting a declaration with the same
// signature skips public key recovery. Safe for concurrent use.
type CachingVerifier struct {
	cache *lru.Cache[types.Hash, types.Address]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachingVerifier creates a verifier caching up to size recoveries.
func NewCachingVerifier(size int) *CachingVerifier {
	if size <= 0 {
		size = DefaultSigCacheSize
	}
	return &CachingVerifier{cache: lru.NewCache[types.Hash, types.Address](size)}
}

// sigCacheKey is keccak256(hash || sig).
func sigCacheKey(hash types.Hash, sig []byte) types.Hash {
	return Keccak256Hash(hash[:], sig)
}

// VerifySignature implements SignatureVerifier. Failed recoveries are not
// cached.
func (v *CachingVerifier) VerifySignature(signer types.Address, hash types.Hash, sig []byte) bool {
	key := sigCacheKey(hash, sig)
	if addr, ok := v.cache.Get(key); ok {
		v.hits.Add(1)
		return addr == signer
	}
	v.misses.Add(1)

	addr, err := RecoverAddress(hash, sig)
	if err != nil {
		return false
	}
	v.cache.Add(key, addr)
	return addr == signer
}

// Stats returns a snapshot of the cache statistics.
func (v *CachingVerifier) Stats() SigCacheStats {
	return SigCacheStats{
		Hits:    v.hits.Load(),
		Misses:  v.misses.Load(),
		Entries: v.cache.Len(),
	}
}
