package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eth2030/xlbus/core/types"
)

func TestKeccak256EmptyInput(t *testing.T) {
	got := hex.EncodeToString(Keccak256())
	require.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", got)
}

func TestKeccak256Concatenates(t *testing.T) {
	require.Equal(t, Keccak256([]byte("abcdef")), Keccak256([]byte("abc"), []byte("def")))
}

func TestHashLock(t *testing.T) {
	lock := HashLock([]byte("s"))
	require.True(t, CheckSecret(lock, []byte("s")))
	require.False(t, CheckSecret(lock, []byte("t")))
	require.False(t, CheckSecret(lock, nil))
}

func TestNewSecret(t *testing.T) {
	secret, lock, err := NewSecret()
	require.NoError(t, err)
	require.Len(t, secret, 32)
	require.True(t, CheckSecret(lock, secret))

	other, _, err := NewSecret()
	require.NoError(t, err)
	require.NotEqual(t, secret, other)
}

func TestECDSAVerifier(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	signer := PubkeyToAddress(&key.PublicKey)
	hash := Keccak256Hash([]byte("message"))

	sig, err := Sign(hash, key)
	require.NoError(t, err)

	var v ECDSAVerifier
	require.True(t, v.VerifySignature(signer, hash, sig))

	// Legacy V encoding.
	legacy := append([]byte(nil), sig...)
	legacy[64] += 27
	require.True(t, v.VerifySignature(signer, hash, legacy))

	// Wrong hash, wrong signer, malformed signatures.
	require.False(t, v.VerifySignature(signer, Keccak256Hash([]byte("other")), sig))
	require.False(t, v.VerifySignature(types.Address{0x01}, hash, sig))
	require.False(t, v.VerifySignature(signer, hash, nil))
	require.False(t, v.VerifySignature(signer, hash, sig[:64]))

	bad := append([]byte(nil), sig...)
	bad[64] = 5
	_, err = RecoverAddress(hash, bad)
	require.ErrorIs(t, err, ErrSignatureV)
}

func TestCachingVerifier(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	signer := PubkeyToAddress(&key.PublicKey)
	hash := Keccak256Hash([]byte("message"))
	sig, err := Sign(hash, key)
	require.NoError(t, err)

	v := NewCachingVerifier(2)
	require.True(t, v.VerifySignature(signer, hash, sig))
	require.True(t, v.VerifySignature(signer, hash, sig))
	// A cached recovery still checks the claimed signer.
	require.False(t, v.VerifySignature(types.Address{0x01}, hash, sig))
	require.Equal(t, SigCacheStats{Hits: 2, Misses: 1, Entries: 1}, v.Stats())

	// Malformed signatures are rejected and not cached.
	require.False(t, v.VerifySignature(signer, hash, sig[:64]))
	require.Equal(t, 1, v.Stats().Entries)

	// Capacity bounds the cache.
	for i := 0; i < 3; i++ {
		h := Keccak256Hash([]byte{byte(i)})
		s, err := Sign(h, key)
		require.NoError(t, err)
		require.True(t, v.VerifySignature(signer, h, s))
	}
	require.Equal(t, 2, v.Stats().Entries)
}
