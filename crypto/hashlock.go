package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/eth2030/xlbus/core/types"
)

// HashLock returns keccak256(secret), the lock committed into a message.
func HashLock(secret []byte) types.Hash {
	return Keccak256Hash(secret)
}

// CheckSecret reports whether secret opens lock.
func CheckSecret(lock types.Hash, secret []byte) bool {
	h := HashLock(secret)
	return subtle.ConstantTimeCompare(h[:], lock[:]) == 1
}

// NewSecret draws a random 32-byte unlock secret and returns it with its lock.
func NewSecret() (secret []byte, lock types.Hash, err error) {
	secret = make([]byte, 32)
	if _, err = rand.Read(secret); err != nil {
		return nil, types.Hash{}, fmt.Errorf("crypto: read secret: %w", err)
	}
	return secret, HashLock(secret), nil
}
