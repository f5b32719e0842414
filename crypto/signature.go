package crypto

import (
	"crypto/ecdsa"
	"errors"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/eth2030/xlbus/core/types"
)

// SignatureLength is the size of a compact signature: R (32) || S (32) || V (1).
const SignatureLength = 65

var (
	ErrSignatureLength = errors.New("crypto: signature must be 65 bytes")
	ErrSignatureV      = errors.New("crypto: invalid V value")
)

// SignatureVerifier decides whether sig authorizes hash on behalf of signer.
type SignatureVerifier interface {
	VerifySignature(signer types.Address, hash types.Hash, sig []byte) bool
}

// ECDSAVerifier verifies secp256k1 signatures by public key recovery.
// V may be the raw recovery id (0, 1) or the legacy Ethereum form (27, 28).
type ECDSAVerifier struct{}

// VerifySignature implements SignatureVerifier.
func (ECDSAVerifier) VerifySignature(signer types.Address, hash types.Hash, sig []byte) bool {
	addr, err := RecoverAddress(hash, sig)
	if err != nil {
		return false
	}
	return addr == signer
}

// RecoverAddress returns the address whose key produced sig over hash.
func RecoverAddress(hash types.Hash, sig []byte) (types.Address, error) {
	norm, err := normalizeSignature(sig)
	if err != nil {
		return types.Address{}, err
	}
	pub, err := gethcrypto.SigToPub(hash[:], norm)
	if err != nil {
		return types.Address{}, err
	}
	return PubkeyToAddress(pub), nil
}

// Sign produces a compact signature with a raw recovery id.
func Sign(hash types.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return gethcrypto.Sign(hash[:], key)
}

// PubkeyToAddress derives the account address of a public key.
func PubkeyToAddress(pub *ecdsa.PublicKey) types.Address {
	return types.Address(gethcrypto.PubkeyToAddress(*pub))
}

// GenerateKey creates a fresh secp256k1 key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return gethcrypto.GenerateKey()
}

// HexToECDSA parses a hex encoded private key.
func HexToECDSA(s string) (*ecdsa.PrivateKey, error) {
	return gethcrypto.HexToECDSA(s)
}

func normalizeSignature(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, ErrSignatureLength
	}
	out := make([]byte, SignatureLength)
	copy(out, sig)
	switch v := out[64]; {
	case v == 0 || v == 1:
	case v == 27 || v == 28:
		out[64] = v - 27
	default:
		return nil, ErrSignatureV
	}
	return out, nil
}
