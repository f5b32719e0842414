package bus

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
)

var declareDomain = []byte("xlbus.bus.declare")

// DeclareDigest returns the hash a gateway signs to declare the message
// with identity hash on the bus paired with remoteBus:
//
//	keccak256("xlbus.bus.declare" || remoteBus || hash)
func DeclareDigest(remoteBus types.Address, hash types.Hash) types.Hash {
	return crypto.Keccak256Hash(declareDomain, remoteBus[:], hash[:])
}

// SignDeclaration signs the declare digest of hash with key.
func SignDeclaration(key *ecdsa.PrivateKey, remoteBus types.Address, hash types.Hash) ([]byte, error) {
	return crypto.Sign(DeclareDigest(remoteBus, hash), key)
}

// DeclareSignedMessage declares msg on behalf of the gateway whose key
// produced gatewaySig over DeclareDigest. sig is the sender's signature as
// for DeclareMessage.
func (b *MessageBus) DeclareSignedMessage(msg *types.Message, sig, gatewaySig []byte) (types.Hash, error) {
	const op = "declare_message"
	if err := validateMessage(msg); err != nil {
		return types.Hash{}, b.reject(op, types.Hash{}, err)
	}
	hash := MessageHash(msg)
	caller, err := crypto.RecoverAddress(DeclareDigest(b.remoteBus, hash), gatewaySig)
	if err != nil {
		return types.Hash{}, b.reject(op, hash, fmt.Errorf("%w: gateway signature: %v", ErrUnauthorized, err))
	}
	return b.DeclareMessage(caller, msg, sig)
}
