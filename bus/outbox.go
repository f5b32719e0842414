package bus

import (
	"fmt"

	"github.com/eth2030/xlbus/auth"
	"github.com/eth2030/xlbus/core/types"
)

// DeclareMessage records msg in the outbox: Undeclared -> Declared. The
// caller must hold the gateway role and sig must be the sender's signature
// over the message hash. It returns the message hash.
func (b *MessageBus) DeclareMessage(caller types.Address, msg *types.Message, sig []byte) (types.Hash, error) {
	const op = "declare_message"
	if err := auth.Require(b.authz, caller, auth.RoleGateway); err != nil {
		return types.Hash{}, b.reject(op, types.Hash{}, err)
	}
	if err := validateMessage(msg); err != nil {
		return types.Hash{}, b.reject(op, types.Hash{}, err)
	}
	t := transition{op: op, box: Outbox, from: types.Undeclared, to: types.Declared}
	return b.apply(t, msg, func(hash types.Hash) error {
		if !b.verifier.VerifySignature(msg.Sender, hash, sig) {
			return fmt.Errorf("%w: not signed by sender %s", ErrInvalidSignature, msg.Sender)
		}
		return nil
	})
}

// ProgressOutbox reveals the unlock secret: Declared -> Progressed.
func (b *MessageBus) ProgressOutbox(msg *types.Message, secret []byte) (types.Hash, error) {
	t := transition{op: "progress_outbox", box: Outbox, from: types.Declared, to: types.Progressed}
	return b.apply(t, msg, func(types.Hash) error {
		return checkSecret(msg.HashLock, secret)
	})
}

// ProgressOutboxWithProof progresses the outbox without the secret, given a
// proof that the remote inbox already holds the message as Progressed:
// Declared -> Progressed. claimed is the remote status the caller asserts
// and must be Progressed.
func (b *MessageBus) ProgressOutboxWithProof(msg *types.Message, proof *StatusProof, claimed types.MessageStatus) (types.Hash, error) {
	t := transition{op: "progress_outbox_with_proof", box: Outbox, from: types.Declared, to: types.Progressed}
	return b.apply(t, msg, func(hash types.Hash) error {
		if claimed != types.Progressed {
			return fmt.Errorf("%w: claimed remote status %s, need %s", ErrInvalidProof, claimed, types.Progressed)
		}
		return b.verifyRemoteStatus(Outbox, hash, proof, types.Progressed)
	})
}

// DeclareRevocationMessage starts revoking a declared message:
// Declared -> DeclaredRevocation.
func (b *MessageBus) DeclareRevocationMessage(msg *types.Message) (types.Hash, error) {
	t := transition{op: "declare_revocation", box: Outbox, from: types.Declared, to: types.DeclaredRevocation}
	return b.apply(t, msg, nil)
}

// ProgressOutboxRevocation completes a revocation once the remote inbox is
// proven Revoked: DeclaredRevocation -> Revoked.
func (b *MessageBus) ProgressOutboxRevocation(msg *types.Message, proof *StatusProof) (types.Hash, error) {
	t := transition{op: "progress_outbox_revocation", box: Outbox, from: types.DeclaredRevocation, to: types.Revoked}
	return b.apply(t, msg, func(hash types.Hash) error {
		return b.verifyRemoteStatus(Outbox, hash, proof, types.Revoked)
	})
}
