package bus

import "github.com/eth2030/xlbus/core/types"

// ConfirmMessage records msg in the inbox once the remote outbox is proven
// Declared or Progressed: Undeclared -> Declared.
func (b *MessageBus) ConfirmMessage(msg *types.Message, proof *StatusProof) (types.Hash, error) {
	const op = "confirm_message"
	if err := validateMessage(msg); err != nil {
		return types.Hash{}, b.reject(op, types.Hash{}, err)
	}
	t := transition{op: op, box: Inbox, from: types.Undeclared, to: types.Declared}
	return b.apply(t, msg, func(hash types.Hash) error {
		return b.verifyRemoteStatus(Inbox, hash, proof, types.Declared, types.Progressed)
	})
}

// ProgressInbox reveals the unlock secret: Declared -> Progressed.
func (b *MessageBus) ProgressInbox(msg *types.Message, secret []byte) (types.Hash, error) {
	t := transition{op: "progress_inbox", box: Inbox, from: types.Declared, to: types.Progressed}
	return b.apply(t, msg, func(types.Hash) error {
		return checkSecret(msg.HashLock, secret)
	})
}

// ProgressInboxWithProof progresses the inbox without the secret, given a
// proof that the remote outbox holds the message as Declared or
// Progressed: Declared -> Progressed.
func (b *MessageBus) ProgressInboxWithProof(msg *types.Message, proof *StatusProof) (types.Hash, error) {
	t := transition{op: "progress_inbox_with_proof", box: Inbox, from: types.Declared, to: types.Progressed}
	return b.apply(t, msg, func(hash types.Hash) error {
		return b.verifyRemoteStatus(Inbox, hash, proof, types.Declared, types.Progressed)
	})
}

// ConfirmRevocation revokes a confirmed message once the remote outbox is
// proven DeclaredRevocation or Revoked: Declared -> Revoked.
func (b *MessageBus) ConfirmRevocation(msg *types.Message, proof *StatusProof) (types.Hash, error) {
	t := transition{op: "confirm_revocation", box: Inbox, from: types.Declared, to: types.Revoked}
	return b.apply(t, msg, func(hash types.Hash) error {
		return b.verifyRemoteStatus(Inbox, hash, proof, types.DeclaredRevocation, types.Revoked)
	})
}
