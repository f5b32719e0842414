package bus

import (
	"encoding/binary"

	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
)

// MessageHash returns the identity of msg: keccak256 over eight 32-byte
// words in the order
//
//	messageTypeHash, intentHash, nonce, gasPrice, gasLimit, sender, hashLock, gasConsumed
//
// with integers and the sender left-padded to 32 bytes. The order is a wire
// constant shared by both ledgers; changing it changes every identifier.
func MessageHash(msg *types.Message) types.Hash {
	var buf [8 * 32]byte
	copy(buf[0:32], msg.MessageTypeHash[:])
	copy(buf[32:64], msg.IntentHash[:])
	binary.BigEndian.PutUint64(buf[88:96], msg.Nonce)
	msg.GasPrice.WriteToSlice(buf[96:128])
	msg.GasLimit.WriteToSlice(buf[128:160])
	copy(buf[160+12:192], msg.Sender[:])
	copy(buf[192:224], msg.HashLock[:])
	msg.GasConsumed.WriteToSlice(buf[224:256])
	return crypto.Keccak256Hash(buf[:])
}

// validateMessage rejects a missing message and messages with zero
// sentinel fields.
func validateMessage(msg *types.Message) error {
	switch {
	case msg == nil:
		return errZero("message")
	case msg.Sender.IsZero():
		return ErrZeroAddress
	case msg.HashLock.IsZero():
		return errZero("hash lock")
	case msg.IntentHash.IsZero():
		return errZero("intent hash")
	case msg.MessageTypeHash.IsZero():
		return errZero("message type hash")
	}
	return nil
}
