package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/types"
)

// BusAPI is the "bus" RPC namespace.
type BusAPI struct {
	bus *bus.MessageBus
}

// NewBusAPI creates the bus namespace.
func NewBusAPI(b *bus.MessageBus) *BusAPI {
	return &BusAPI{bus: b}
}

// MessageHash implements bus_messageHash.
func (api *BusAPI) MessageHash(msg RPCMessage) types.Hash {
	return bus.MessageHash(msg.Message())
}

// OutboxStatus implements bus_outboxStatus.
func (api *BusAPI) OutboxStatus(hash types.Hash) (types.MessageStatus, error) {
	s, err := api.bus.OutboxStatus(hash)
	return s, wrapError(err)
}

// InboxStatus implements bus_inboxStatus.
func (api *BusAPI) InboxStatus(hash types.Hash) (types.MessageStatus, error) {
	s, err := api.bus.InboxStatus(hash)
	return s, wrapError(err)
}

// DeclareMessage implements bus_declareMessage. sig is the sender's
// signature over the message hash and gatewaySig a gateway's signature over
// bus.DeclareDigest; the declaring gateway is the recovered signer.
func (api *BusAPI) DeclareMessage(msg RPCMessage, sig, gatewaySig hexutil.Bytes) (types.Hash, error) {
	return result(api.bus.DeclareSignedMessage(msg.Message(), sig, gatewaySig))
}

// ProgressOutbox implements bus_progressOutbox.
func (api *BusAPI) ProgressOutbox(msg RPCMessage, secret hexutil.Bytes) (types.Hash, error) {
	return result(api.bus.ProgressOutbox(msg.Message(), secret))
}

// ProgressOutboxWithProof implements bus_progressOutboxWithProof.
func (api *BusAPI) ProgressOutboxWithProof(msg RPCMessage, proof *RPCProof, claimed types.MessageStatus) (types.Hash, error) {
	return result(api.bus.ProgressOutboxWithProof(msg.Message(), proof.StatusProof(), claimed))
}

// DeclareRevocationMessage implements bus_declareRevocationMessage.
func (api *BusAPI) DeclareRevocationMessage(msg RPCMessage) (types.Hash, error) {
	return result(api.bus.DeclareRevocationMessage(msg.Message()))
}

// ProgressOutboxRevocation implements bus_progressOutboxRevocation.
func (api *BusAPI) ProgressOutboxRevocation(msg RPCMessage, proof *RPCProof) (types.Hash, error) {
	return result(api.bus.ProgressOutboxRevocation(msg.Message(), proof.StatusProof()))
}

// ConfirmMessage implements bus_confirmMessage.
func (api *BusAPI) ConfirmMessage(msg RPCMessage, proof *RPCProof) (types.Hash, error) {
	return result(api.bus.ConfirmMessage(msg.Message(), proof.StatusProof()))
}

// ProgressInbox implements bus_progressInbox.
func (api *BusAPI) ProgressInbox(msg RPCMessage, secret hexutil.Bytes) (types.Hash, error) {
	return result(api.bus.ProgressInbox(msg.Message(), secret))
}

// ProgressInboxWithProof implements bus_progressInboxWithProof.
func (api *BusAPI) ProgressInboxWithProof(msg RPCMessage, proof *RPCProof) (types.Hash, error) {
	return result(api.bus.ProgressInboxWithProof(msg.Message(), proof.StatusProof()))
}

// ConfirmRevocation implements bus_confirmRevocation.
func (api *BusAPI) ConfirmRevocation(msg RPCMessage, proof *RPCProof) (types.Hash, error) {
	return result(api.bus.ConfirmRevocation(msg.Message(), proof.StatusProof()))
}

// StatusChanges implements bus_subscribe("statusChanges").
func (api *BusAPI) StatusChanges(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()
	changes := make(chan bus.StatusChanged, 64)
	sub := api.bus.SubscribeStatusChanges(changes)

	go func() {
		defer sub.Unsubscribe()

		for {
			select {
			case ev := <-changes:
				notifier.Notify(rpcSub.ID, newRPCStatusChange(ev))
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

func result(hash types.Hash, err error) (types.Hash, error) {
	if err != nil {
		return types.Hash{}, wrapError(err)
	}
	return hash, nil
}
