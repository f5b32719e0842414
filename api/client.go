package api

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/types"
)

// Client is a typed client for the anchor and bus namespaces.
type Client struct {
	c *rpc.Client
}

// Dial connects to a node at url (http, ws or ipc).
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("api: dial %s: %w", url, err)
	}
	return NewClient(c), nil
}

// NewClient wraps an RPC client.
func NewClient(c *rpc.Client) *Client {
	return &Client{c: c}
}

// Close closes the connection.
func (c *Client) Close() {
	c.c.Close()
}

// LatestHeight calls anchor_latestHeight.
func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	var h hexutil.Uint64
	err := c.c.CallContext(ctx, &h, "anchor_latestHeight")
	return uint64(h), err
}

// StateRoot calls anchor_getStateRoot.
func (c *Client) StateRoot(ctx context.Context, height uint64) (types.Hash, error) {
	var root types.Hash
	err := c.c.CallContext(ctx, &root, "anchor_getStateRoot", hexutil.Uint64(height))
	return root, err
}

// CommitStateRoot calls anchor_commitStateRoot. sig is produced by
// anchor.SignCommit.
func (c *Client) CommitStateRoot(ctx context.Context, height uint64, root types.Hash, sig []byte) error {
	return c.c.CallContext(ctx, nil, "anchor_commitStateRoot", hexutil.Uint64(height), root, hexutil.Bytes(sig))
}

// AnchorInfo calls anchor_info.
func (c *Client) AnchorInfo(ctx context.Context) (*AnchorInfo, error) {
	var info AnchorInfo
	if err := c.c.CallContext(ctx, &info, "anchor_info"); err != nil {
		return nil, err
	}
	return &info, nil
}

// SubscribeStateRoots subscribes to anchor commits. Requires a WebSocket
// or in-process connection.
func (c *Client) SubscribeStateRoots(ctx context.Context, ch chan<- *RPCStateRoot) (*rpc.ClientSubscription, error) {
	return c.c.Subscribe(ctx, "anchor", ch, "stateRoots")
}

// MessageHash calls bus_messageHash.
func (c *Client) MessageHash(ctx context.Context, msg *types.Message) (types.Hash, error) {
	var hash types.Hash
	err := c.c.CallContext(ctx, &hash, "bus_messageHash", NewRPCMessage(msg))
	return hash, err
}

// Status returns the status of hash in box.
func (c *Client) Status(ctx context.Context, box bus.Box, hash types.Hash) (types.MessageStatus, error) {
	method := "bus_outboxStatus"
	if box == bus.Inbox {
		method = "bus_inboxStatus"
	}
	var status types.MessageStatus
	err := c.c.CallContext(ctx, &status, method, hash)
	return status, err
}

// DeclareMessage calls bus_declareMessage. gatewaySig is produced by
// bus.SignDeclaration.
func (c *Client) DeclareMessage(ctx context.Context, msg *types.Message, sig, gatewaySig []byte) (types.Hash, error) {
	return c.transition(ctx, "bus_declareMessage", NewRPCMessage(msg), hexutil.Bytes(sig), hexutil.Bytes(gatewaySig))
}

// ProgressOutbox calls bus_progressOutbox.
func (c *Client) ProgressOutbox(ctx context.Context, msg *types.Message, secret []byte) (types.Hash, error) {
	return c.transition(ctx, "bus_progressOutbox", NewRPCMessage(msg), hexutil.Bytes(secret))
}

// ProgressOutboxWithProof calls bus_progressOutboxWithProof.
func (c *Client) ProgressOutboxWithProof(ctx context.Context, msg *types.Message, proof *bus.StatusProof, claimed types.MessageStatus) (types.Hash, error) {
	return c.transition(ctx, "bus_progressOutboxWithProof", NewRPCMessage(msg), NewRPCProof(proof), claimed)
}

// DeclareRevocationMessage calls bus_declareRevocationMessage.
func (c *Client) DeclareRevocationMessage(ctx context.Context, msg *types.Message) (types.Hash, error) {
	return c.transition(ctx, "bus_declareRevocationMessage", NewRPCMessage(msg))
}

// ProgressOutboxRevocation calls bus_progressOutboxRevocation.
func (c *Client) ProgressOutboxRevocation(ctx context.Context, msg *types.Message, proof *bus.StatusProof) (types.Hash, error) {
	return c.transition(ctx, "bus_progressOutboxRevocation", NewRPCMessage(msg), NewRPCProof(proof))
}

// ConfirmMessage calls bus_confirmMessage.
func (c *Client) ConfirmMessage(ctx context.Context, msg *types.Message, proof *bus.StatusProof) (types.Hash, error) {
	return c.transition(ctx, "bus_confirmMessage", NewRPCMessage(msg), NewRPCProof(proof))
}

// ProgressInbox calls bus_progressInbox.
func (c *Client) ProgressInbox(ctx context.Context, msg *types.Message, secret []byte) (types.Hash, error) {
	return c.transition(ctx, "bus_progressInbox", NewRPCMessage(msg), hexutil.Bytes(secret))
}

// ProgressInboxWithProof calls bus_progressInboxWithProof.
func (c *Client) ProgressInboxWithProof(ctx context.Context, msg *types.Message, proof *bus.StatusProof) (types.Hash, error) {
	return c.transition(ctx, "bus_progressInboxWithProof", NewRPCMessage(msg), NewRPCProof(proof))
}

// ConfirmRevocation calls bus_confirmRevocation.
func (c *Client) ConfirmRevocation(ctx context.Context, msg *types.Message, proof *bus.StatusProof) (types.Hash, error) {
	return c.transition(ctx, "bus_confirmRevocation", NewRPCMessage(msg), NewRPCProof(proof))
}

// SubscribeStatusChanges subscribes to bus transitions. Requires a
// WebSocket or in-process connection.
func (c *Client) SubscribeStatusChanges(ctx context.Context, ch chan<- *RPCStatusChange) (*rpc.ClientSubscription, error) {
	return c.c.Subscribe(ctx, "bus", ch, "statusChanges")
}

func (c *Client) transition(ctx context.Context, method string, args ...any) (types.Hash, error) {
	var hash types.Hash
	err := c.c.CallContext(ctx, &hash, method, args...)
	return hash, err
}
