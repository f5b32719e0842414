package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/eth2030/xlbus/anchor"
	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/types"
)

// RPCMessage is the JSON form of a message.
type RPCMessage struct {
	MessageTypeHash types.Hash     `json:"messageTypeHash"`
	IntentHash      types.Hash     `json:"intentHash"`
	Nonce           hexutil.Uint64 `json:"nonce"`
	GasPrice        *hexutil.U256  `json:"gasPrice"`
	GasLimit        *hexutil.U256  `json:"gasLimit"`
	Sender          types.Address  `json:"sender"`
	HashLock        types.Hash     `json:"hashLock"`
	GasConsumed     *hexutil.U256  `json:"gasConsumed"`
}

// NewRPCMessage converts msg to its JSON form.
func NewRPCMessage(msg *types.Message) *RPCMessage {
	return &RPCMessage{
		MessageTypeHash: msg.MessageTypeHash,
		IntentHash:      msg.IntentHash,
		Nonce:           hexutil.Uint64(msg.Nonce),
		GasPrice:        (*hexutil.U256)(new(uint256.Int).Set(&msg.GasPrice)),
		GasLimit:        (*hexutil.U256)(new(uint256.Int).Set(&msg.GasLimit)),
		Sender:          msg.Sender,
		HashLock:        msg.HashLock,
		GasConsumed:     (*hexutil.U256)(new(uint256.Int).Set(&msg.GasConsumed)),
	}
}

// Message converts m back to a message. Missing gas fields are zero.
func (m *RPCMessage) Message() *types.Message {
	msg := &types.Message{
		MessageTypeHash: m.MessageTypeHash,
		IntentHash:      m.IntentHash,
		Nonce:           uint64(m.Nonce),
		Sender:          m.Sender,
		HashLock:        m.HashLock,
	}
	setU256(&msg.GasPrice, m.GasPrice)
	setU256(&msg.GasLimit, m.GasLimit)
	setU256(&msg.GasConsumed, m.GasConsumed)
	return msg
}

func setU256(dst *uint256.Int, v *hexutil.U256) {
	if v != nil {
		dst.Set((*uint256.Int)(v))
	}
}

// RPCProof is the JSON form of a status proof.
type RPCProof struct {
	BlockHeight  hexutil.Uint64  `json:"blockHeight"`
	StateRoot    types.Hash      `json:"stateRoot"`
	AccountProof []hexutil.Bytes `json:"accountProof"`
	StorageProof []hexutil.Bytes `json:"storageProof"`
}

// NewRPCProof converts p to its JSON form.
func NewRPCProof(p *bus.StatusProof) *RPCProof {
	if p == nil {
		return nil
	}
	return &RPCProof{
		BlockHeight:  hexutil.Uint64(p.BlockHeight),
		StateRoot:    p.StateRoot,
		AccountProof: toBytes(p.AccountProof),
		StorageProof: toBytes(p.StorageProof),
	}
}

// StatusProof converts p back to a status proof. A nil p yields nil.
func (p *RPCProof) StatusProof() *bus.StatusProof {
	if p == nil {
		return nil
	}
	return &bus.StatusProof{
		BlockHeight:  uint64(p.BlockHeight),
		StateRoot:    p.StateRoot,
		AccountProof: fromBytes(p.AccountProof),
		StorageProof: fromBytes(p.StorageProof),
	}
}

func toBytes(nodes [][]byte) []hexutil.Bytes {
	out := make([]hexutil.Bytes, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

func fromBytes(nodes []hexutil.Bytes) [][]byte {
	out := make([][]byte, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

// AnchorInfo describes the anchor store.
type AnchorInfo struct {
	RemoteChainID hexutil.Uint64   `json:"remoteChainId"`
	MaxEntries    hexutil.Uint64   `json:"maxEntries"`
	LatestHeight  hexutil.Uint64   `json:"latestHeight"`
	Retained      []hexutil.Uint64 `json:"retained"`
}

// RPCStateRoot is the notification payload of anchor_subscribe("stateRoots").
type RPCStateRoot struct {
	Height hexutil.Uint64 `json:"height"`
	Root   types.Hash     `json:"root"`
}

func newRPCStateRoot(ev anchor.StateRootAvailable) *RPCStateRoot {
	return &RPCStateRoot{Height: hexutil.Uint64(ev.Height), Root: ev.Root}
}

// RPCStatusChange is the notification payload of bus_subscribe("statusChanges").
type RPCStatusChange struct {
	MessageHash types.Hash          `json:"messageHash"`
	Box         string              `json:"box"`
	Prior       types.MessageStatus `json:"prior"`
	New         types.MessageStatus `json:"new"`
}

func newRPCStatusChange(ev bus.StatusChanged) *RPCStatusChange {
	return &RPCStatusChange{MessageHash: ev.MessageHash, Box: ev.Box.String(), Prior: ev.Prior, New: ev.New}
}
