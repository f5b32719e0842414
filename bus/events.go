package bus

import (
	"github.com/eth2030/xlbus/core/rawdb"
	"github.com/eth2030/xlbus/core/types"
)

// Box selects the outbox or the inbox.
type Box = rawdb.Box

const (
	Outbox = rawdb.Outbox
	Inbox  = rawdb.Inbox
)

// StatusChanged is sent for every applied transition.
type StatusChanged struct {
	MessageHash types.Hash
	Box         Box
	Prior       types.MessageStatus
	New         types.MessageStatus
}
