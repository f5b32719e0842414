// Package bus implements the cross-ledger message bus: the outbox and inbox
// status tables and the transitions between them. Transitions are gated
// either by revealing the unlock secret behind a message's hash lock or by a
// Merkle-Patricia proof of the counterpart box on the remote ledger, checked
// against a state root held by the anchor.
package bus

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/event"

	"github.com/eth2030/xlbus/auth"
	"github.com/eth2030/xlbus/core/rawdb"
	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
	"github.com/eth2030/xlbus/log"
	"github.com/eth2030/xlbus/metrics"
	"github.com/eth2030/xlbus/notify"
)

var (
	ErrInvalidState     = errors.New("bus: invalid message status")
	ErrInvalidSignature = errors.New("bus: invalid signature")
	ErrInvalidSecret    = errors.New("bus: invalid unlock secret")
	ErrInvalidProof     = errors.New("bus: invalid proof")
	ErrZeroAddress      = errors.New("bus: zero address")
	ErrZeroValue        = errors.New("bus: zero value")
	ErrUnauthorized     = auth.ErrUnauthorized
	ErrInvalidConfig    = errors.New("bus: invalid configuration")
)

func errZero(field string) error {
	return fmt.Errorf("%w: %s must not be zero", ErrZeroValue, field)
}

// Storage slot indices of the outbox and inbox mappings in the bus
// contract layout.
const (
	DefaultOutboxSlot = 7
	DefaultInboxSlot  = 8
)

// Config identifies the counterpart bus on the remote ledger.
type Config struct {
	RemoteBus  types.Address // account holding the remote bus storage
	OutboxSlot uint64
	InboxSlot  uint64
}

// DefaultConfig returns a configuration with the default slot layout.
func DefaultConfig(remote types.Address) Config {
	return Config{RemoteBus: remote, OutboxSlot: DefaultOutboxSlot, InboxSlot: DefaultInboxSlot}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RemoteBus.IsZero() {
		return fmt.Errorf("%w: remote bus %v", ErrInvalidConfig, ErrZeroAddress)
	}
	if c.OutboxSlot == c.InboxSlot {
		return fmt.Errorf("%w: outbox and inbox share slot %d", ErrInvalidConfig, c.OutboxSlot)
	}
	return nil
}

// Option configures a MessageBus.
type Option func(*MessageBus)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(b *MessageBus) { b.log = l.Module("bus") }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *MessageBus) { b.metrics = m }
}

// MessageBus owns the local outbox and inbox. All mutation goes through the
// transition methods; each runs under an exclusive lock scoped to the
// message hash and its box, so the two boxes never contend with each other.
// A failed call changes nothing.
type MessageBus struct {
	db         rawdb.Database
	roots      RootReader
	authz      auth.Authorizer
	verifier   crypto.SignatureVerifier
	remoteBus  types.Address
	outboxSlot uint64
	inboxSlot  uint64

	outboxLocks stripedLock
	inboxLocks  stripedLock

	events  notify.Dispatcher[StatusChanged]
	log     *log.Logger
	metrics *metrics.Metrics
}

// New creates a message bus over db.
func New(db rawdb.Database, cfg Config, roots RootReader, authz auth.Authorizer, verifier crypto.SignatureVerifier, opts ...Option) (*MessageBus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if roots == nil {
		return nil, fmt.Errorf("%w: no root reader", ErrInvalidConfig)
	}
	if verifier == nil {
		verifier = crypto.ECDSAVerifier{}
	}
	b := &MessageBus{
		db:         db,
		roots:      roots,
		authz:      authz,
		verifier:   verifier,
		remoteBus:  cfg.RemoteBus,
		outboxSlot: cfg.OutboxSlot,
		inboxSlot:  cfg.InboxSlot,
		log:        log.Default().Module("bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// RemoteBus returns the remote bus account proofs are checked against.
func (b *MessageBus) RemoteBus() types.Address {
	return b.remoteBus
}

// OutboxStatus returns the outbox status of hash.
func (b *MessageBus) OutboxStatus(hash types.Hash) (types.MessageStatus, error) {
	return rawdb.ReadStatus(b.db, Outbox, hash)
}

// InboxStatus returns the inbox status of hash.
func (b *MessageBus) InboxStatus(hash types.Hash) (types.MessageStatus, error) {
	return rawdb.ReadStatus(b.db, Inbox, hash)
}

// SubscribeStatusChanges delivers a StatusChanged for every later
// transition. Changes of one message arrive in transition order.
// Transitions never wait on ch: a change that does not fit in its buffer is
// dropped for this subscriber.
func (b *MessageBus) SubscribeStatusChanges(ch chan<- StatusChanged) event.Subscription {
	return b.events.Subscribe(ch)
}

// transition describes one edge of the status machine.
type transition struct {
	op   string
	box  Box
	from types.MessageStatus
	to   types.MessageStatus
}

// apply moves msg along t. guard runs under the lock once the current
// status has matched t.from; a guard error aborts without any write.
func (b *MessageBus) apply(t transition, msg *types.Message, guard func(hash types.Hash) error) (types.Hash, error) {
	if msg == nil {
		return types.Hash{}, b.reject(t.op, types.Hash{}, errZero("message"))
	}
	hash := MessageHash(msg)

	locks := &b.outboxLocks
	if t.box == Inbox {
		locks = &b.inboxLocks
	}
	unlock := locks.lock(hash)
	defer unlock()

	current, err := rawdb.ReadStatus(b.db, t.box, hash)
	if err != nil {
		return hash, err
	}
	if current != t.from {
		return hash, b.reject(t.op, hash, fmt.Errorf("%w: %s status must be %s, is %s", ErrInvalidState, t.box, t.from, current))
	}
	if guard != nil {
		if err := guard(hash); err != nil {
			return hash, b.reject(t.op, hash, err)
		}
	}
	if err := rawdb.WriteStatus(b.db, t.box, hash, t.to); err != nil {
		return hash, fmt.Errorf("bus: write %s status: %w", t.box, err)
	}

	b.metrics.Transition(t.box.String(), current.String(), t.to.String())
	b.log.Debug("Message status changed", "op", t.op, "box", t.box, "hash", hash, "from", current, "to", t.to)
	if missed := b.events.Send(StatusChanged{MessageHash: hash, Box: t.box, Prior: current, New: t.to}); missed > 0 {
		b.metrics.EventsDropped("bus", missed)
		b.log.Warn("Dropped status notification", "hash", hash, "box", t.box, "subscribers", missed)
	}
	return hash, nil
}

func (b *MessageBus) reject(op string, hash types.Hash, err error) error {
	b.metrics.Rejected(op, reason(err))
	b.log.Debug("Rejected message operation", "op", op, "hash", hash, "err", err)
	return err
}

func reason(err error) string {
	for _, e := range []struct {
		err  error
		name string
	}{
		{ErrInvalidState, "invalid_state"},
		{ErrInvalidSignature, "invalid_signature"},
		{ErrInvalidSecret, "invalid_secret"},
		{ErrInvalidProof, "invalid_proof"},
		{ErrZeroAddress, "zero_address"},
		{ErrZeroValue, "zero_value"},
		{ErrUnauthorized, "unauthorized"},
	} {
		if errors.Is(err, e.err) {
			return e.name
		}
	}
	return "other"
}

func checkSecret(lock types.Hash, secret []byte) error {
	if !crypto.CheckSecret(lock, secret) {
		return ErrInvalidSecret
	}
	return nil
}
