// Package anchor keeps the bounded history of a remote ledger's state roots.
// Roots committed here are the trust anchors that remote status proofs are
// verified against.
package anchor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"

	"github.com/eth2030/xlbus/auth"
	"github.com/eth2030/xlbus/core/rawdb"
	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/log"
	"github.com/eth2030/xlbus/metrics"
	"github.com/eth2030/xlbus/notify"
)

var (
	ErrZeroRoot        = errors.New("anchor: state root must not be zero")
	ErrStaleHeight     = errors.New("anchor: block height is lower or equal to latest committed height")
	ErrUnauthorized    = auth.ErrUnauthorized
	ErrInvalidConfig   = errors.New("anchor: invalid configuration")
	ErrChainIDMismatch = errors.New("anchor: database belongs to another remote chain")
)

// Config describes the remote ledger being anchored and the history bound.
type Config struct {
	RemoteChainID uint64
	MaxEntries    uint64
	GenesisHeight uint64
	GenesisRoot   types.Hash
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxEntries == 0 {
		return fmt.Errorf("%w: max entries must be positive", ErrInvalidConfig)
	}
	if c.GenesisRoot.IsZero() {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, ErrZeroRoot)
	}
	return nil
}

// StateRootAvailable is delivered to subscribers after every commit.
type StateRootAvailable struct {
	Height uint64
	Root   types.Hash
}

// Option configures a StateRootAnchor.
type Option func(*StateRootAnchor)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *StateRootAnchor) { a.log = l.Module("anchor") }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *StateRootAnchor) { a.metrics = m }
}

// StateRootAnchor maps remote block heights to committed state roots,
// retaining only the most recent MaxEntries heights.
//
// Commits are serialized and each one is applied as a single atomic batch,
// eviction included, before the next commit can start. Reads go straight to
// the database and never wait on a commit.
type StateRootAnchor struct {
	db         rawdb.Database
	authz      auth.Authorizer
	chainID    uint64
	maxEntries uint64

	mu      sync.Mutex
	heights []uint64 // retained heights, ascending
	latest  atomic.Uint64

	events  notify.Dispatcher[StateRootAvailable]
	log     *log.Logger
	metrics *metrics.Metrics
}

// New opens the anchor store in db. An empty database is initialized with
// the genesis entry from cfg; otherwise the stored history is resumed.
func New(db rawdb.Database, cfg Config, authz auth.Authorizer, opts ...Option) (*StateRootAnchor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &StateRootAnchor{
		db:         db,
		authz:      authz,
		chainID:    cfg.RemoteChainID,
		maxEntries: cfg.MaxEntries,
		log:        log.Default().Module("anchor"),
	}
	for _, opt := range opts {
		opt(a)
	}

	latest, ok, err := rawdb.ReadLatestAnchorHeight(db)
	if err != nil {
		return nil, fmt.Errorf("anchor: read latest height: %w", err)
	}
	if ok {
		if err := a.load(latest); err != nil {
			return nil, err
		}
	} else if err := a.initGenesis(cfg); err != nil {
		return nil, err
	}
	a.metrics.AnchorLoaded(a.latest.Load(), len(a.heights))
	return a, nil
}

func (a *StateRootAnchor) initGenesis(cfg Config) error {
	batch := a.db.NewBatch()
	defer batch.Close()
	if err := rawdb.WriteStateRoot(batch, cfg.GenesisHeight, cfg.GenesisRoot); err != nil {
		return err
	}
	if err := rawdb.WriteLatestAnchorHeight(batch, cfg.GenesisHeight); err != nil {
		return err
	}
	if err := rawdb.WriteAnchorChainID(batch, cfg.RemoteChainID); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("anchor: write genesis: %w", err)
	}
	a.heights = []uint64{cfg.GenesisHeight}
	a.latest.Store(cfg.GenesisHeight)
	a.log.Info("Initialized state root anchor", "chain", cfg.RemoteChainID, "height", cfg.GenesisHeight, "root", cfg.GenesisRoot)
	return nil
}

func (a *StateRootAnchor) load(latest uint64) error {
	chainID, _, err := rawdb.ReadAnchorChainID(a.db)
	if err != nil {
		return fmt.Errorf("anchor: read chain id: %w", err)
	}
	if chainID != a.chainID {
		return fmt.Errorf("%w: stored %d, configured %d", ErrChainIDMismatch, chainID, a.chainID)
	}
	heights, err := rawdb.ReadAnchorHeights(a.db)
	if err != nil {
		return fmt.Errorf("anchor: read retained heights: %w", err)
	}
	// A smaller MaxEntries than the store was written with leaves roots
	// outside the window; drop them before serving reads.
	keep := heights[:0]
	batch := a.db.NewBatch()
	defer batch.Close()
	for _, h := range heights {
		if h <= latest && latest-h < a.maxEntries {
			keep = append(keep, h)
			continue
		}
		if err := rawdb.DeleteStateRoot(batch, h); err != nil {
			return err
		}
	}
	if pruned := len(heights) - len(keep); pruned > 0 {
		if err := batch.Write(); err != nil {
			return fmt.Errorf("anchor: prune history: %w", err)
		}
		a.log.Warn("Pruned state roots outside the history window", "count", pruned, "latest", latest)
	}
	a.heights = keep
	a.latest.Store(latest)
	a.log.Info("Loaded state root anchor", "chain", chainID, "latest", latest, "retained", len(a.heights))
	return nil
}

// CommitStateRoot anchors root at height. The caller must hold the worker
// role, the root must be non-zero and height must exceed the latest
// committed height. Committing h evicts every retained entry at or below
// h - MaxEntries.
func (a *StateRootAnchor) CommitStateRoot(caller types.Address, height uint64, root types.Hash) error {
	if err := auth.Require(a.authz, caller, auth.RoleWorker); err != nil {
		a.metrics.AnchorRejected("unauthorized")
		return err
	}
	if root.IsZero() {
		a.metrics.AnchorRejected("zero_root")
		return ErrZeroRoot
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	latest := a.latest.Load()
	if height <= latest {
		a.metrics.AnchorRejected("stale_height")
		return fmt.Errorf("%w: %d <= %d", ErrStaleHeight, height, latest)
	}

	evict := 0
	for evict < len(a.heights) && height-a.heights[evict] >= a.maxEntries {
		evict++
	}
	batch := a.db.NewBatch()
	defer batch.Close()
	for _, h := range a.heights[:evict] {
		if err := rawdb.DeleteStateRoot(batch, h); err != nil {
			return err
		}
	}
	if err := rawdb.WriteStateRoot(batch, height, root); err != nil {
		return err
	}
	if err := rawdb.WriteLatestAnchorHeight(batch, height); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("anchor: persist commit %d: %w", height, err)
	}

	if evict > 0 {
		a.log.Debug("Evicted state roots", "from", a.heights[0], "to", a.heights[evict-1])
	}
	a.heights = append(a.heights[evict:], height)
	a.latest.Store(height)
	a.metrics.AnchorCommitted(height, evict, len(a.heights))
	a.log.Info("Committed state root", "height", height, "root", root)

	if missed := a.events.Send(StateRootAvailable{Height: height, Root: root}); missed > 0 {
		a.metrics.EventsDropped("anchor", missed)
		a.log.Warn("Dropped state root notification", "height", height, "subscribers", missed)
	}
	return nil
}

// GetStateRoot returns the root anchored at height, or the zero hash when
// the height was never committed or has been evicted.
func (a *StateRootAnchor) GetStateRoot(height uint64) types.Hash {
	root, err := rawdb.ReadStateRoot(a.db, height)
	if err != nil {
		a.log.Error("Failed to read state root", "height", height, "err", err)
		return types.Hash{}
	}
	return root
}

// LatestHeight returns the highest committed height. The genesis entry is
// committed at construction, so there is always one.
func (a *StateRootAnchor) LatestHeight() uint64 {
	return a.latest.Load()
}

// RemoteChainID returns the id of the anchored ledger.
func (a *StateRootAnchor) RemoteChainID() uint64 {
	return a.chainID
}

// MaxEntries returns the history bound.
func (a *StateRootAnchor) MaxEntries() uint64 {
	return a.maxEntries
}

// RetainedHeights returns the heights currently held, ascending.
func (a *StateRootAnchor) RetainedHeights() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.heights...)
}

// SubscribeStateRoots delivers a StateRootAvailable for every later commit,
// in commit order. Commits never wait on ch: a notification that does not
// fit in its buffer is dropped for this subscriber.
func (a *StateRootAnchor) SubscribeStateRoots(ch chan<- StateRootAvailable) event.Subscription {
	return a.events.Subscribe(ch)
}
