// Package node wires the anchor store, the message bus and the RPC surface
// into a runnable process and manages its lifecycle.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eth2030/xlbus/anchor"
	"github.com/eth2030/xlbus/api"
	"github.com/eth2030/xlbus/auth"
	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/rawdb"
	"github.com/eth2030/xlbus/crypto"
	"github.com/eth2030/xlbus/log"
	"github.com/eth2030/xlbus/metrics"
)

const shutdownTimeout = 5 * time.Second

var ErrNodeRunning = errors.New("node: already running")

// Node is the top-level xlbus process.
type Node struct {
	config *Config
	log    *log.Logger

	db       rawdb.Database
	authz    *auth.Allowlist
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	anchor   *anchor.StateRootAnchor
	bus      *bus.MessageBus
	rpc      *rpc.Server

	mu       sync.Mutex
	running  bool
	listener net.Listener
	http     *http.Server
	stop     chan struct{}
}

// New creates a node from config. It opens the database and builds every
// subsystem but does not start serving.
func New(config *Config) (*Node, error) {
	return NewWithLogWriter(config, os.Stderr)
}

// NewWithLogWriter is New with logs written to w.
func NewWithLogWriter(config *Config, w io.Writer) (*Node, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := log.NewWithWriter(w, log.ParseLevel(config.Log.Level), config.Log.Format).With("node", config.Name)

	n := &Node{
		config:   config,
		log:      logger.Module("node"),
		authz:    auth.NewAllowlist(),
		registry: metrics.NewRegistry(),
		stop:     make(chan struct{}),
	}
	n.metrics = metrics.New(n.registry)
	n.authz.Grant(auth.RoleOwner, config.Auth.Owners...)
	n.authz.Grant(auth.RoleWorker, config.Auth.Workers...)
	n.authz.Grant(auth.RoleGateway, config.Auth.Gateways...)

	db, err := openDatabase(config)
	if err != nil {
		return nil, err
	}
	n.db = db

	n.anchor, err = anchor.New(db, config.AnchorConfig(), n.authz,
		anchor.WithLogger(logger), anchor.WithMetrics(n.metrics))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init anchor: %w", err)
	}
	n.bus, err = bus.New(db, config.BusConfig(), n.anchor, n.authz, crypto.NewCachingVerifier(config.Bus.SigCacheSize),
		bus.WithLogger(logger), bus.WithMetrics(n.metrics))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bus: %w", err)
	}
	n.rpc, err = api.NewServer(api.APIs(n.anchor, n.bus))
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(config.Auth.Workers) == 0 {
		n.log.Warn("No workers configured, state roots cannot be committed")
	}
	return n, nil
}

func openDatabase(config *Config) (rawdb.Database, error) {
	if config.DataDir == "" {
		return rawdb.NewMemoryDB(), nil
	}
	db, err := rawdb.OpenPebble(config.ResolvePath("chaindata"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Start begins serving HTTP and WebSocket JSON-RPC.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return ErrNodeRunning
	}
	ln, err := net.Listen("tcp", n.config.RPCAddr())
	if err != nil {
		return fmt.Errorf("listen rpc: %w", err)
	}
	cfg := api.HandlerConfig{
		Anchor:    n.anchor,
		Metrics:   n.metrics,
		WSOrigins: n.config.RPC.WSOrigins,
		Logger:    n.log,
	}
	if n.config.Metrics.Enabled {
		cfg.Gatherer = n.registry
	}
	n.listener = ln
	n.http = &http.Server{
		Handler:           api.NewHandler(n.rpc, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := n.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.log.Error("RPC server failed", "err", err)
		}
	}()

	n.running = true
	n.log.Info("Node started", "rpc", ln.Addr().String(), "remoteChain", n.anchor.RemoteChainID(),
		"latest", n.anchor.LatestHeight(), "remoteBus", n.bus.RemoteBus())
	return nil
}

// Stop shuts down the RPC server and closes the database. The node cannot
// be restarted.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	select {
	case <-n.stop:
		return nil
	default:
	}
	if n.running {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := n.http.Shutdown(ctx); err != nil {
			n.log.Warn("RPC server shutdown", "err", err)
		}
		cancel()
	}
	n.rpc.Stop()
	if err := n.db.Close(); err != nil {
		n.log.Error("Database close error", "err", err)
	}
	n.running = false
	close(n.stop)
	n.log.Info("Node stopped")
	return nil
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	<-n.stop
}

// Addr returns the RPC listen address, or "" before Start.
func (n *Node) Addr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return ""
	}
	return n.listener.Addr().String()
}

// Anchor returns the state root anchor.
func (n *Node) Anchor() *anchor.StateRootAnchor { return n.anchor }

// Bus returns the message bus.
func (n *Node) Bus() *bus.MessageBus { return n.bus }

// Authorizer returns the node's role membership.
func (n *Node) Authorizer() *auth.Allowlist { return n.authz }

// Config returns the node configuration.
func (n *Node) Config() *Config { return n.config }

// Running reports whether the node is serving.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}
