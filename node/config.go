package node

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/eth2030/xlbus/anchor"
	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
)

// EnvPrefix prefixes every environment override, e.g. XLBUS_RPC_PORT.
const EnvPrefix = "XLBUS_"

var ErrInvalidConfig = errors.New("config: invalid")

// Config holds all configuration for an xlbus node. It is read from a TOML
// file and then overridden from the environment.
type Config struct {
	// DataDir is the root directory for all data storage. Empty keeps
	// everything in memory.
	DataDir string `toml:"datadir" env:"DATADIR"`

	// Name is a human-readable node identifier (used in logs).
	Name string `toml:"name" env:"NAME"`

	Log     LogConfig     `toml:"log" envPrefix:"LOG_"`
	RPC     RPCConfig     `toml:"rpc" envPrefix:"RPC_"`
	Metrics MetricsConfig `toml:"metrics" envPrefix:"METRICS_"`
	Anchor  AnchorConfig  `toml:"anchor" envPrefix:"ANCHOR_"`
	Bus     BusConfig     `toml:"bus" envPrefix:"BUS_"`
	Auth    AuthConfig    `toml:"auth" envPrefix:"AUTH_"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// RPCConfig holds JSON-RPC server configuration.
type RPCConfig struct {
	Host      string   `toml:"host" env:"HOST"`
	Port      int      `toml:"port" env:"PORT"`
	WSOrigins []string `toml:"ws_origins" env:"WS_ORIGINS" envSeparator:","`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" env:"ENABLED"`
}

// AnchorConfig describes the anchored remote ledger.
type AnchorConfig struct {
	RemoteChainID uint64     `toml:"remote_chain_id" env:"REMOTE_CHAIN_ID"`
	MaxEntries    uint64     `toml:"max_entries" env:"MAX_ENTRIES"`
	GenesisHeight uint64     `toml:"genesis_height" env:"GENESIS_HEIGHT"`
	GenesisRoot   types.Hash `toml:"genesis_root" env:"GENESIS_ROOT"`
}

// BusConfig locates the counterpart bus on the remote ledger.
type BusConfig struct {
	RemoteBus  types.Address `toml:"remote_bus" env:"REMOTE_BUS"`
	OutboxSlot uint64        `toml:"outbox_slot" env:"OUTBOX_SLOT"`
	InboxSlot  uint64        `toml:"inbox_slot" env:"INBOX_SLOT"`

	// SigCacheSize bounds the cache of recovered declaration signers.
	SigCacheSize int `toml:"sig_cache_size" env:"SIG_CACHE_SIZE"`
}

// AuthConfig is the static role membership of the node.
type AuthConfig struct {
	Owners   []types.Address `toml:"owners" env:"OWNERS" envSeparator:","`
	Workers  []types.Address `toml:"workers" env:"WORKERS" envSeparator:","`
	Gateways []types.Address `toml:"gateways" env:"GATEWAYS" envSeparator:","`
}

// DefaultConfig returns a Config with sensible defaults. The anchor genesis
// root and the remote bus address have no default and must be configured.
func DefaultConfig() Config {
	return Config{
		DataDir: "xlbus-data",
		Name:    "xlbus",
		Log:     LogConfig{Level: "info", Format: "text"},
		RPC:     RPCConfig{Host: "127.0.0.1", Port: 8645},
		Metrics: MetricsConfig{Enabled: true},
		Anchor:  AnchorConfig{MaxEntries: 100},
		Bus: BusConfig{
			OutboxSlot:   bus.DefaultOutboxSlot,
			InboxSlot:    bus.DefaultInboxSlot,
			SigCacheSize: crypto.DefaultSigCacheSize,
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := DecodeConfig(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DecodeConfig decodes TOML data into cfg. Unknown keys are rejected.
func DecodeConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// EncodeConfig renders cfg as TOML.
func EncodeConfig(cfg *Config) ([]byte, error) {
	return toml.Marshal(cfg)
}

// ApplyEnv overrides cfg from XLBUS_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.RPC.Port < 0 || c.RPC.Port > 65535 {
		return fmt.Errorf("%w: invalid rpc port: %d", ErrInvalidConfig, c.RPC.Port)
	}
	if err := c.AnchorConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.BusConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Bus.SigCacheSize < 0 {
		return fmt.Errorf("%w: negative signature cache size", ErrInvalidConfig)
	}
	return nil
}

// AnchorConfig returns the anchor section in the anchor package's form.
func (c *Config) AnchorConfig() anchor.Config {
	return anchor.Config{
		RemoteChainID: c.Anchor.RemoteChainID,
		MaxEntries:    c.Anchor.MaxEntries,
		GenesisHeight: c.Anchor.GenesisHeight,
		GenesisRoot:   c.Anchor.GenesisRoot,
	}
}

// BusConfig returns the bus section in the bus package's form.
func (c *Config) BusConfig() bus.Config {
	return bus.Config{
		RemoteBus:  c.Bus.RemoteBus,
		OutboxSlot: c.Bus.OutboxSlot,
		InboxSlot:  c.Bus.InboxSlot,
	}
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// RPCAddr returns the RPC listen address string.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("%s:%d", c.RPC.Host, c.RPC.Port)
}
