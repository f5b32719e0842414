package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/eth2030/xlbus/api"
	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/types"
	"github.com/eth2030/xlbus/crypto"
	"github.com/eth2030/xlbus/node"
	"github.com/eth2030/xlbus/proofsource"
	"github.com/eth2030/xlbus/trie"
)

const requestTimeout = 30 * time.Second

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run an xlbus node",
	Flags: []cli.Flag{configFlag, dataDirFlag, rpcPortFlag, verbosityFlag},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		n, err := node.New(cfg)
		if err != nil {
			return fmt.Errorf("create node: %w", err)
		}
		if err := n.Start(); err != nil {
			n.Stop()
			return fmt.Errorf("start node: %w", err)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		go func() {
			<-sigCh
			n.Stop()
		}()
		n.Wait()
		return nil
	},
}

var dumpConfigCommand = &cli.Command{
	Name:  "dumpconfig",
	Usage: "Print the effective configuration as TOML",
	Flags: []cli.Flag{configFlag, dataDirFlag, rpcPortFlag, verbosityFlag},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		out, err := node.EncodeConfig(cfg)
		if err != nil {
			return err
		}
		_, err = ctx.App.Writer.Write(out)
		return err
	},
}

// loadConfig reads --config and applies the command-line overrides on top.
func loadConfig(ctx *cli.Context) (*node.Config, error) {
	cfg, err := node.LoadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(rpcPortFlag.Name) {
		cfg.RPC.Port = ctx.Int(rpcPortFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Log.Level = ctx.String(verbosityFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var hashCommand = &cli.Command{
	Name:  "hash",
	Usage: "Compute the hash identifying a message",
	Flags: messageFlags,
	Action: func(ctx *cli.Context) error {
		msg, err := messageFromFlags(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, bus.MessageHash(msg).Hex())
		return nil
	},
}

var hashLockCommand = &cli.Command{
	Name:  "hashlock",
	Usage: "Compute the hash lock of a secret, or generate a new secret",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "secret", Usage: "Hex-encoded secret; a random one is drawn if empty"},
	},
	Action: func(ctx *cli.Context) error {
		var (
			secret []byte
			lock   types.Hash
			err    error
		)
		if s := ctx.String("secret"); s != "" {
			if secret, err = hex.DecodeString(strings.TrimPrefix(s, "0x")); err != nil {
				return fmt.Errorf("--secret: %w", err)
			}
			lock = crypto.HashLock(secret)
		} else if secret, lock, err = crypto.NewSecret(); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "secret:   0x%x\nhashlock: %s\n", secret, lock.Hex())
		return nil
	},
}

var storageKeyCommand = &cli.Command{
	Name:  "storage-key",
	Usage: "Derive the storage slot and trie key of a message status",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "slot", Usage: "Storage index of the status mapping", Value: bus.DefaultOutboxSlot},
		hashFlag,
	},
	Action: func(ctx *cli.Context) error {
		hash, err := parseHash(ctx.String(hashFlag.Name))
		if err != nil {
			return fmt.Errorf("--hash: %w", err)
		}
		slot := trie.StorageSlot(ctx.Uint64("slot"), hash[:])
		fmt.Fprintf(ctx.App.Writer, "slot: %s\nkey:  0x%x\n", slot.Hex(), trie.StorageKey(slot))
		return nil
	},
}

var proveCommand = &cli.Command{
	Name:  "prove",
	Usage: "Fetch and check a status proof from a remote ledger node",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "remote", Usage: "Remote ledger JSON-RPC endpoint", Required: true},
		&cli.StringFlag{Name: "remote-bus", Usage: "Address of the bus on the remote ledger", Required: true},
		&cli.Uint64Flag{Name: "outbox-slot", Usage: "Storage index of the remote outbox", Value: bus.DefaultOutboxSlot},
		&cli.Uint64Flag{Name: "inbox-slot", Usage: "Storage index of the remote inbox", Value: bus.DefaultInboxSlot},
		&cli.Uint64Flag{Name: "height", Usage: "Remote block height (default: latest)"},
		boxFlag,
		hashFlag,
	},
	Action: func(ctx *cli.Context) error {
		box, err := parseBox(ctx.String(boxFlag.Name))
		if err != nil {
			return err
		}
		hash, err := parseHash(ctx.String(hashFlag.Name))
		if err != nil {
			return fmt.Errorf("--hash: %w", err)
		}
		cfg := bus.Config{OutboxSlot: ctx.Uint64("outbox-slot"), InboxSlot: ctx.Uint64("inbox-slot")}
		if err := cfg.RemoteBus.UnmarshalText([]byte(ctx.String("remote-bus"))); err != nil {
			return fmt.Errorf("--remote-bus: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		rctx, cancel := context.WithTimeout(ctx.Context, requestTimeout)
		defer cancel()
		src, err := proofsource.Dial(rctx, ctx.String("remote"), cfg)
		if err != nil {
			return err
		}
		defer src.Close()

		height := ctx.Uint64("height")
		if !ctx.IsSet("height") {
			if height, err = src.LatestHeight(rctx); err != nil {
				return err
			}
		}
		proof, status, err := src.StatusProof(rctx, box, hash, height)
		if err != nil {
			return err
		}
		return writeJSON(ctx, struct {
			Status types.MessageStatus `json:"status"`
			Proof  *api.RPCProof       `json:"proof"`
		}{status, api.NewRPCProof(proof)})
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "Show the anchor state of a node, or the status of one message",
	Flags: []cli.Flag{nodeFlag, hashFlag},
	Action: func(ctx *cli.Context) error {
		rctx, cancel := context.WithTimeout(ctx.Context, requestTimeout)
		defer cancel()
		client, err := api.Dial(rctx, ctx.String(nodeFlag.Name))
		if err != nil {
			return err
		}
		defer client.Close()

		if !ctx.IsSet(hashFlag.Name) {
			info, err := client.AnchorInfo(rctx)
			if err != nil {
				return err
			}
			return writeJSON(ctx, info)
		}
		hash, err := parseHash(ctx.String(hashFlag.Name))
		if err != nil {
			return fmt.Errorf("--hash: %w", err)
		}
		out, err := client.Status(rctx, bus.Outbox, hash)
		if err != nil {
			return err
		}
		in, err := client.Status(rctx, bus.Inbox, hash)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "hash:   %s\noutbox: %s\ninbox:  %s\n", hash.Hex(), out, in)
		return nil
	},
}

func writeJSON(ctx *cli.Context, v any) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
