package main

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/core/types"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML configuration file",
		EnvVars: []string{"XLBUS_CONFIG"},
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory (overrides the config file)",
	}
	rpcPortFlag = &cli.IntFlag{
		Name:  "rpc.port",
		Usage: "JSON-RPC port (overrides the config file)",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log level: debug, info, warn, error (overrides the config file)",
	}
	nodeFlag = &cli.StringFlag{
		Name:  "node",
		Usage: "xlbus node RPC endpoint",
		Value: "http://127.0.0.1:8645",
	}
	hashFlag = &cli.StringFlag{
		Name:  "hash",
		Usage: "Message hash",
	}
	boxFlag = &cli.StringFlag{
		Name:  "box",
		Usage: "Message box: outbox or inbox",
		Value: "outbox",
	}

	messageFlags = []cli.Flag{
		&cli.StringFlag{Name: "type", Usage: "Message type hash", Required: true},
		&cli.StringFlag{Name: "intent", Usage: "Intent hash", Required: true},
		&cli.Uint64Flag{Name: "nonce", Usage: "Sender nonce"},
		&cli.StringFlag{Name: "gas-price", Usage: "Gas price (decimal or 0x hex)", Value: "0"},
		&cli.StringFlag{Name: "gas-limit", Usage: "Gas limit (decimal or 0x hex)", Value: "0"},
		&cli.StringFlag{Name: "gas-consumed", Usage: "Gas consumed (decimal or 0x hex)", Value: "0"},
		&cli.StringFlag{Name: "sender", Usage: "Sender address", Required: true},
		&cli.StringFlag{Name: "hashlock", Usage: "Hash lock", Required: true},
	}
)

// messageFromFlags builds a message from messageFlags.
func messageFromFlags(ctx *cli.Context) (*types.Message, error) {
	msg := &types.Message{Nonce: ctx.Uint64("nonce")}
	var err error
	if msg.MessageTypeHash, err = parseHash(ctx.String("type")); err != nil {
		return nil, fmt.Errorf("--type: %w", err)
	}
	if msg.IntentHash, err = parseHash(ctx.String("intent")); err != nil {
		return nil, fmt.Errorf("--intent: %w", err)
	}
	if msg.HashLock, err = parseHash(ctx.String("hashlock")); err != nil {
		return nil, fmt.Errorf("--hashlock: %w", err)
	}
	if err := msg.Sender.UnmarshalText([]byte(ctx.String("sender"))); err != nil {
		return nil, fmt.Errorf("--sender: %w", err)
	}
	for name, dst := range map[string]*uint256.Int{
		"gas-price":    &msg.GasPrice,
		"gas-limit":    &msg.GasLimit,
		"gas-consumed": &msg.GasConsumed,
	} {
		v, err := parseUint256(ctx.String(name))
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		dst.Set(v)
	}
	return msg, nil
}

func parseHash(s string) (types.Hash, error) {
	var h types.Hash
	err := h.UnmarshalText([]byte(s))
	return h, err
}

func parseUint256(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

func parseBox(s string) (bus.Box, error) {
	switch s {
	case "outbox":
		return bus.Outbox, nil
	case "inbox":
		return bus.Inbox, nil
	}
	return 0, fmt.Errorf("unknown box %q", s)
}
