// Command xlbus runs a cross-ledger message bus node and offers helpers for
// computing message identifiers and fetching remote status proofs.
//
// Usage:
//
//	xlbus run --config xlbus.toml
//	xlbus dumpconfig --config xlbus.toml
//	xlbus hash --type <hash> --intent <hash> --nonce 1 --sender <addr> --hashlock <hash>
//	xlbus hashlock [--secret <hex>]
//	xlbus storage-key --slot 7 --hash <message hash>
//	xlbus prove --remote <url> --remote-bus <addr> --box outbox --hash <message hash> [--height N]
//	xlbus status --node <url> [--hash <message hash>]
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "xlbus",
		Usage:   "cross-ledger message bus node",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Commands: []*cli.Command{
			runCommand,
			dumpConfigCommand,
			hashCommand,
			hashLockCommand,
			storageKeyCommand,
			proveCommand,
			statusCommand,
		},
	}
}
