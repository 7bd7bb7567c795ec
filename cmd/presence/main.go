package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/vburojevic/presence/internal/cli"
	"github.com/vburojevic/presence/internal/config"
)

const quickStart = `presence - track how long someone is in front of the camera

Quick start:
  detector | presence watch             Record sessions from an NDJSON sample stream
  presence sessions --sort duration     Longest sessions first
  presence serve                        HTTP API + WebSocket ingest on 127.0.0.1:8787

Samples are one JSON object per line: {"present":true} or {"faces":2,"ts":1700000000000}

For help:
  presence --help                       All commands and flags
  presence schema                       JSON Schema for every NDJSON output type
`

func main() {
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config supplies flag defaults; explicit flags override them
	ctx := kong.Parse(&c,
		kong.Name("presence"),
		kong.Description("Track presence sessions and detection events from a per-frame presence signal"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		cli.KongVars(cfg),
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
