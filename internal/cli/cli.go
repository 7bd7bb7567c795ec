// Package cli implements the presence command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/vburojevic/presence/internal/config"
	"github.com/vburojevic/presence/internal/output"
)

// Build information, set via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the root command
type CLI struct {
	Format      string `short:"f" default:"${config_format}" enum:"ndjson,text" help:"Output format (ndjson or text)"`
	Quiet       bool   `short:"q" help:"Suppress informational lines"`
	Verbose     bool   `short:"v" help:"Debug logging to stderr"`
	Storage     string `default:"${config_storage}" enum:"file,sqlite,memory" help:"Storage backend (file, sqlite, memory)"`
	StoragePath string `default:"${config_storage_path}" help:"Storage directory (file) or database path (sqlite)"`

	Watch      WatchCmd      `cmd:"" help:"Track presence sessions from an NDJSON sample stream"`
	Sessions   SessionsCmd   `cmd:"" help:"List recorded sessions"`
	Detections DetectionsCmd `cmd:"" help:"List recent detection events"`
	Clear      ClearCmd      `cmd:"" help:"Clear recorded sessions or detections"`
	Export     ExportCmd     `cmd:"" help:"Export sessions and detections as JSON or plist"`
	Serve      ServeCmd      `cmd:"" help:"Serve the tracker over HTTP and accept samples over WebSocket"`
	UI         UICmd         `cmd:"" name:"ui" help:"Interactive terminal view of the live tracker"`
	Schema     SchemaCmd     `cmd:"" help:"Print JSON Schema for NDJSON output types"`
	Config     ConfigCmd     `cmd:"" help:"Show or generate configuration"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

// KongVars maps configuration onto flag defaults. Explicit flags still win.
func KongVars(cfg *config.Config) kong.Vars {
	if cfg == nil {
		cfg = config.Default()
	}
	return kong.Vars{
		"config_format":       cfg.Format,
		"config_storage":      cfg.Storage.Driver,
		"config_storage_path": cfg.Storage.Path,
		"config_sort":         cfg.Defaults.Sort,
		"config_limit":        strconv.Itoa(cfg.Defaults.Limit),
		"config_input":        cfg.Defaults.Input,
		"config_addr":         cfg.Server.Addr,
	}
}

// Globals carries parsed global flags and I/O to every command
type Globals struct {
	Format      string
	Quiet       bool
	Verbose     bool
	Storage     string
	StoragePath string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config

	logger     *zap.Logger
	ndjson     *output.NDJSONWriter
	ndjsonOnce sync.Once
}

// NewGlobalsWithConfig builds Globals from parsed flags, falling back to cfg
// for switches that were left off.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Globals{
		Format:      c.Format,
		Quiet:       c.Quiet || cfg.Quiet,
		Verbose:     c.Verbose || cfg.Verbose,
		Storage:     c.Storage,
		StoragePath: c.StoragePath,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Config:      cfg,
	}
}

// Logger returns the command logger, a no-op unless verbose.
func (g *Globals) Logger() *zap.Logger {
	if g.logger == nil {
		g.logger = newLogger(g)
	}
	return g.logger
}

// Debug prints a debug line when verbose
func (g *Globals) Debug(format string, args ...interface{}) {
	if !g.Verbose {
		return
	}
	g.Logger().Sugar().Debugf(format, args...)
}

func (g *Globals) config() *config.Config {
	if g.Config == nil {
		g.Config = config.Default()
	}
	return g.Config
}

// info prints an informational line unless quiet.
func (g *Globals) info(format string, args ...interface{}) {
	if g.Quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if g.Format == "ndjson" {
		_ = outputNDJSON(g).WriteInfo(msg)
		return
	}
	fmt.Fprintln(g.Stderr, msg)
}

// warn reports a non-fatal problem
func (g *Globals) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if g.Format == "ndjson" {
		_ = outputNDJSON(g).WriteWarning(msg)
		return
	}
	fmt.Fprintf(g.Stderr, "Warning: %s\n", msg)
}

// timeNow is swapped in tests.
var timeNow = time.Now
