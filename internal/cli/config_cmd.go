package cli

import (
	"fmt"

	"github.com/vburojevic/presence/internal/config"
	"github.com/vburojevic/presence/internal/output"
)

// ConfigCmd groups the configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which config file is used"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample config file"`
}

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.config()
	if globals.Format == "ndjson" {
		return outputNDJSON(globals).WriteRaw(map[string]interface{}{
			"type":          "config",
			"schemaVersion": output.SchemaVersion,
			"format":        cfg.Format,
			"quiet":         cfg.Quiet,
			"verbose":       cfg.Verbose,
			"storage": map[string]interface{}{
				"driver":         cfg.Storage.Driver,
				"path":           cfg.Storage.Path,
				"retries":        cfg.Storage.Retries,
				"retry_interval": cfg.Storage.RetryInterval,
			},
			"tracker": map[string]interface{}{
				"tick_interval": cfg.Tracker.TickInterval,
				"max_sessions":  cfg.Tracker.MaxSessions,
			},
			"server": map[string]interface{}{
				"addr":            cfg.Server.Addr,
				"allowed_origins": cfg.Server.AllowedOrigins,
			},
			"defaults": map[string]interface{}{
				"sort":  cfg.Defaults.Sort,
				"limit": cfg.Defaults.Limit,
				"input": cfg.Defaults.Input,
			},
		})
	}

	w := globals.Stdout
	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintf(w, "  format:  %s\n", cfg.Format)
	fmt.Fprintf(w, "  quiet:   %v\n", cfg.Quiet)
	fmt.Fprintf(w, "  verbose: %v\n", cfg.Verbose)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Storage:")
	fmt.Fprintf(w, "  driver:         %s\n", cfg.Storage.Driver)
	fmt.Fprintf(w, "  path:           %s\n", cfg.Storage.Path)
	fmt.Fprintf(w, "  retries:        %d\n", cfg.Storage.Retries)
	fmt.Fprintf(w, "  retry_interval: %s\n", cfg.Storage.RetryInterval)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tracker:")
	fmt.Fprintf(w, "  tick_interval: %s\n", cfg.Tracker.TickInterval)
	fmt.Fprintf(w, "  max_sessions:  %d\n", cfg.Tracker.MaxSessions)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintf(w, "  addr:            %s\n", cfg.Server.Addr)
	fmt.Fprintf(w, "  allowed_origins: %v\n", cfg.Server.AllowedOrigins)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Defaults:")
	fmt.Fprintf(w, "  sort:  %s\n", cfg.Defaults.Sort)
	fmt.Fprintf(w, "  limit: %d\n", cfg.Defaults.Limit)
	fmt.Fprintf(w, "  input: %s\n", cfg.Defaults.Input)
	return nil
}

// ConfigPathCmd reports the config file in use
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return outputNDJSON(globals).WriteRaw(map[string]interface{}{
			"type":          "config_path",
			"schemaVersion": output.SchemaVersion,
			"path":          path,
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found; using defaults")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a sample config file
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	_, err := fmt.Fprint(globals.Stdout, config.Sample)
	return err
}
