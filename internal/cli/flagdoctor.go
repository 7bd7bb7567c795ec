package cli

import "github.com/vburojevic/presence/internal/storage"

// validateFlags centralizes common flag combinations to keep behavior consistent.
func validateFlags(globals *Globals, follow bool, tmux bool) error {
	// quiet + text hides everything but tables; steer to ndjson
	if globals != nil && globals.Format == "text" && globals.Quiet {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--quiet is only supported with ndjson output", "switch to --format ndjson or drop --quiet")
	}
	if follow && globals != nil && globals.Storage != storage.DriverFile && globals.Storage != "" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--follow requires file storage", "use --storage file or drop --follow")
	}
	if tmux && globals != nil && globals.Format == "ndjson" && globals.Quiet {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--tmux with --quiet would produce no output", "drop --quiet")
	}
	return nil
}
