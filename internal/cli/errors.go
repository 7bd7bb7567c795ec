package cli

import (
	"errors"
	"fmt"

	"github.com/vburojevic/presence/internal/output"
)

// outputNDJSON returns the one NDJSON writer shared by every goroutine of a
// command, so lines never interleave.
func outputNDJSON(globals *Globals) *output.NDJSONWriter {
	globals.ndjsonOnce.Do(func() {
		globals.ndjson = output.NewNDJSONWriter(globals.Stdout)
	})
	return globals.ndjson
}

// outputErrorCommon normalizes error emission across commands, respecting
// ndjson vs text formats so scripts always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	if globals != nil && globals.Format == "ndjson" {
		_ = outputNDJSON(globals).WriteError(code, message, hint...)
	} else if globals != nil {
		fmt.Fprintf(globals.Stderr, "Error [%s]: %s", code, message)
		if len(hint) > 0 && hint[0] != "" {
			fmt.Fprintf(globals.Stderr, " (hint: %s)", hint[0])
		}
		fmt.Fprintln(globals.Stderr)
	}
	return errors.New(message)
}
