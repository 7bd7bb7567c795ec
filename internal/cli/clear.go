package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ClearCmd empties stored sessions or detections. It is destructive and
// needs --yes or an interactive confirmation.
type ClearCmd struct {
	Target string `arg:"" enum:"sessions,detections,all" help:"What to clear: sessions, detections, or all"`
	Yes    bool   `short:"y" help:"Skip the confirmation prompt"`

	isTerminal func() bool
}

// Run executes the clear command
func (c *ClearCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, false, false); err != nil {
		return err
	}
	if !c.Yes {
		ok, err := c.confirm(globals)
		if err != nil {
			return err
		}
		if !ok {
			globals.info("Clear cancelled")
			return nil
		}
	}

	ctx := context.Background()
	st, err := openStores(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "STORAGE_UNAVAILABLE", err.Error(), "check --storage and --storage-path")
	}
	defer st.Close()

	var cleared []string
	if c.Target == "sessions" || c.Target == "all" {
		st.history.Clear(ctx)
		cleared = append(cleared, "sessions")
	}
	if c.Target == "detections" || c.Target == "all" {
		st.detections.Clear(ctx)
		cleared = append(cleared, "detections")
	}

	for _, target := range cleared {
		if globals.Format == "ndjson" {
			_ = outputNDJSON(globals).WriteCleared(target)
		} else {
			fmt.Fprintf(globals.Stdout, "Cleared %s\n", target)
		}
	}
	return nil
}

// confirm asks y/N on an interactive stdin and refuses otherwise.
func (c *ClearCmd) confirm(globals *Globals) (bool, error) {
	if !c.interactive(globals) {
		return false, outputErrorCommon(globals, "CONFIRMATION_REQUIRED",
			fmt.Sprintf("clearing %s cannot be undone", c.Target), "re-run with --yes")
	}
	fmt.Fprintf(globals.Stderr, "Clear all %s? This cannot be undone. [y/N] ", c.Target)
	line, err := bufio.NewReader(globals.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (c *ClearCmd) interactive(globals *Globals) bool {
	if c.isTerminal != nil {
		return c.isTerminal()
	}
	f, ok := globals.Stdin.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
