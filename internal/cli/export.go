package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vburojevic/presence/internal/output"
)

// ExportCmd writes both persisted collections as one document
type ExportCmd struct {
	As     string `default:"json" enum:"json,plist" help:"Document format (json or plist)"`
	Output string `short:"o" help:"Write to this file instead of stdout"`
}

// Run executes the export command
func (c *ExportCmd) Run(globals *Globals) error {
	ctx := context.Background()
	st, err := openStores(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "STORAGE_UNAVAILABLE", err.Error(), "check --storage and --storage-path")
	}
	defer st.Close()

	snap := &output.Snapshot{
		SchemaVersion: output.SchemaVersion,
		ExportedAt:    timeNow().UnixMilli(),
		Sessions:      st.history.Sessions(),
		Detections:    st.detections.Events(),
	}

	var w io.Writer = globals.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return outputErrorCommon(globals, "EXPORT_FAILED", fmt.Sprintf("cannot create %s: %v", c.Output, err))
		}
		defer f.Close()
		w = f
	}

	if err := output.WriteSnapshot(w, c.As, snap); err != nil {
		return outputErrorCommon(globals, "EXPORT_FAILED", err.Error())
	}
	if c.Output != "" {
		globals.info("Exported %d sessions and %d detections to %s", len(snap.Sessions), len(snap.Detections), c.Output)
	}
	return nil
}
