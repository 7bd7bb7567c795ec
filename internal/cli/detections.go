package cli

import (
	"context"

	"github.com/vburojevic/presence/internal/output"
)

// DetectionsCmd lists the detection log, newest first
type DetectionsCmd struct {
	Limit int `short:"n" help:"Show at most this many events (0 = all)"`
}

// Run executes the detections command
func (c *DetectionsCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, false, false); err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStores(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "STORAGE_UNAVAILABLE", err.Error(), "check --storage and --storage-path")
	}
	defer st.Close()

	events := st.detections.Events()
	if c.Limit > 0 && len(events) > c.Limit {
		events = events[:c.Limit]
	}

	if globals.Format != "ndjson" {
		return output.NewTextWriter(globals.Stdout).WriteDetections(events)
	}
	w := outputNDJSON(globals)
	for _, ev := range events {
		if err := w.WriteDetection(ev); err != nil {
			return err
		}
	}
	if globals.Quiet {
		return nil
	}
	return w.WriteSummary(len(events), 0)
}
