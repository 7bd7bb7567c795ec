package cli

import (
	"fmt"
	"runtime"

	"github.com/vburojevic/presence/internal/output"
)

// VersionCmd shows version information and how to upgrade
type VersionCmd struct{}

// VersionOutput is the NDJSON form of the version command
type VersionOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	GoVersion     string `json:"go_version"`
	GoInstall     string `json:"go_install"`
}

const goInstallCmd = "go install github.com/vburojevic/presence/cmd/presence@latest"

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		return outputNDJSON(globals).WriteRaw(&VersionOutput{
			Type:          "version",
			SchemaVersion: output.SchemaVersion,
			Version:       Version,
			Commit:        Commit,
			GoVersion:     runtime.Version(),
			GoInstall:     goInstallCmd,
		})
	}

	fmt.Fprintf(globals.Stdout, "presence %s (%s)\n", Version, Commit)
	fmt.Fprintf(globals.Stdout, "Built with %s\n", runtime.Version())
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "To upgrade via Go:")
	fmt.Fprintf(globals.Stdout, "  %s\n", goInstallCmd)
	return nil
}
