package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/vburojevic/presence/internal/history"
	"github.com/vburojevic/presence/internal/monitor"
	"github.com/vburojevic/presence/internal/tui"
)

// UICmd launches an interactive view of the live tracker
type UICmd struct {
	Input string `short:"i" default:"${config_input}" help:"Read samples from this file instead of stdin ('-' for stdin)"`
	Sort  string `default:"${config_sort}" help:"Initial order: recent or duration"`
}

// Run executes the UI command
func (c *UICmd) Run(globals *Globals) error {
	by, err := history.ParseSortBy(c.Sort)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_SORT", err.Error(), "use --sort recent or --sort duration")
	}

	fromStdin := c.Input == "" || c.Input == "-"
	if fromStdin {
		if f, ok := globals.Stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return outputErrorCommon(globals, "NO_INPUT", "ui reads samples from stdin, which is a terminal",
				"pipe samples in (detector | presence ui) or pass --input")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	in, label, closeIn, err := openInput(globals, c.Input)
	if err != nil {
		return outputErrorCommon(globals, "INPUT_NOT_FOUND", err.Error())
	}
	defer closeIn()

	st, err := openStores(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "STORAGE_UNAVAILABLE", err.Error(), "check --storage and --storage-path")
	}
	defer st.Close()

	logger := globals.Logger()
	mon := monitor.New(st.history, st.detections, monitor.Options{
		TickInterval: globals.config().TickInterval(),
		Logger:       logger,
	})
	// The screen belongs to the TUI, so bad samples only reach the debug log.
	dec := startDecoder(ctx, in, func(line string, err error) {
		logger.Debug("skipping sample", zap.String("line", line), zap.Error(err))
	})
	go func() {
		_ = mon.Run(ctx, dec.samples)
	}()

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if fromStdin {
		// Keys come from the controlling terminal; stdin carries samples.
		opts = append(opts, tea.WithInputTTY())
	}
	p := tea.NewProgram(tui.New(mon, label, by), opts...)

	_, err = p.Run()
	interrupted := ctx.Err() != nil
	cancel()
	<-mon.Done()
	if err != nil && !interrupted {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
