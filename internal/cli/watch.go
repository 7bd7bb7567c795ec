package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/presence/internal/domain"
	"github.com/vburojevic/presence/internal/monitor"
	"github.com/vburojevic/presence/internal/output"
	presence "github.com/vburojevic/presence/internal/signal"
	"github.com/vburojevic/presence/internal/tmux"
)

// WatchCmd tracks sessions from a stream of presence samples
type WatchCmd struct {
	Input     string        `short:"i" default:"${config_input}" help:"Read samples from this file instead of stdin ('-' for stdin)"`
	Tmux      bool          `help:"Mirror sessions and detections into a tmux session"`
	Session   string        `help:"Custom tmux session name (default: presence)"`
	Heartbeat time.Duration `help:"Emit the active session state at this interval (e.g. 10s)"`
}

// eventWriter is implemented by both output writers.
type eventWriter interface {
	WriteCompleted(s domain.CompletedSession, stored bool) error
	WriteDetection(ev domain.DetectionEvent) error
	WriteActive(active domain.ActiveSession, ok bool) error
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, false, c.Tmux); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, label, closeIn, err := openInput(globals, c.Input)
	if err != nil {
		return outputErrorCommon(globals, "INPUT_NOT_FOUND", err.Error(), "pass an existing file to --input or pipe samples on stdin")
	}
	defer closeIn()

	st, err := openStores(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "STORAGE_UNAVAILABLE", err.Error(), "check --storage and --storage-path")
	}
	defer st.Close()

	var writer eventWriter
	if globals.Format == "ndjson" {
		writer = outputNDJSON(globals)
	} else {
		writer = output.NewTextWriter(globals.Stdout)
	}

	var tmuxMgr *tmux.Manager
	if c.Tmux {
		tmuxMgr, err = tmux.NewManager(tmux.Config{SessionName: c.Session})
		if err != nil {
			globals.warn("tmux unavailable, writing to stdout: %v", err)
		} else {
			defer tmuxMgr.Close()
			_ = tmuxMgr.ClearPaneWithBanner(label, timeNow())
			if globals.Format == "ndjson" {
				_ = outputNDJSON(globals).WriteRaw(map[string]interface{}{
					"type":          "tmux",
					"schemaVersion": output.SchemaVersion,
					"session":       tmuxMgr.SessionName(),
					"attach":        tmuxMgr.AttachCommand(),
				})
			} else {
				fmt.Fprintf(globals.Stdout, "Tmux session: %s\n", tmuxMgr.SessionName())
				fmt.Fprintf(globals.Stdout, "Attach with: %s\n", tmuxMgr.AttachCommand())
			}
		}
	}

	logger := globals.Logger()
	opts := monitor.Options{
		TickInterval: globals.config().TickInterval(),
		Logger:       logger,
		OnSession: func(s domain.CompletedSession, stored bool) {
			if tmuxMgr != nil {
				if err := tmuxMgr.WriteSessionBanner(s, stored, st.history.Len()); err != nil {
					logger.Warn("tmux write failed", zap.Error(err))
				}
				return
			}
			_ = writer.WriteCompleted(s, stored)
		},
		OnDetection: func(ev domain.DetectionEvent) {
			if tmuxMgr != nil {
				if err := tmuxMgr.WriteDetection(ev); err != nil {
					logger.Warn("tmux write failed", zap.Error(err))
				}
				return
			}
			_ = writer.WriteDetection(ev)
		},
	}
	mon := monitor.New(st.history, st.detections, opts)

	globals.info("Watching presence samples from %s", label)
	dec := startDecoder(ctx, in, func(line string, err error) {
		globals.warn("skipping sample: %v", err)
	})

	if c.Heartbeat > 0 && tmuxMgr == nil {
		go c.heartbeat(ctx, mon, writer)
	}

	if err := mon.Run(ctx, dec.samples); err != nil {
		return outputErrorCommon(globals, "MONITOR_FAILED", err.Error())
	}
	if err := dec.err(); err != nil {
		return outputErrorCommon(globals, "INPUT_FAILED", err.Error())
	}

	if tmuxMgr != nil {
		w := tmux.NewWriter(tmuxMgr)
		fmt.Fprintf(w, "%d sessions, %s total", st.history.Len(), domain.FormatDuration(st.history.TotalSeconds()))
		_ = w.Flush()
	}
	if !globals.Quiet && globals.Format == "ndjson" {
		return outputNDJSON(globals).WriteSummary(st.history.Len(), st.history.TotalSeconds())
	}
	return nil
}

// heartbeat reports the in-flight session periodically. Writes run on the
// monitor loop so they never interleave with event output.
func (c *WatchCmd) heartbeat(ctx context.Context, mon *monitor.Monitor, writer eventWriter) {
	ticker := time.NewTicker(c.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-mon.Done():
			return
		case <-ticker.C:
			err := mon.Do(ctx, func() {
				active, ok := mon.Active()
				_ = writer.WriteActive(active, ok)
			})
			if err != nil {
				return
			}
		}
	}
}

// decoding is a running sample decoder.
type decoding struct {
	samples chan presence.Sample
	done    chan error
}

// err returns the decoder's error if it has finished. A decoder still
// blocked on an interactive stdin is left behind.
func (d *decoding) err() error {
	select {
	case err := <-d.done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	default:
		return nil
	}
}

// startDecoder streams samples from r on a new goroutine. Malformed lines go
// to onError and are skipped.
func startDecoder(ctx context.Context, r io.Reader, onError func(line string, err error)) *decoding {
	d := &decoding{samples: make(chan presence.Sample, 64), done: make(chan error, 1)}
	dec := presence.NewDecoder(r, onError)
	go func() {
		d.done <- dec.Stream(ctx, d.samples)
	}()
	return d
}

// openInput resolves the sample source. An empty name or "-" means stdin.
func openInput(globals *Globals, name string) (io.Reader, string, func(), error) {
	if name == "" || name == "-" {
		return globals.Stdin, "stdin", func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, "", nil, err
	}
	return f, name, func() { f.Close() }, nil
}
