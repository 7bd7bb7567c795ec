package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/vburojevic/presence/internal/domain"
	"github.com/vburojevic/presence/internal/filter"
	"github.com/vburojevic/presence/internal/history"
	"github.com/vburojevic/presence/internal/output"
	"github.com/vburojevic/presence/internal/storage"
)

// SessionsCmd lists recorded sessions
type SessionsCmd struct {
	Sort   string   `default:"${config_sort}" help:"Order: recent (default) or duration"`
	Where  []string `short:"w" help:"Filter like duration>=60, end>2025-06-01T00:00:00Z (repeatable, ANDed)"`
	Since  string   `help:"Only sessions ending after this (e.g. 1h, yesterday, 2025-06-01)"`
	Limit  int      `short:"n" default:"${config_limit}" help:"Show at most this many sessions (0 = all)"`
	Follow bool     `help:"Re-print whenever the stored history changes (file storage only)"`
}

// Run executes the sessions command
func (c *SessionsCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, c.Follow, false); err != nil {
		return err
	}

	by, err := history.ParseSortBy(c.Sort)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_SORT", err.Error(), "use --sort recent or --sort duration")
	}
	where, err := filter.NewWhereFilter(c.Where)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_WHERE", err.Error(), "fields: duration, start, end, id; operators: = != > >= < <=")
	}
	if c.Since != "" {
		since, err := filter.ParseSince(c.Since, timeNow())
		if err != nil {
			return outputErrorCommon(globals, "INVALID_SINCE", err.Error(), "try 1h, yesterday, or 2025-06-01")
		}
		where = where.WithSince(since)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "STORAGE_UNAVAILABLE", err.Error(), "check --storage and --storage-path")
	}
	defer st.Close()

	render := func() error {
		return c.render(globals, c.selectSessions(st.history, by, where))
	}
	if err := render(); err != nil {
		return err
	}
	if !c.Follow {
		return nil
	}
	return c.follow(ctx, globals, st, render)
}

// selectSessions applies sort, filters and limit, in that order.
func (c *SessionsCmd) selectSessions(store *history.Store, by history.SortBy, where *filter.WhereFilter) []domain.CompletedSession {
	sessions := where.Apply(store.Sorted(by))
	if c.Limit > 0 && len(sessions) > c.Limit {
		sessions = sessions[:c.Limit]
	}
	return sessions
}

func (c *SessionsCmd) render(globals *Globals, sessions []domain.CompletedSession) error {
	if globals.Format != "ndjson" {
		return output.NewTextWriter(globals.Stdout).WriteSessions(sessions)
	}
	w := outputNDJSON(globals)
	var total float64
	for _, s := range sessions {
		if err := w.WriteSession(s); err != nil {
			return err
		}
		total += s.Duration
	}
	if globals.Quiet {
		return nil
	}
	return w.WriteSummary(len(sessions), total)
}

// follow reloads and re-renders whenever the sessions blob is rewritten.
func (c *SessionsCmd) follow(ctx context.Context, globals *Globals, st *stores, render func() error) error {
	dir, err := storageDir(globals)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error())
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return outputErrorCommon(globals, "FOLLOW_FAILED", fmt.Sprintf("failed to create file watcher: %v", err))
	}
	defer watcher.Close()

	// Writes land via rename, so watch the directory rather than the file.
	if err := watcher.Add(dir); err != nil {
		return outputErrorCommon(globals, "FOLLOW_FAILED", fmt.Sprintf("failed to watch %s: %v", dir, err))
	}
	target := storage.SessionsKey + ".json"
	globals.info("Following %s", filepath.Join(dir, target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !sessionsChanged(event, target) {
				continue
			}
			globals.Debug("history changed: %s %s", event.Op, event.Name)
			st.history.Load(ctx)
			if err := render(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			globals.warn("watcher error: %v", err)
		}
	}
}

func sessionsChanged(event fsnotify.Event, target string) bool {
	if filepath.Base(event.Name) != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}
