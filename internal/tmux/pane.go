package tmux

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vburojevic/presence/internal/domain"
)

const rule = "═══════════════════════════════════════════════════════════"

// ClearPane clears the pane content and scrollback history
func (m *Manager) ClearPane() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return ErrNoPaneAvailable
	}
	target := m.paneTarget()

	if _, err := m.tmux.Command("send-keys", "-t", target, "-R"); err != nil {
		return fmt.Errorf("failed to reset terminal: %w", err)
	}
	if _, err := m.tmux.Command("clear-history", "-t", target); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if _, err := m.tmux.Command("send-keys", "-t", target, "clear", "Enter"); err != nil {
		return fmt.Errorf("failed to clear screen: %w", err)
	}
	return nil
}

// ClearPaneWithBanner clears the pane and writes a header naming the source.
func (m *Manager) ClearPaneWithBanner(source string, now time.Time) error {
	if err := m.ClearPane(); err != nil {
		return err
	}
	banner := fmt.Sprintf(
		"%s\n  presence - watching %s\n  Session: %s | Started: %s\n%s",
		rule, source, m.config.SessionName, now.Format("2006-01-02 15:04:05"), rule,
	)
	return m.WriteLines(strings.Split(banner, "\n"))
}

// WriteSessionBanner writes a block for a completed session along with the
// running total of stored sessions.
func (m *Manager) WriteSessionBanner(sess domain.CompletedSession, stored bool, total int) error {
	end, _ := sess.End()
	status := fmt.Sprintf("%d stored", total)
	if !stored {
		status = "duplicate, not stored"
	}
	banner := fmt.Sprintf(
		"%s\n  SESSION %s  %s -> %s\n  %s\n%s",
		rule,
		domain.FormatDuration(sess.Duration),
		domain.FormatClock(sess.Start()),
		domain.FormatClock(end),
		status,
		rule,
	)
	return m.WriteLines(strings.Split(banner, "\n"))
}

// WriteDetection writes a one-line detection marker.
func (m *Manager) WriteDetection(ev domain.DetectionEvent) error {
	return m.WriteLine(fmt.Sprintf("● detected at %s", ev.TimeString))
}

// WriteLine writes a single line to the tmux pane using echo
func (m *Manager) WriteLine(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return ErrNoPaneAvailable
	}
	_, err := m.tmux.Command("send-keys", "-t", m.paneTarget(),
		fmt.Sprintf("echo '%s'", escapeTmuxString(line)), "Enter")
	return err
}

// WriteLines writes multiple lines, stopping at the first failure.
func (m *Manager) WriteLines(lines []string) error {
	for _, line := range lines {
		if err := m.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// escapeTmuxString makes s safe inside a single-quoted echo.
func escapeTmuxString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "'", "'\"'\"'")
}

// Writer adapts a Manager to io.Writer, one pane line per output line.
type Writer struct {
	manager *Manager
	buffer  strings.Builder
}

// NewWriter creates a new writer that streams to the tmux pane
func NewWriter(manager *Manager) *Writer {
	return &Writer{manager: manager}
}

// Write buffers p and flushes every complete line to the pane.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.buffer.Write(p)

	content := w.buffer.String()
	lines := strings.Split(content, "\n")
	w.buffer.Reset()
	if !strings.HasSuffix(content, "\n") {
		w.buffer.WriteString(lines[len(lines)-1])
	}
	lines = lines[:len(lines)-1]

	for _, line := range lines {
		if line == "" {
			continue
		}
		if err := w.manager.WriteLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes any remaining buffered content
func (w *Writer) Flush() error {
	if w.buffer.Len() == 0 {
		return nil
	}
	err := w.manager.WriteLine(w.buffer.String())
	w.buffer.Reset()
	return err
}

var _ io.Writer = (*Writer)(nil)
