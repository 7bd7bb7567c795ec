package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/vburojevic/presence/internal/domain"
)

// TextWriter renders human-readable output
type TextWriter struct {
	w   io.Writer
	now func() time.Time
}

// NewTextWriter creates a text writer on w
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w, now: time.Now}
}

// WriteCompleted prints a one-line completion notice
func (t *TextWriter) WriteCompleted(s domain.CompletedSession, stored bool) error {
	end := "-"
	if e, ok := s.End(); ok {
		end = domain.FormatClock(e)
	}
	suffix := ""
	if !stored {
		suffix = " (duplicate, not stored)"
	}
	_, err := fmt.Fprintf(t.w, "▼ Session ended  %s  %s → %s%s\n",
		domain.FormatDuration(s.Duration), domain.FormatClock(s.Start()), end, suffix)
	return err
}

// WriteDetection prints a one-line detection notice
func (t *TextWriter) WriteDetection(ev domain.DetectionEvent) error {
	_, err := fmt.Fprintf(t.w, "▲ Face detected  %s\n", ev.TimeString)
	return err
}

// WriteActive prints the in-flight session or "Inactive"
func (t *TextWriter) WriteActive(active domain.ActiveSession, ok bool) error {
	if !ok {
		_, err := fmt.Fprintln(t.w, "Inactive")
		return err
	}
	_, err := fmt.Fprintf(t.w, "Active  %s  (started %s)\n",
		domain.FormatDuration(active.Elapsed.Seconds()), domain.FormatClock(active.StartTime))
	return err
}

// SessionRows renders sessions as table rows: #, duration, start, end, ended.
func SessionRows(sessions []domain.CompletedSession, now time.Time) [][]string {
	return lo.Map(sessions, func(s domain.CompletedSession, i int) []string {
		end, ago := "-", "-"
		if e, ok := s.End(); ok {
			end = domain.FormatClock(e)
			ago = humanize.RelTime(e, now, "ago", "from now")
		}
		return []string{
			strconv.Itoa(i + 1),
			domain.FormatDuration(s.Duration),
			domain.FormatClock(s.Start()),
			end,
			ago,
		}
	})
}

// WriteSessions prints a session table followed by a totals line
func (t *TextWriter) WriteSessions(sessions []domain.CompletedSession) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(t.w, "No sessions recorded")
		return err
	}

	table := tablewriter.NewWriter(t.w)
	table.Header("#", "Duration", "Start", "End", "Ended")
	for _, row := range SessionRows(sessions, t.now()) {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	total := lo.SumBy(sessions, func(s domain.CompletedSession) float64 { return s.Duration })
	_, err := fmt.Fprintf(t.w, "%d sessions, %s total\n", len(sessions), domain.FormatDuration(total))
	return err
}

// WriteDetections prints the detection log as a table
func (t *TextWriter) WriteDetections(events []domain.DetectionEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(t.w, "No detections recorded")
		return err
	}

	now := t.now()
	table := tablewriter.NewWriter(t.w)
	table.Header("#", "Detected", "When")
	for i, ev := range events {
		row := []string{strconv.Itoa(i + 1), ev.TimeString, humanize.RelTime(ev.Time(), now, "ago", "from now")}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(t.w, "%d detections\n", len(events))
	return err
}

// WriteCleared confirms a clear
func (t *TextWriter) WriteCleared(target string) error {
	_, err := fmt.Fprintf(t.w, "Cleared %s\n", target)
	return err
}
