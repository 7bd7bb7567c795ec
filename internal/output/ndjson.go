package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/vburojevic/presence/internal/domain"
)

// SchemaVersion is stamped on every NDJSON record.
const SchemaVersion = 1

// SessionRecord is emitted for each completed or listed session
type SessionRecord struct {
	Type          string  `json:"type"` // "session"
	SchemaVersion int     `json:"schemaVersion"`
	ID            int64   `json:"id"`
	StartTime     int64   `json:"startTime"`
	EndTime       *int64  `json:"endTime"`
	Duration      float64 `json:"duration"`
	Stored        *bool   `json:"stored,omitempty"` // only set on live completions
}

// DetectionRecord is emitted for each detection event
type DetectionRecord struct {
	Type          string `json:"type"` // "detection"
	SchemaVersion int    `json:"schemaVersion"`
	ID            int64  `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	TimeString    string `json:"timeString"`
}

// ActiveRecord describes the in-flight session
type ActiveRecord struct {
	Type           string  `json:"type"` // "active"
	SchemaVersion  int     `json:"schemaVersion"`
	Active         bool    `json:"active"`
	StartTime      int64   `json:"startTime,omitempty"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// Summary closes a listing
type Summary struct {
	Type          string  `json:"type"` // "summary"
	SchemaVersion int     `json:"schemaVersion"`
	Count         int     `json:"count"`
	TotalSeconds  float64 `json:"total_seconds,omitempty"`
}

// ErrorOutput is the machine-readable form of a command failure
type ErrorOutput struct {
	Type          string `json:"type"` // "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// Notice covers info, warning and cleared lines
type Notice struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message,omitempty"`
	Target        string `json:"target,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// NDJSONWriter writes one JSON object per line. It is safe for concurrent use.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

// NewNDJSONWriter creates a writer on w
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w), now: time.Now}
}

func (w *NDJSONWriter) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// NewSessionRecord converts a session for output
func NewSessionRecord(s domain.CompletedSession) *SessionRecord {
	return &SessionRecord{
		Type:          "session",
		SchemaVersion: SchemaVersion,
		ID:            s.ID,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Duration:      s.Duration,
	}
}

// WriteSession writes a listed session
func (w *NDJSONWriter) WriteSession(s domain.CompletedSession) error {
	return w.write(NewSessionRecord(s))
}

// WriteCompleted writes a live completion, noting whether history kept it
func (w *NDJSONWriter) WriteCompleted(s domain.CompletedSession, stored bool) error {
	rec := NewSessionRecord(s)
	rec.Stored = &stored
	return w.write(rec)
}

// WriteDetection writes a detection event
func (w *NDJSONWriter) WriteDetection(ev domain.DetectionEvent) error {
	return w.write(&DetectionRecord{
		Type:          "detection",
		SchemaVersion: SchemaVersion,
		ID:            ev.ID,
		Timestamp:     ev.Timestamp,
		TimeString:    ev.TimeString,
	})
}

// WriteActive writes the in-flight session state
func (w *NDJSONWriter) WriteActive(active domain.ActiveSession, ok bool) error {
	rec := &ActiveRecord{Type: "active", SchemaVersion: SchemaVersion, Active: ok}
	if ok {
		rec.StartTime = active.StartTime.UnixMilli()
		rec.ElapsedSeconds = active.Elapsed.Seconds()
	}
	return w.write(rec)
}

// WriteSummary writes a listing footer
func (w *NDJSONWriter) WriteSummary(count int, totalSeconds float64) error {
	return w.write(&Summary{Type: "summary", SchemaVersion: SchemaVersion, Count: count, TotalSeconds: totalSeconds})
}

// WriteError writes an error line
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := &ErrorOutput{Type: "error", SchemaVersion: SchemaVersion, Code: code, Message: message}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.write(out)
}

// WriteInfo writes an informational line
func (w *NDJSONWriter) WriteInfo(message string) error {
	return w.writeNotice("info", message, "")
}

// WriteWarning writes a non-fatal problem
func (w *NDJSONWriter) WriteWarning(message string) error {
	return w.writeNotice("warning", message, "")
}

// WriteCleared reports that target ("sessions" or "detections") was emptied
func (w *NDJSONWriter) WriteCleared(target string) error {
	return w.writeNotice("cleared", "", target)
}

func (w *NDJSONWriter) writeNotice(typ, message, target string) error {
	return w.write(&Notice{
		Type:          typ,
		SchemaVersion: SchemaVersion,
		Message:       message,
		Target:        target,
		Timestamp:     w.now().UTC().Format(time.RFC3339),
	})
}

// WriteRaw encodes any value as one line
func (w *NDJSONWriter) WriteRaw(v interface{}) error {
	return w.write(v)
}
