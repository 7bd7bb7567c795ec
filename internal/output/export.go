package output

import (
	"encoding/json"
	"fmt"
	"io"

	"howett.net/plist"

	"github.com/vburojevic/presence/internal/domain"
)

// Snapshot is a full export of both persisted collections
type Snapshot struct {
	SchemaVersion int                       `json:"schemaVersion" plist:"schemaVersion"`
	ExportedAt    int64                     `json:"exportedAt" plist:"exportedAt"`
	Sessions      []domain.CompletedSession `json:"sessions" plist:"sessions"`
	Detections    []domain.DetectionEvent   `json:"detections" plist:"detections"`
}

// Export formats
const (
	ExportJSON  = "json"
	ExportPlist = "plist"
)

// WriteSnapshot encodes snap in the requested format
func WriteSnapshot(w io.Writer, format string, snap *Snapshot) error {
	if snap.Sessions == nil {
		snap.Sessions = []domain.CompletedSession{}
	}
	if snap.Detections == nil {
		snap.Detections = []domain.DetectionEvent{}
	}

	var (
		b   []byte
		err error
	)
	switch format {
	case ExportJSON, "":
		b, err = json.MarshalIndent(snap, "", "  ")
	case ExportPlist:
		b, err = plist.MarshalIndent(snap, plist.XMLFormat, "  ")
	default:
		return fmt.Errorf("unsupported export format %q (use json or plist)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
