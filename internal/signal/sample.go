// Package signal decodes the external per-frame presence signal.
package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Sample is one presence observation supplied by a detector.
type Sample struct {
	Present bool
	Faces   int
	At      time.Time // zero means "now" to the consumer
}

// wireSample is the NDJSON form: {"present":true} or {"faces":2,"ts":1700000000000}.
type wireSample struct {
	Present *bool  `json:"present,omitempty"`
	Faces   *int   `json:"faces,omitempty"`
	TS      *int64 `json:"ts,omitempty"`
}

// ParseSample decodes a single JSON sample. A sample is present when
// "present" is true, or when it is absent and "faces" is positive.
func ParseSample(b []byte) (Sample, error) {
	var w wireSample
	if err := json.Unmarshal(b, &w); err != nil {
		return Sample{}, fmt.Errorf("invalid sample: %w", err)
	}
	if w.Present == nil && w.Faces == nil {
		return Sample{}, fmt.Errorf("invalid sample: need \"present\" or \"faces\"")
	}
	var s Sample
	if w.Faces != nil {
		s.Faces = *w.Faces
		s.Present = s.Faces > 0
	}
	if w.Present != nil {
		s.Present = *w.Present
	}
	if w.TS != nil {
		if *w.TS <= 0 {
			return Sample{}, fmt.Errorf("invalid sample: \"ts\" must be positive epoch milliseconds, got %d", *w.TS)
		}
		s.At = time.UnixMilli(*w.TS)
	}
	return s, nil
}

// Decoder reads NDJSON samples from a stream.
type Decoder struct {
	r       io.Reader
	onError func(line string, err error)
}

// NewDecoder creates a decoder. onError, if non-nil, receives lines that
// failed to parse; they are otherwise skipped.
func NewDecoder(r io.Reader, onError func(line string, err error)) *Decoder {
	return &Decoder{r: r, onError: onError}
}

// Stream sends decoded samples to out until the reader is exhausted or ctx is
// done. It closes out before returning.
func (d *Decoder) Stream(ctx context.Context, out chan<- Sample) error {
	defer close(out)

	scanner := bufio.NewScanner(d.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := ParseSample([]byte(line))
		if err != nil {
			if d.onError != nil {
				d.onError(line, err)
			}
			continue
		}
		select {
		case out <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
