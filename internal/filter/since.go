package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ParseSince resolves expressions like "yesterday", "2 hours ago", "1h" or
// "2025-06-01" relative to now.
func ParseSince(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, nil
	}

	// Plain Go durations mean "this long ago"
	if d, err := time.ParseDuration(expr); err == nil {
		return now.Add(-d), nil
	}

	// Try standard formats
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, expr, now.Location()); err == nil {
			return t, nil
		}
	}

	// Fall back to natural language
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(expr, now)
	if err == nil && result != nil {
		return result.Time, nil
	}

	return time.Time{}, fmt.Errorf("cannot parse time %q", expr)
}
