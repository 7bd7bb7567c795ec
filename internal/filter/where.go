package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vburojevic/presence/internal/domain"
)

// WhereClause represents a parsed --where condition
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	number   float64
}

var fields = map[string]bool{"duration": true, "start": true, "end": true, "id": true}

// ParseWhereClause parses a where clause like "duration>=60" or "start>2025-01-01T00:00:00Z".
// Supported operators: =, !=, >, <, >=, <=
// duration is in seconds; start, end and id accept epoch milliseconds or RFC3339.
func ParseWhereClause(clause string) (*WhereClause, error) {
	// Try operators in order of length (longest first to avoid partial matches)
	operators := []string{">=", "<=", "!=", ">", "<", "="}

	for _, op := range operators {
		idx := strings.Index(clause, op)
		if idx <= 0 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(clause[:idx]))
		value := strings.TrimSpace(clause[idx+len(op):])

		if field == "" || value == "" {
			return nil, fmt.Errorf("invalid where clause: %s", clause)
		}
		if !fields[field] {
			return nil, fmt.Errorf("unknown field %q in where clause (use duration, start, end, id)", field)
		}

		n, err := parseValue(field, value)
		if err != nil {
			return nil, fmt.Errorf("invalid value in where clause '%s': %w", clause, err)
		}

		return &WhereClause{
			Field:    field,
			Operator: op,
			Value:    value,
			number:   n,
		}, nil
	}

	return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, >, <, >=, <=)", clause)
}

func parseValue(field, value string) (float64, error) {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return n, nil
	}
	if field == "duration" {
		// Accept Go durations too: 90s, 5m
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, err
		}
		return d.Seconds(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, err
	}
	return float64(t.UnixMilli()), nil
}

// Match checks if a session matches this where clause
func (wc *WhereClause) Match(s domain.CompletedSession) bool {
	v, ok := wc.fieldValue(s)
	if !ok {
		return wc.Operator == "!="
	}

	switch wc.Operator {
	case "=":
		return v == wc.number
	case "!=":
		return v != wc.number
	case ">":
		return v > wc.number
	case "<":
		return v < wc.number
	case ">=":
		return v >= wc.number
	case "<=":
		return v <= wc.number
	}

	return false
}

// fieldValue extracts the compared value; false when the session has no value
// for the field.
func (wc *WhereClause) fieldValue(s domain.CompletedSession) (float64, bool) {
	switch wc.Field {
	case "duration":
		return s.Duration, true
	case "start":
		return float64(s.StartTime), true
	case "end":
		if s.EndTime == nil {
			return 0, false
		}
		return float64(*s.EndTime), true
	case "id":
		return float64(s.ID), true
	}
	return 0, false
}

// WhereFilter is a filter that applies multiple where clauses (AND logic)
type WhereFilter struct {
	clauses []*WhereClause
	since   time.Time
}

// NewWhereFilter creates a filter from multiple where clause strings
func NewWhereFilter(whereClauses []string) (*WhereFilter, error) {
	if len(whereClauses) == 0 {
		return nil, nil
	}

	filter := &WhereFilter{}
	for _, clause := range whereClauses {
		wc, err := ParseWhereClause(clause)
		if err != nil {
			return nil, err
		}
		filter.clauses = append(filter.clauses, wc)
	}

	return filter, nil
}

// Match returns true if the session matches ALL where clauses (AND logic).
// A nil filter matches everything.
func (f *WhereFilter) Match(s domain.CompletedSession) bool {
	if f == nil {
		return true
	}
	if !f.since.IsZero() && s.RecencyKey() < f.since.UnixMilli() {
		return false
	}
	for _, clause := range f.clauses {
		if !clause.Match(s) {
			return false
		}
	}
	return true
}

// WithSince returns a filter that additionally drops sessions that ended
// before t. It allocates a filter when f is nil.
func (f *WhereFilter) WithSince(t time.Time) *WhereFilter {
	if t.IsZero() {
		return f
	}
	if f == nil {
		f = &WhereFilter{}
	}
	f.since = t
	return f
}

// Apply returns the sessions matching f, keeping their order.
func (f *WhereFilter) Apply(sessions []domain.CompletedSession) []domain.CompletedSession {
	if f == nil {
		return sessions
	}
	out := make([]domain.CompletedSession, 0, len(sessions))
	for _, s := range sessions {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
