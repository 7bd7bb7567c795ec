package domain

import "time"

// CompletedSession is a finished presence session as persisted in history.
// Times are epoch milliseconds and Duration is in seconds.
type CompletedSession struct {
	ID        int64   `json:"id" plist:"id"`               // Completion instant (epoch ms)
	StartTime int64   `json:"startTime" plist:"startTime"` // Rising edge (epoch ms)
	EndTime   *int64  `json:"endTime" plist:"endTime,omitempty"`
	Duration  float64 `json:"duration" plist:"duration"` // Seconds
}

// NewCompletedSession builds a session that ended at end.
func NewCompletedSession(start, end time.Time, duration time.Duration) CompletedSession {
	endMs := end.UnixMilli()
	return CompletedSession{
		ID:        endMs,
		StartTime: start.UnixMilli(),
		EndTime:   &endMs,
		Duration:  duration.Seconds(),
	}
}

// Start returns the start instant.
func (s CompletedSession) Start() time.Time {
	return time.UnixMilli(s.StartTime)
}

// End returns the end instant and false when the record has no end time.
func (s CompletedSession) End() (time.Time, bool) {
	if s.EndTime == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*s.EndTime), true
}

// RecencyKey is the instant used to order sessions by recency: endTime, falling
// back to startTime for records written without one.
func (s CompletedSession) RecencyKey() int64 {
	if s.EndTime != nil && *s.EndTime != 0 {
		return *s.EndTime
	}
	return s.StartTime
}

// Equivalent reports whether two records describe the same completion.
func (s CompletedSession) Equivalent(o CompletedSession) bool {
	if s.ID == o.ID {
		return true
	}
	if s.StartTime != o.StartTime {
		return false
	}
	if s.EndTime == nil || o.EndTime == nil {
		return s.EndTime == nil && o.EndTime == nil
	}
	return *s.EndTime == *o.EndTime
}

// ActiveSession is a read-only snapshot of the in-flight session
type ActiveSession struct {
	StartTime time.Time
	Elapsed   time.Duration
	LastTick  time.Time
}

// DetectionEvent records a rising edge of the presence signal.
type DetectionEvent struct {
	ID         int64  `json:"id" plist:"id"`               // Detection instant (epoch ms)
	Timestamp  int64  `json:"timestamp" plist:"timestamp"` // Epoch ms
	TimeString string `json:"timeString" plist:"timeString"`
}

// NewDetectionEvent creates a detection event for the instant at.
func NewDetectionEvent(at time.Time) DetectionEvent {
	ms := at.UnixMilli()
	return DetectionEvent{
		ID:         ms,
		Timestamp:  ms,
		TimeString: FormatClock(at),
	}
}

// Time returns the detection instant.
func (e DetectionEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}
