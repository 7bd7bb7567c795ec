package domain

import (
	"fmt"
	"math"
	"time"
)

// FormatDuration renders seconds as HH:MM:SS, truncating fractions.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatClock renders an instant in local time as "15:04:05.00 PM" with
// centisecond precision. Hours stay on the 24h clock.
func FormatClock(t time.Time) string {
	ampm := "AM"
	if t.Hour() >= 12 {
		ampm = "PM"
	}
	centis := t.Nanosecond() / int(10*time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d.%02d %s", t.Hour(), t.Minute(), t.Second(), centis, ampm)
}
