package session

import (
	"sync"
	"time"

	"github.com/vburojevic/presence/internal/domain"
)

// Tracker turns per-tick presence samples into completed sessions.
//
// Elapsed time is the sum of deltas between tick instants, so accuracy does
// not depend on how regularly Tick is called. A session still active when the
// caller stops ticking is never finalized.
type Tracker struct {
	mu        sync.Mutex
	active    bool
	startTime time.Time
	lastTick  time.Time
	elapsed   time.Duration
	completed int
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Tick feeds one presence sample observed at now. It returns the completed
// session on a true->false transition and nil otherwise.
func (t *Tracker) Tick(present bool, now time.Time) *domain.CompletedSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		if present {
			t.active = true
			t.startTime = now
			t.lastTick = now
			t.elapsed = 0
		}
		return nil
	}

	delta := t.advance(now)
	if present {
		t.elapsed += delta
		return nil
	}

	// Falling edge: close out with the final partial delta.
	end := now
	if end.Before(t.startTime) {
		end = t.startTime
	}
	completed := domain.NewCompletedSession(t.startTime, end, t.elapsed+delta)
	t.active = false
	t.elapsed = 0
	t.completed++
	return &completed
}

// advance moves lastTick to now and returns the elapsed wall-clock delta.
// A clock that steps backwards contributes nothing.
func (t *Tracker) advance(now time.Time) time.Duration {
	delta := now.Sub(t.lastTick)
	if delta < 0 {
		return 0
	}
	t.lastTick = now
	return delta
}

// Active returns a snapshot of the in-flight session, if any.
func (t *Tracker) Active() (domain.ActiveSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return domain.ActiveSession{}, false
	}
	return domain.ActiveSession{
		StartTime: t.startTime,
		Elapsed:   t.elapsed,
		LastTick:  t.lastTick,
	}, true
}

// Abandon drops any in-flight session without emitting it and reports whether
// one was dropped.
func (t *Tracker) Abandon() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasActive := t.active
	t.active = false
	t.elapsed = 0
	return wasActive
}

// Completed returns how many sessions this tracker has emitted.
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}
