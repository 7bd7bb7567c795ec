// Package monitor drives the session tracker, history and detection log from
// a stream of presence samples on a single goroutine.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/presence/internal/detections"
	"github.com/vburojevic/presence/internal/domain"
	"github.com/vburojevic/presence/internal/history"
	"github.com/vburojevic/presence/internal/session"
	"github.com/vburojevic/presence/internal/signal"
)

// DefaultTickInterval is how often elapsed time is accumulated while present.
const DefaultTickInterval = time.Second

// ErrNotRunning is returned by Do when the loop has exited.
var ErrNotRunning = errors.New("monitor: not running")

// Options configures a Monitor
type Options struct {
	Clock        clock.Clock
	TickInterval time.Duration
	Logger       *zap.Logger

	// Called on the loop goroutine; keep them fast.
	OnSession   func(sess domain.CompletedSession, stored bool)
	OnDetection func(ev domain.DetectionEvent)
}

// Monitor owns the tracker and is the single writer of history and the
// detection log while Run is active.
type Monitor struct {
	clock      clock.Clock
	interval   time.Duration
	logger     *zap.Logger
	tracker    *session.Tracker
	history    *history.Store
	detections *detections.Log
	edges      signal.EdgeDetector
	opts       Options

	// Time base of the sample source. Once a sample carries its own
	// timestamp, ticks and untimed samples are placed on that base.
	anchorAt   time.Time
	anchorRecv time.Time

	ops  chan op
	done chan struct{}
}

type op struct {
	fn   func()
	done chan struct{}
}

// New creates a monitor. Stores should already be loaded.
func New(hist *history.Store, log *detections.Log, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{
		clock:      opts.Clock,
		interval:   opts.TickInterval,
		logger:     opts.Logger,
		tracker:    session.NewTracker(),
		history:    hist,
		detections: log,
		opts:       opts,
		ops:        make(chan op),
		done:       make(chan struct{}),
	}
}

// Run processes samples until ctx is done or samples is closed. An active
// session at that point is abandoned, not recorded.
func (m *Monitor) Run(ctx context.Context, samples <-chan signal.Sample) error {
	defer close(m.done)

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	m.logger.Debug("monitor started", zap.Duration("tick_interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.teardown("context done")
			return nil
		case s, ok := <-samples:
			if !ok {
				m.teardown("source closed")
				return nil
			}
			m.handleSample(ctx, s)
		case <-ticker.C:
			m.tick(ctx, m.edges.Current(), m.now())
		case o := <-m.ops:
			o.fn()
			close(o.done)
		}
	}
}

func (m *Monitor) teardown(reason string) {
	if m.tracker.Abandon() {
		m.logger.Debug("abandoning in-flight session", zap.String("reason", reason))
	}
	m.logger.Debug("monitor stopped", zap.String("reason", reason))
}

func (m *Monitor) handleSample(ctx context.Context, s signal.Sample) {
	now := m.now()
	if !s.At.IsZero() {
		now = s.At
		m.anchorAt = s.At
		m.anchorRecv = m.clock.Now()
	}
	if m.edges.Observe(s.Present) == signal.EdgeRising && m.detections != nil {
		ev := m.detections.Record(ctx, now)
		m.logger.Debug("presence detected", zap.Int64("id", ev.ID))
		if m.opts.OnDetection != nil {
			m.opts.OnDetection(ev)
		}
	}
	m.tick(ctx, s.Present, now)
}

// now is the current instant on the source's time base: the monitor clock
// until a timestamped sample arrives, then the last sample timestamp advanced
// by the monitor time since it was received.
func (m *Monitor) now() time.Time {
	if m.anchorAt.IsZero() {
		return m.clock.Now()
	}
	return m.anchorAt.Add(m.clock.Now().Sub(m.anchorRecv))
}

func (m *Monitor) tick(ctx context.Context, present bool, now time.Time) {
	completed := m.tracker.Tick(present, now)
	if completed == nil {
		return
	}
	stored := true
	if m.history != nil {
		stored = m.history.Append(ctx, *completed)
	}
	m.logger.Debug("session completed",
		zap.Int64("id", completed.ID),
		zap.Float64("duration", completed.Duration),
		zap.Bool("stored", stored))
	if m.opts.OnSession != nil {
		m.opts.OnSession(*completed, stored)
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (m *Monitor) Do(ctx context.Context, fn func()) error {
	o := op{fn: fn, done: make(chan struct{})}
	select {
	case m.ops <- o:
	case <-m.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearSessions empties history from the loop goroutine.
func (m *Monitor) ClearSessions(ctx context.Context) error {
	return m.Do(ctx, func() { m.history.Clear(ctx) })
}

// ClearDetections empties the detection log from the loop goroutine.
func (m *Monitor) ClearDetections(ctx context.Context) error {
	return m.Do(ctx, func() { m.detections.Clear(ctx) })
}

// Active returns the in-flight session snapshot.
func (m *Monitor) Active() (domain.ActiveSession, bool) {
	return m.tracker.Active()
}

// Sessions returns history in the requested order.
func (m *Monitor) Sessions(by history.SortBy) []domain.CompletedSession {
	return m.history.Sorted(by)
}

// Detections returns the detection log, newest first.
func (m *Monitor) Detections() []domain.DetectionEvent {
	return m.detections.Events()
}

// Done is closed when Run returns.
func (m *Monitor) Done() <-chan struct{} { return m.done }
