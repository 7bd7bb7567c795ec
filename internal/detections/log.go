// Package detections keeps the bounded log of "a face just appeared" events.
package detections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/presence/internal/domain"
	"github.com/vburojevic/presence/internal/storage"
)

// Capacity is the number of detection events retained.
const Capacity = 50

// Log is a newest-first ring buffer of detection events. Once full, recording
// a new event evicts the oldest one.
type Log struct {
	mu     sync.RWMutex
	kv     storage.KV
	key    string
	events []domain.DetectionEvent
	logger *zap.Logger
	synced bool // persisted blob holds this log's events
}

// NewLog creates an empty log backed by kv (which may be nil for an
// in-memory-only log).
func NewLog(kv storage.KV, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{kv: kv, key: storage.DetectionsKey, logger: logger}
}

// Load restores persisted events, treating any read or decode failure as an
// empty log.
func (l *Log) Load(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	events, err := l.read(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			l.logger.Warn("failed to load detection history", zap.Error(err))
		}
		events = nil
	}
	l.events = events
	l.synced = err == nil
	return len(events)
}

func (l *Log) read(ctx context.Context) ([]domain.DetectionEvent, error) {
	if l.kv == nil {
		return nil, storage.ErrNotFound
	}
	b, err := l.kv.Get(ctx, l.key)
	if err != nil {
		return nil, err
	}
	var events []domain.DetectionEvent
	if err := json.Unmarshal(b, &events); err != nil {
		return nil, fmt.Errorf("corrupt detection history: %w", err)
	}
	if len(events) > Capacity {
		events = events[:Capacity]
	}
	return events, nil
}

// syncLocked rebases the log on the persisted blob so a clear made by another
// process sticks.
func (l *Log) syncLocked(ctx context.Context) {
	if l.kv == nil {
		return
	}
	events, err := l.read(ctx)
	switch {
	case err == nil:
		l.events = events
		l.synced = true
	case errors.Is(err, storage.ErrNotFound):
		if l.synced {
			l.events = nil
			l.synced = false
		}
	default:
		l.logger.Warn("failed to reread detection history", zap.Error(err))
	}
}

// Record appends a detection at now and returns it.
func (l *Log) Record(ctx context.Context, now time.Time) domain.DetectionEvent {
	ev := domain.NewDetectionEvent(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked(ctx)
	next := make([]domain.DetectionEvent, 0, min(len(l.events)+1, Capacity))
	next = append(next, ev)
	next = append(next, l.events...)
	if len(next) > Capacity {
		next = next[:Capacity]
	}
	l.events = next
	l.persistLocked(ctx)
	return ev
}

// Clear drops every event and the persisted copy.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.synced = false

	if l.kv == nil {
		return
	}
	if err := l.kv.Delete(ctx, l.key); err != nil {
		l.logger.Warn("failed to erase detection history", zap.Error(err))
	}
}

// Events returns the events newest first.
func (l *Log) Events() []domain.DetectionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func (l *Log) snapshotLocked() []domain.DetectionEvent {
	out := make([]domain.DetectionEvent, len(l.events))
	copy(out, l.events)
	return out
}

func (l *Log) persistLocked(ctx context.Context) {
	if l.kv == nil {
		return
	}
	b, err := json.Marshal(l.events)
	if err != nil {
		l.logger.Warn("failed to encode detection history", zap.Error(err))
		return
	}
	if err := l.kv.Put(ctx, l.key, b); err != nil {
		l.logger.Warn("failed to persist detection history", zap.Error(err))
		return
	}
	l.synced = true
}
