// Package history owns the persisted list of completed presence sessions.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vburojevic/presence/internal/domain"
	"github.com/vburojevic/presence/internal/storage"
)

// SortBy selects the order of a sorted view.
type SortBy string

const (
	SortRecent   SortBy = "recent"
	SortDuration SortBy = "duration"
)

// ParseSortBy parses a sort criterion, case-insensitively.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case SortRecent, "":
		return SortRecent, nil
	case SortDuration:
		return SortDuration, nil
	}
	return "", fmt.Errorf("invalid sort %q (use recent or duration)", s)
}

// Store holds completed sessions newest first. It is the only writer of the
// persisted sessions blob; storage failures never reach callers.
type Store struct {
	mu       sync.RWMutex
	kv       storage.KV
	key      string
	sessions []domain.CompletedSession
	max      int
	logger   *zap.Logger

	// synced is set while the persisted blob is known to hold this store's
	// history, so a missing blob means another process cleared it.
	synced bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report swallowed storage failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxSessions caps history at n entries, evicting the oldest. n <= 0 keeps
// everything.
func WithMaxSessions(n int) Option {
	return func(s *Store) { s.max = n }
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// NewStore creates an empty store backed by kv. Call Load to restore history.
func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    storage.SessionsKey,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory history with the persisted copy. A missing,
// unreadable or corrupt blob yields an empty history.
func (s *Store) Load(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions, err := s.read(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to load session history", zap.String("key", s.key), zap.Error(err))
		}
		sessions = nil
	}
	s.sessions = sessions
	s.synced = err == nil
	return len(sessions)
}

func (s *Store) read(ctx context.Context) ([]domain.CompletedSession, error) {
	if s.kv == nil {
		return nil, storage.ErrNotFound
	}
	b, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	var sessions []domain.CompletedSession
	if err := json.Unmarshal(b, &sessions); err != nil {
		return nil, fmt.Errorf("corrupt session history: %w", err)
	}
	return dedupe(sessions), nil
}

// syncLocked rebases the in-memory history on the persisted blob before a
// write, so a clear or append made by another process is not overwritten.
// Read failures keep the in-memory copy.
func (s *Store) syncLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	sessions, err := s.read(ctx)
	switch {
	case err == nil:
		s.sessions = sessions
		s.synced = true
	case errors.Is(err, storage.ErrNotFound):
		if s.synced {
			s.logger.Debug("session history was cleared elsewhere", zap.String("key", s.key))
			s.sessions = nil
			s.synced = false
		}
	default:
		s.logger.Warn("failed to reread session history", zap.String("key", s.key), zap.Error(err))
	}
}

// dedupe keeps the first of any equivalent records, preserving order.
func dedupe(sessions []domain.CompletedSession) []domain.CompletedSession {
	out := make([]domain.CompletedSession, 0, len(sessions))
	for _, sess := range sessions {
		if !containsEquivalent(out, sess) {
			out = append(out, sess)
		}
	}
	return out
}

func containsEquivalent(sessions []domain.CompletedSession, sess domain.CompletedSession) bool {
	return lo.ContainsBy(sessions, func(existing domain.CompletedSession) bool {
		return existing.Equivalent(sess)
	})
}

// Append inserts sess at the head of history and persists it. Equivalent
// records (same id, or same start and end) are dropped; Append then reports false.
//
// The persisted blob is reread first and used as the base, so history cleared
// or extended by another process since Load is respected.
func (s *Store) Append(ctx context.Context, sess domain.CompletedSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncLocked(ctx)
	if containsEquivalent(s.sessions, sess) {
		s.logger.Debug("dropping duplicate session", zap.Int64("id", sess.ID))
		return false
	}
	next := make([]domain.CompletedSession, 0, len(s.sessions)+1)
	next = append(next, sess)
	next = append(next, s.sessions...)
	if s.max > 0 && len(next) > s.max {
		next = next[:s.max]
	}
	s.sessions = next
	s.persistLocked(ctx)
	return true
}

// Clear empties history and erases the persisted copy. Confirmation is the
// caller's job.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	s.synced = false

	if s.kv == nil {
		return
	}
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.logger.Warn("failed to erase session history", zap.String("key", s.key), zap.Error(err))
	}
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	b, err := json.Marshal(s.sessions)
	if err != nil {
		s.logger.Warn("failed to encode session history", zap.Error(err))
		return
	}
	if err := s.kv.Put(ctx, s.key, b); err != nil {
		s.logger.Warn("failed to persist session history", zap.String("key", s.key), zap.Error(err))
		return
	}
	s.synced = true
}

// Sessions returns a copy of history in stored (newest-first) order.
func (s *Store) Sessions() []domain.CompletedSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []domain.CompletedSession {
	out := make([]domain.CompletedSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sorted returns a sorted copy of history; stored order is untouched and
// ties keep their stored order.
func (s *Store) Sorted(by SortBy) []domain.CompletedSession {
	return Sort(s.Sessions(), by)
}

// Sort sorts sessions in place by the given criterion and returns them.
func Sort(sessions []domain.CompletedSession, by SortBy) []domain.CompletedSession {
	switch by {
	case SortDuration:
		sort.SliceStable(sessions, func(i, j int) bool {
			return sessions[i].Duration > sessions[j].Duration
		})
	default:
		sort.SliceStable(sessions, func(i, j int) bool {
			return sessions[i].RecencyKey() > sessions[j].RecencyKey()
		})
	}
	return sessions
}

// TotalSeconds sums the duration of every stored session.
func (s *Store) TotalSeconds() float64 {
	return lo.SumBy(s.Sessions(), func(sess domain.CompletedSession) float64 {
		return sess.Duration
	})
}
