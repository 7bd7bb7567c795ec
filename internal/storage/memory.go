package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrWriteFailed is returned by Memory when write failures are injected.
var ErrWriteFailed = errors.New("storage: write failed")

// Memory is an in-process KV, used for tests and ephemeral runs.
type Memory struct {
	mu         sync.Mutex
	data       map[string][]byte
	failWrites int // remaining writes to fail; -1 fails forever
	writes     int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// FailWrites makes the next n writes fail. n < 0 fails every write.
func (m *Memory) FailWrites(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
}

// Writes returns the number of write attempts seen, including failed ones.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Set stores raw bytes without going through failure injection.
func (m *Memory) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injectFailure(); err != nil {
		return err
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injectFailure(); err != nil {
		return err
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) injectFailure() error {
	m.writes++
	switch {
	case m.failWrites < 0:
		return ErrWriteFailed
	case m.failWrites > 0:
		m.failWrites--
		return ErrWriteFailed
	}
	return nil
}
