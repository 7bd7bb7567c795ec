// Package tmux mirrors tracker events into a dedicated tmux session.
package tmux

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GianlucaP106/gotmux/gotmux"
)

// DefaultSessionName is used when Config.SessionName is empty.
const DefaultSessionName = "presence"

// ErrNoPaneAvailable is returned when writing before Setup or after Close.
var ErrNoPaneAvailable = errors.New("tmux: no pane available")

// Config configures the mirror session
type Config struct {
	SessionName string
	// KillOnClose removes the session when the manager closes.
	KillOnClose bool
}

// commander is the subset of gotmux.Tmux the manager drives.
type commander interface {
	Command(req ...string) (string, error)
}

// Manager owns one tmux session whose first pane receives output.
type Manager struct {
	mu      sync.Mutex
	config  Config
	tmux    commander
	session *gotmux.Session
	ready   bool
}

// NewManager connects to the default tmux server.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.SessionName == "" {
		cfg.SessionName = DefaultSessionName
	}
	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("tmux not available: %w", err)
	}

	m := &Manager{config: cfg, tmux: t}
	if err := m.attach(t); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) attach(t *gotmux.Tmux) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.HasSession(m.config.SessionName) {
		s, err := t.GetSessionByName(m.config.SessionName)
		if err != nil {
			return fmt.Errorf("failed to find tmux session %q: %w", m.config.SessionName, err)
		}
		m.session = s
	} else {
		s, err := t.NewSession(&gotmux.SessionOptions{Name: m.config.SessionName})
		if err != nil {
			return fmt.Errorf("failed to create tmux session %q: %w", m.config.SessionName, err)
		}
		m.session = s
	}
	m.ready = true
	return nil
}

// SessionName returns the tmux session being written to
func (m *Manager) SessionName() string { return m.config.SessionName }

// AttachCommand is the command a user runs to view the mirror.
func (m *Manager) AttachCommand() string {
	return fmt.Sprintf("tmux attach -t %s", m.config.SessionName)
}

// Close stops writing and, if configured, kills the session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil
	}
	m.ready = false
	if m.config.KillOnClose && m.session != nil {
		return m.session.Kill()
	}
	return nil
}

func (m *Manager) paneTarget() string {
	return fmt.Sprintf("%s:0.0", m.config.SessionName)
}
