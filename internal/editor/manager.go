package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/heimdex/trimmer/internal/engine"
)

// Manager owns the engine and one session per open asset.
type Manager struct {
	engine Engine
	opts   Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(eng Engine, opts Options) *Manager {
	return &Manager{
		engine:   eng,
		opts:     opts.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// LoadEngine loads the engine, reporting a failure as the engine-load error.
// A load already in progress returns engine.ErrBusy.
func (m *Manager) LoadEngine(ctx context.Context) error {
	err := m.engine.Load(ctx)
	if err == nil || errors.Is(err, engine.ErrBusy) {
		return err
	}
	return newError(KindEngineLoad, err)
}

func (m *Manager) EngineState() engine.State {
	return m.engine.State()
}

// EngineReady returns the engine-load error until the engine has loaded.
func (m *Manager) EngineReady() error {
	if e := readyError(m.engine); e != nil {
		return e
	}
	return nil
}

// Status is the user-facing engine status string.
func (m *Manager) Status() string {
	return StatusFor(m.engine.State())
}

// EngineError returns the user-visible load error, or "" when there is none.
func (m *Manager) EngineError() string {
	if m.engine.State() == engine.StateError {
		return KindEngineLoad.Message()
	}
	return ""
}

// Open starts a session for asset, replacing any existing one for the same
// id.
func (m *Manager) Open(asset *Asset) (*Session, error) {
	s := NewSession(m.engine, m.opts)
	if err := s.Select(asset); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[asset.ID] = s
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Close(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
