package preview

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Manager owns the live preview sessions, at most one per port.
type Manager struct {
	capturer Capturer
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[int]*Session
	closed   bool
}

// NewManager creates a manager whose sessions capture through capturer.
func NewManager(capturer Capturer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		capturer: capturer,
		logger:   logger,
		sessions: make(map[int]*Session),
	}
}

// Start binds a new session. A port already held by a session is rejected
// with a BindError rather than replacing it.
func (m *Manager) Start(opts Options) (Info, error) {
	if err := opts.Validate(); err != nil {
		return Info{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Info{}, ErrManagerClosed
	}
	if opts.Port != 0 {
		if _, ok := m.sessions[opts.Port]; ok {
			return Info{}, &BindError{Port: opts.Port, Err: fmt.Errorf("a live preview is already running on this port")}
		}
	}

	s, err := startSession(opts, m.capturer, m.logger)
	if err != nil {
		return Info{}, err
	}
	m.sessions[s.Port()] = s
	return s.Info(), nil
}

// Stop ends the session on port.
func (m *Manager) Stop(port int) error {
	m.mu.Lock()
	s, ok := m.sessions[port]
	delete(m.sessions, port)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, port)
	}
	s.Stop()
	return nil
}

// StopAll ends every session and returns how many were stopped.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[int]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()
	return len(sessions)
}

// Close stops every session and rejects later Start calls.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.StopAll()
}

// List returns a snapshot of every session, ordered by port.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Port < infos[j].Port })
	return infos
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
