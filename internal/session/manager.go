package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/engine"
)

// Manager keeps at most one live session per Telegram user id.
// Reconnecting players get their running session back; the offline report
// is only meaningful on the attach that actually created it.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	deps          Deps
	snapshotEvery time.Duration
}

// NewManager creates a session manager.
func NewManager(deps Deps, snapshotEvery time.Duration) *Manager {
	return &Manager{
		sessions:      make(map[string]*Session),
		deps:          deps,
		snapshotEvery: snapshotEvery,
	}
}

// Attach returns the running session for the user, creating one (with the
// offline catch-up pass) when none exists. The bool reports whether the
// session was freshly created.
func (m *Manager) Attach(ctx context.Context, userID string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s, false, nil
	}

	s, err := newSession(ctx, userID, m.deps, m.snapshotEvery)
	if err != nil {
		return nil, false, fmt.Errorf("start session for %s: %w", userID, err)
	}
	m.sessions[userID] = s
	m.deps.Logger.Event("SESSION_STARTED", userID, fmt.Sprintf("offline %.0fs, granted %.2f",
		s.offlineReport.ElapsedSeconds, s.offlineReport.IncomeGranted))
	return s, true, nil
}

// Get returns the running session without creating one.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Detach stops the user's session and persists its final state.
func (m *Manager) Detach(ctx context.Context, userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if ok {
		s.close(ctx)
		m.deps.Logger.Event("SESSION_CLOSED", userID, "detached")
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StopAll shuts down every session, persisting each final state.
// Used on server shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.close(ctx)
		}(s)
	}
	wg.Wait()
}

// OfflineReportFor exposes the welcome-back summary for a user with a live
// session. Zero report when the session does not exist.
func (m *Manager) OfflineReportFor(userID string) engine.OfflineReport {
	s, ok := m.Get(userID)
	if !ok {
		return engine.OfflineReport{}
	}
	return s.OfflineReport()
}
