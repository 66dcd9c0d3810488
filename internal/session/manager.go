package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/internal/stream"
)

const (
	// DefaultTimeout is the idle timeout of sessions.
	DefaultTimeout = 60 * time.Second

	// sweepPeriod is the interval between expiration sweeps.
	sweepPeriod = 10 * time.Second
)

// Manager is the process-wide session registry.
type Manager struct {
	// idle timeout applied to new sessions (optional).
	Timeout time.Duration

	// sweep interval (optional, used by tests).
	SweepPeriod time.Duration

	mutex    sync.RWMutex
	sessions map[string]*Session

	terminate chan struct{}
	done      chan struct{}
}

// Initialize initializes the Manager and starts the expiration sweeper.
func (m *Manager) Initialize() {
	if m.Timeout == 0 {
		m.Timeout = DefaultTimeout
	}
	if m.SweepPeriod == 0 {
		m.SweepPeriod = sweepPeriod
	}

	m.sessions = make(map[string]*Session)
	m.terminate = make(chan struct{})
	m.done = make(chan struct{})

	go m.runSweeper()
}

// Close closes the manager and every session.
func (m *Manager) Close() {
	close(m.terminate)
	<-m.done

	m.mutex.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mutex.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func generateSessionID() (string, error) {
	var b [8]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Create creates a session attached to a stream.
func (m *Manager) Create(st *stream.Stream) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var id string
	for {
		var err error
		id, err = generateSessionID()
		if err != nil {
			return nil, err
		}

		// collisions are negligible but cheap to rule out
		if _, ok := m.sessions[id]; !ok {
			break
		}
	}

	s := newSession(id, st, m.Timeout)
	s.onTerminate = func() {
		m.Remove(s.ID)
	}
	m.sessions[id] = s

	logrus.Infof("[session %s] created for stream %s", id, st.ID)

	return s, nil
}

// Get returns a session by id and refreshes its activity timestamp.
func (m *Manager) Get(id string) *Session {
	m.mutex.RLock()
	s := m.sessions[id]
	m.mutex.RUnlock()

	if s != nil {
		s.Touch()
	}
	return s
}

// Remove removes a session and releases its resources.
func (m *Manager) Remove(id string) {
	m.mutex.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	m.mutex.Unlock()

	if s != nil {
		s.Close()
		logrus.Infof("[session %s] removed", id)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) runSweeper() {
	defer close(m.done)

	t := time.NewTicker(m.SweepPeriod)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			m.sweep()

		case <-m.terminate:
			return
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()

	m.mutex.RLock()
	var expired []string
	for id, s := range m.sessions {
		if s.IsExpired(now) {
			expired = append(expired, id)
		}
	}
	m.mutex.RUnlock()

	for _, id := range expired {
		logrus.Infof("[session %s] expired", id)
		m.Remove(id)
	}
}
