package server

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/sel/vm"
)

var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrWorkerStopped is returned when a request reaches a destroyed session.
	ErrWorkerStopped = errors.New("session worker stopped")
)

// Session is an isolated VM reachable by id.
type Session struct {
	ID      string
	Name    string
	Created time.Time

	worker *VMWorker
	seq    uint64

	mu       sync.Mutex
	lastUsed time.Time
}

// Worker returns the session's VM worker and marks the session as used.
func (s *Session) Worker() *VMWorker {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
	return s.worker
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// SessionStore manages sessions. Each session owns its own VM and worker.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	newVM    func() *vm.VM
	nextSeq  atomic.Uint64
}

// NewSessionStore creates a session store whose sessions get VMs from newVM.
func NewSessionStore(newVM func() *vm.VM) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		newVM:    newVM,
	}
}

// Create creates a new session with an optional name.
func (s *SessionStore) Create(name string) *Session {
	now := time.Now()
	session := &Session{
		ID:       uuid.NewString(),
		Name:     name,
		Created:  now,
		worker:   NewVMWorker(s.newVM()),
		seq:      s.nextSeq.Add(1),
		lastUsed: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	log.Infof("session %s created (%q)", session.ID, name)
	return session
}

// Get retrieves a session by id.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Destroy removes a session and stops its worker.
func (s *SessionStore) Destroy(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.worker.Stop()
	log.Infof("session %s destroyed", id)
	return nil
}

// List returns all sessions, oldest first.
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep destroys sessions that haven't been used within the TTL.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	var stale []string
	s.mu.RLock()
	for id, session := range s.sessions {
		if session.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if s.Destroy(id) == nil {
			removed++
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(ttl); n > 0 {
					log.Infof("swept %d idle sessions", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

// StopAll destroys every session.
func (s *SessionStore) StopAll() {
	for _, session := range s.List() {
		s.Destroy(session.ID)
	}
}
