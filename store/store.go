// Package store holds the process-wide registries: active sessions keyed by
// connection ID and the design history keyed by specification ID.
//
// The store is constructed once at process start and injected into the hub
// router and REST handlers; nothing in the repo reaches for it as a global.
// History is unbounded for the process lifetime — designs are never evicted,
// so listing semantics stay stable across a run.
package store

import (
	"sync"
	"time"

	"github.com/draftwire/draftwire/design"
)

// Session is ephemeral per-connection state. It tracks which designs were
// created during the connection's lifetime but does not own them: designs
// stay in history after the session is gone.
type Session struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connectedAt"`
	Designs     []string  `json:"designs"`
}

// Store is safe for concurrent use. Handlers run on one goroutine per
// connection, so every mutation happens under the mutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	history  map[string]*design.Specification
	order    []string // history insertion order
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Test seam.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		history:  make(map[string]*design.Specification),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateSession registers a session for a newly connected client.
func (s *Store) CreateSession(connID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{ID: connID, ConnectedAt: s.now(), Designs: []string{}}
	s.sessions[connID] = sess
	return sess
}

// DestroySession removes a session on disconnect. Designs recorded under it
// remain in history.
func (s *Store) DestroySession(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, connID)
}

// Session returns the session for a connection ID.
func (s *Store) Session(connID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[connID]
	return sess, ok
}

// SessionCount returns the number of active sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RecordDesign inserts a specification into history and appends its ID to
// the originating session, if that session still exists. The session append
// is best-effort: a generation may outlive its connection, which is not an
// error — the design still lands in history.
func (s *Store) RecordDesign(connID string, spec *design.Specification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.history[spec.ID]; !exists {
		s.order = append(s.order, spec.ID)
	}
	s.history[spec.ID] = spec
	if sess, ok := s.sessions[connID]; ok {
		sess.Designs = append(sess.Designs, spec.ID)
	}
}

// GetDesign looks up a specification by ID.
func (s *Store) GetDesign(specID string) (*design.Specification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.history[specID]
	return spec, ok
}

// ListRecent returns the n most recently inserted specifications in
// insertion order. n <= 0 returns an empty slice.
func (s *Store) ListRecent(n int) []*design.Specification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return []*design.Specification{}
	}
	start := len(s.order) - n
	if start < 0 {
		start = 0
	}
	out := make([]*design.Specification, 0, len(s.order)-start)
	for _, id := range s.order[start:] {
		out = append(out, s.history[id])
	}
	return out
}

// HistoryLen returns the number of designs recorded so far.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
