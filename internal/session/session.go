// Package session holds the in-memory map of pending download sessions.
// A session correlates a chat button press back to the request that
// produced the keyboard. Sessions are single-use and never persisted;
// losing them on restart is intended.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ResolutionChoice describes one selectable resolution stored with a session.
type ResolutionChoice struct {
	FormatID  string
	HasAudio  bool
	TotalSize int64
}

// Session is a pending download request awaiting a user choice.
type Session struct {
	Token           string
	URL             string
	RequestingUser  int64
	OriginChat      int64
	OriginMessageID int
	CreatedAt       time.Time
	Resolutions     map[int]ResolutionChoice // keyed by height
}

// Store owns the token→session map. Construct with NewStore at process
// start; call StartSweeper to expire abandoned sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates an empty session store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
}

// Put registers a session and returns its token.
func (s *Store) Put(sess *Session) string {
	token := uuid.New().String()[:8]
	sess.Token = token
	sess.CreatedAt = time.Now()

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()
	return token
}

// Consume returns the session for token and removes it. A session can be
// consumed exactly once; the second call returns false.
func (s *Store) Consume(token string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, false
	}
	delete(s.sessions, token)
	if time.Since(sess.CreatedAt) > s.ttl {
		return nil, false
	}
	return sess, true
}

// Cancel discards a session without consuming it. Returns whether it existed.
func (s *Store) Cancel(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[token]
	delete(s.sessions, token)
	return ok
}

// Len returns the number of pending sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartSweeper runs a background loop removing expired sessions.
// Stop terminates it.
func (s *Store) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweeper loop.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) sweep() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, token)
		}
	}
}
