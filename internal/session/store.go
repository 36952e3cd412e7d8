package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownSession is returned for IDs the store does not hold.
var ErrUnknownSession = errors.New("unknown session")

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 2 * time.Hour

type entry struct {
	state   State
	touched time.Time
}

// Store keeps the latest snapshot of every live session in memory.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates an empty store. A non-positive ttl selects DefaultIdleTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session in the initial state and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &entry{state: Initial(), touched: s.now()}
	s.mu.Unlock()
	return id
}

// Snapshot returns the latest state of a session.
func (s *Store) Snapshot(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return State{}, false
	}
	e.touched = s.now()
	return e.state, true
}

// Dispatch reduces a into the session's state and publishes the result.
func (s *Store) Dispatch(id string, a Action) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return State{}, ErrUnknownSession
	}
	next, err := Reduce(e.state, a)
	if err != nil {
		return e.state, err
	}
	e.state = next
	e.touched = s.now()
	return next, nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Expire drops sessions idle for longer than the TTL and returns how many.
// Sessions with a generation in flight are kept.
func (s *Store) Expire() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) && !e.state.Generating {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run expires idle sessions every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Expire(); n > 0 {
				slog.Debug("expired idle sessions", "count", n, "live", s.Len())
			}
		}
	}
}
