// Package session holds per-session analysis state in memory.
package session

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/domain/model"
	"goattrib/internal/regression"
	"goattrib/internal/scenario"
)

// State is the mutable content of one session. It is only reachable
// through Session.Do, which holds the session lock.
// INVARIANTS:
// - Fit and Design are nil whenever Dataset was replaced after the last fit
// - a non-nil simulator was built from the fit of the current Generation
type State struct {
	Dataset *dataset.Dataset
	Design  *regression.Design
	Fit     *model.FitResult

	generation uint64
	simulator  *scenario.Simulator
}

// Generation counts installed fits over the life of the session
func (st *State) Generation() uint64 {
	return st.generation
}

// ReplaceDataset installs ds and discards everything derived from the
// previous dataset
func (st *State) ReplaceDataset(ds *dataset.Dataset) {
	st.Dataset = ds
	st.Design = nil
	st.Fit = nil
	st.simulator = nil
}

// InstallFit replaces the current fit and rebuilds the simulator from it.
// Returns the new generation.
func (st *State) InstallFit(design *regression.Design, fit *model.FitResult) uint64 {
	st.generation++
	fit.Generation = st.generation
	st.Design = design
	st.Fit = fit
	st.simulator = scenario.New(fit.FittedModel, design, st.generation)
	return st.generation
}

// Simulator returns a simulator bound to the current fit, rebuilding a
// stale one. Fails with core.ErrModelNotFitted before any fit.
func (st *State) Simulator() (*scenario.Simulator, error) {
	if st.Fit == nil || st.Design == nil {
		return nil, core.ErrModelNotFitted
	}
	if st.simulator == nil || st.simulator.Generation() != st.generation {
		st.simulator = scenario.New(st.Fit.FittedModel, st.Design, st.generation)
	}
	return st.simulator, nil
}

// Session serialises all operations on one State
type Session struct {
	ID        core.SessionID
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	lastAccess atomic.Int64 // unix nanoseconds
}

// Do runs fn with the session lock held. Concurrent calls on the same
// session run one after another; different sessions do not block each other.
func (s *Session) Do(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess.Store(time.Now().UnixNano())
	return fn(&s.state)
}

// LastAccess returns when the session was last used
func (s *Session) LastAccess() time.Time {
	return time.Unix(0, s.lastAccess.Load())
}

// Store maps session IDs to sessions
type Store struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*Session
	now      func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions: make(map[core.SessionID]*Session),
		now:      time.Now,
	}
}

// Create registers a new empty session
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{ID: core.NewSessionID(), CreatedAt: now}
	sess.lastAccess.Store(now.UnixNano())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session or core.ErrSessionNotFound
func (s *Store) Get(id core.SessionID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete removes a session
func (s *Store) Delete(id core.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// IDs returns all session IDs in creation order
func (s *Store) IDs() []core.SessionID {
	s.mu.RLock()
	ids := make([]core.SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	// v7 IDs sort by creation time
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EvictIdle removes sessions unused for longer than maxIdle and returns
// how many were removed
func (s *Store) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastAccess().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
