package session

import (
	"errors"
	"sync"
	"time"
)

// Sentinel errors for the store taxonomy.
var (
	// ErrNotFound is returned when a session is absent or logically expired.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicate is returned when creating a session that already exists unexpired.
	ErrDuplicate = errors.New("session already exists")
)

type entry struct {
	mu sync.Mutex
	s  *Session
}

// Store is a concurrency-safe, single-node session store with TTL-based
// expiry. Mutations to the same session are serialized by a per-entry mutex;
// unrelated sessions proceed fully in parallel. The outer map lock is held
// only long enough to find or insert an entry, never across a mutator.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	ttl time.Duration
	now func() time.Time
}

// NewStore returns a store whose sessions expire ttl after their last update.
// The store is an injectable dependency; construct one per service instance.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock overrides the store's time source. Test hook.
func (st *Store) SetClock(now func() time.Time) { st.now = now }

// TTL returns the configured session TTL.
func (st *Store) TTL() time.Duration { return st.ttl }

func (st *Store) expired(s *Session) bool {
	return st.now().Sub(s.LastUpdateTime) >= st.ttl
}

func (st *Store) lookup(id string) *entry {
	st.mu.RLock()
	e := st.entries[id]
	st.mu.RUnlock()
	return e
}

// Get returns a clone of the session, or ErrNotFound if it is absent or past
// TTL. Logically expired sessions are never returned, whether or not the
// sweeper has purged them yet.
func (st *Store) Get(id string) (*Session, error) {
	e := st.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s == nil || st.expired(e.s) {
		return nil, ErrNotFound
	}
	return e.s.Clone(), nil
}

// Create registers a new session. An unexpired session under the same id
// fails with ErrDuplicate; an expired one is replaced in place.
func (st *Store) Create(id, conversationType string) (*Session, error) {
	now := st.now()
	s := &Session{
		SessionID:          id,
		ConversationType:   conversationType,
		ConversationStatus: "active",
		StartTime:          now,
		LastUpdateTime:     now,
	}

	st.mu.Lock()
	e, ok := st.entries[id]
	if !ok {
		e = &entry{}
		st.entries[id] = e
	}
	st.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s != nil && !st.expired(e.s) {
		return nil, ErrDuplicate
	}
	e.s = s
	return s.Clone(), nil
}

// Update applies fn to the session under its lock and refreshes
// LastUpdateTime. Returns ErrNotFound if the session is absent or expired;
// callers decide whether to recreate. fn must not retain the *Session.
func (st *Store) Update(id string, fn func(*Session)) (*Session, error) {
	e := st.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s == nil || st.expired(e.s) {
		return nil, ErrNotFound
	}
	fn(e.s)
	// LastUpdateTime is monotonically non-decreasing even with a coarse clock.
	if now := st.now(); now.After(e.s.LastUpdateTime) {
		e.s.LastUpdateTime = now
	}
	return e.s.Clone(), nil
}

// Remove deletes the session. Removing an absent session is not an error.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	e, ok := st.entries[id]
	if ok {
		delete(st.entries, id)
	}
	st.mu.Unlock()
	if !ok {
		return
	}
	// An in-flight Update holds e.mu; wait for it so its write completes
	// against the detached entry rather than racing the delete.
	e.mu.Lock()
	e.s = nil
	e.mu.Unlock()
}

// SweepExpired removes all sessions past TTL and returns how many were
// purged. Safe to run concurrently with reads and writes.
func (st *Store) SweepExpired() int {
	st.mu.RLock()
	ids := make([]string, 0, len(st.entries))
	for id := range st.entries {
		ids = append(ids, id)
	}
	st.mu.RUnlock()

	removed := 0
	for _, id := range ids {
		e := st.lookup(id)
		if e == nil {
			continue
		}
		e.mu.Lock()
		dead := e.s == nil || st.expired(e.s)
		e.mu.Unlock()
		if !dead {
			continue
		}
		st.mu.Lock()
		// Re-check under the map lock; the entry may have been replaced, or
		// revived in place by a concurrent Create after the dead-check above.
		if cur, ok := st.entries[id]; ok && cur == e {
			e.mu.Lock()
			if e.s == nil || st.expired(e.s) {
				delete(st.entries, id)
				removed++
			}
			e.mu.Unlock()
		}
		st.mu.Unlock()
	}
	return removed
}

// List returns clones of all unexpired sessions, up to limit (0 = no limit).
func (st *Store) List(limit int) []*Session {
	st.mu.RLock()
	entries := make([]*entry, 0, len(st.entries))
	for _, e := range st.entries {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	var out []*Session
	for _, e := range entries {
		e.mu.Lock()
		if e.s != nil && !st.expired(e.s) {
			out = append(out, e.s.Clone())
		}
		e.mu.Unlock()
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Len returns the number of unexpired sessions.
func (st *Store) Len() int {
	n := 0
	st.mu.RLock()
	entries := make([]*entry, 0, len(st.entries))
	for _, e := range st.entries {
		entries = append(entries, e)
	}
	st.mu.RUnlock()
	for _, e := range entries {
		e.mu.Lock()
		if e.s != nil && !st.expired(e.s) {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
