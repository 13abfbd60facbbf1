package api

import (
	"errors"
	"time"

	"github.com/pmylund/go-cache"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/session"
)

// ErrTooManySessions is returned when the store is at capacity.
var ErrTooManySessions = errors.New("api: too many sessions")

// Store keeps sessions in memory for a sliding TTL. Expired, deleted and
// flushed sessions are closed, which erases their keys.
type Store struct {
	cache *cache.Cache
	limit int
}

// NewStore returns a store whose sessions expire after ttl without use.
// Expired entries are purged every cleanup interval. limit bounds the number
// of live sessions; zero means unbounded.
func NewStore(ttl, cleanup time.Duration, limit int) *Store {
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*session.Session); ok {
			_ = s.Close()
		}
	})
	return &Store{cache: c, limit: limit}
}

// Add stores s under its id.
func (st *Store) Add(s *session.Session) error {
	if st.limit > 0 && st.cache.ItemCount() >= st.limit {
		st.cache.DeleteExpired()
		if st.cache.ItemCount() >= st.limit {
			return ErrTooManySessions
		}
	}
	return st.cache.Add(s.ID(), s, cache.DefaultExpiration)
}

// Get returns the session for id and restarts its TTL.
func (st *Store) Get(id string) (*session.Session, error) {
	v, ok := st.cache.Get(id)
	if !ok {
		return nil, qerrors.ErrSessionNotFound
	}
	s, ok := v.(*session.Session)
	if !ok {
		return nil, qerrors.ErrSessionNotFound
	}
	// Replace fails once the entry is gone, so a concurrent Delete or
	// eviction is never undone by the TTL refresh.
	if err := st.cache.Replace(id, s, cache.DefaultExpiration); err != nil {
		return nil, qerrors.ErrSessionNotFound
	}
	return s, nil
}

// Delete closes and removes the session for id.
func (st *Store) Delete(id string) error {
	if _, ok := st.cache.Get(id); !ok {
		return qerrors.ErrSessionNotFound
	}
	st.cache.Delete(id)
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet
// purged.
func (st *Store) Len() int {
	return st.cache.ItemCount()
}

// Close closes and removes every session.
func (st *Store) Close() {
	for id := range st.cache.Items() {
		st.cache.Delete(id)
	}
}
