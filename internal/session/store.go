// Session store
//
// Store abstracts where resolved asset-list sessions live: in-process
// memory by default, or a Redis-backed store (internal/redis) when a
// persisted session endpoint is configured so multiple proxy replicas
// behind a load balancer share resolutions.
package session

import (
	"time"

	"github.com/eyevinn/sgai-proxy/internal/cache"
)

// Store gets and puts resolved asset-list sessions keyed by (sessionID,
// interstitialID).
type Store interface {
	Get(key Key) (*Resolved, bool)
	Put(key Key, resolved *Resolved, ttl time.Duration)
}

// memoryStore is the default Store, backed by the generic in-memory TTL
// cache.
type memoryStore struct {
	cache cache.Cache
}

// NewMemoryStore creates a Store backed by an in-process cache.
func NewMemoryStore() Store {
	return &memoryStore{cache: cache.NewMemory()}
}

func cacheKey(key Key) cache.Key {
	return cache.Key(key.SessionID + "|" + key.InterstitialID)
}

func (s *memoryStore) Get(key Key) (*Resolved, bool) {
	v, ok := s.cache.Get(cacheKey(key))
	if !ok {
		return nil, false
	}
	resolved, ok := v.(*Resolved)
	return resolved, ok
}

func (s *memoryStore) Put(key Key, resolved *Resolved, ttl time.Duration) {
	s.cache.Set(cacheKey(key), resolved, ttl)
}

// Size reports the number of sessions currently cached, for /status.
func (s *memoryStore) Size() int {
	return s.cache.Size()
}
