// Persisted session store
//
// A session.Store backed by Redis, so resolved asset-list sessions survive
// a proxy restart and are shared across replicas behind a load balancer.
// Writes go straight to Redis (write-through): the asset-list resolver
// already only calls Put once per resolution, so there is no write
// amplification to batch, and write-through means a crash right after
// resolving never serves a session that was never actually persisted.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/eyevinn/sgai-proxy/internal/session"
	"github.com/eyevinn/sgai-proxy/internal/telemetry"
)

// Store implements session.Store on top of a Client.
type Store struct {
	client  *Client
	health  *HealthChecker
	logger  telemetry.Logger
	fallback session.Store
}

// NewStore creates a Redis-backed session store. fallback is used for
// reads and writes whenever the health checker reports Redis unreachable,
// so a brief outage degrades to per-replica caching instead of failing
// every asset-list request.
func NewStore(client *Client, health *HealthChecker, logger telemetry.Logger, fallback session.Store) *Store {
	return &Store{client: client, health: health, logger: logger, fallback: fallback}
}

func redisKey(key session.Key) string {
	return "sgai:session:" + key.SessionID + ":" + key.InterstitialID
}

// Get retrieves a resolved session.
func (s *Store) Get(key session.Key) (*session.Resolved, bool) {
	if !s.health.Healthy() {
		return s.fallback.Get(key)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	raw, err := s.client.Raw().Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.logger.Warn("session store get failed, falling back to memory", "error", err.Error())
		}
		return s.fallback.Get(key)
	}

	var resolved session.Resolved
	if err := json.Unmarshal(raw, &resolved); err != nil {
		s.logger.Warn("session store returned unparsable value", "error", err.Error())
		return nil, false
	}
	return &resolved, true
}

// Put stores a resolved session with the given TTL.
func (s *Store) Put(key session.Key, resolved *session.Resolved, ttl time.Duration) {
	if !s.health.Healthy() {
		s.fallback.Put(key, resolved, ttl)
		return
	}

	data, err := json.Marshal(resolved)
	if err != nil {
		s.logger.Error("session marshal failed", "error", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := s.client.Raw().Set(ctx, redisKey(key), data, ttl).Err(); err != nil {
		s.logger.Warn("session store put failed, writing to memory fallback", "error", err.Error())
		s.fallback.Put(key, resolved, ttl)
	}
}
