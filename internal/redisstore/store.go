package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/callsim/callsim/internal/cache"
	"github.com/callsim/callsim/internal/logger"
)

const (
	sessionPrefix = "session:"
	cachePrefix   = "cache:"
)

// Store wraps redis for the non-authoritative session mirror and the shared
// cache. It satisfies cache.KV.
type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Client() *redis.Client { return s.client }

func (s *Store) Healthy(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, cachePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrMiss
		}
		return nil, err
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, cachePrefix+key, value, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, cachePrefix+key).Err()
}

// SessionState is the shadow copy of an active call session. The relational
// store stays the single source of truth.
type SessionState struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Turn    `json:"messages"`
}

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SaveSession mirrors session state with a TTL. Failures are logged and
// swallowed; the mirror is best-effort.
func (s *Store) SaveSession(ctx context.Context, sessionID string, state SessionState, ttl time.Duration) {
	b, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, sessionPrefix+sessionID, b, ttl).Err(); err != nil {
		logger.L.WithError(err).WithField("session_id", sessionID).
			Warn("session mirror write failed")
	}
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionState, bool) {
	b, err := s.client.Get(ctx, sessionPrefix+sessionID).Bytes()
	if err != nil {
		return nil, false
	}
	var state SessionState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, false
	}
	return &state, true
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) {
	if err := s.client.Del(ctx, sessionPrefix+sessionID).Err(); err != nil {
		logger.L.WithError(err).WithField("session_id", sessionID).
			Warn("session mirror delete failed")
	}
}
