package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/ports"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "shopify:oauth:"

// RedisStore holds pending OAuth sessions in Redis keyed by state token.
// TTL-based expiry cleans up abandoned flows without a sweeper.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a session store backed by the given Redis client.
func NewRedisStore(client *redis.Client) ports.SessionStore {
	return &RedisStore{client: client}
}

// Put stores a session under its state token with the given TTL.
func (s *RedisStore) Put(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+session.State, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get retrieves a session by state token. Unknown or expired tokens return
// ErrSessionNotFound.
func (s *RedisStore) Get(ctx context.Context, state string) (*domain.Session, error) {
	payload, err := s.client.Get(ctx, keyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Delete removes a session once the OAuth flow completes.
func (s *RedisStore) Delete(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, keyPrefix+state).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
