// Package redisstore keeps sessions in Redis with a TTL equal to their remaining absolute lifetime.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tm65023/Story/internal/security"
	"github.com/tm65023/Story/internal/session/domain"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "story:sess:"

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

type record struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
}

// Store implements the session repository on Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore returns a Store using client. An empty prefix selects DefaultPrefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: client, prefix: prefix, now: time.Now}
}

// NewClient parses a redis:// URL and returns a client for it.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *Store) key(id string) string {
	return s.prefix + security.HashSessionID(id)
}

// Create stores the session. Sessions already past their expiry are rejected.
func (s *Store) Create(ctx context.Context, sess *domain.Session) error {
	if sess.ID == "" || sess.UserID == "" {
		return errors.New("session id and user id are required")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	data, err := json.Marshal(record{
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt.UnixMilli(),
		CreatedAt: sess.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetByID returns the session, or nil if the key is missing, expired or unreadable.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.UserID == "" {
		return nil, nil
	}
	sess := &domain.Session{
		ID:        id,
		UserID:    rec.UserID,
		ExpiresAt: time.UnixMilli(rec.ExpiresAt).UTC(),
		CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
	}
	if sess.Expired(s.now()) {
		return nil, nil
	}
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
