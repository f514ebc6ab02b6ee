package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "kfchess:session:"

// RedisStore keeps sessions as JSON strings whose key TTL tracks ExpiresAt,
// so Redis evicts expired sessions on its own.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client. An empty prefix selects "kfchess:session:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(token string) string {
	return r.prefix + token
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	if s == nil || s.Token == "" {
		return ErrInvalidSession
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	if err := r.client.Set(ctx, r.key(s.Token), data, ttl(s)).Err(); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(ErrInvalidSession, err)
	}
	if s.IsExpired() {
		_ = r.Delete(ctx, token)
		return nil, ErrSessionExpired
	}
	return &s, nil
}

// Update overwrites an existing session. SET XX keeps Update from
// resurrecting a session that was deleted concurrently.
func (r *RedisStore) Update(ctx context.Context, s *Session) error {
	if s == nil || s.Token == "" {
		return ErrInvalidSession
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	ok, err := r.client.SetXX(ctx, r.key(s.Token), data, ttl(s)).Result()
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

// DeleteExpired is a no-op: key TTLs expire sessions server-side.
func (r *RedisStore) DeleteExpired(context.Context) error {
	return nil
}
