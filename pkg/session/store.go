package session

import (
	"context"
	"time"
)

// Store persists sessions keyed by token. Implementations must return copies
// from Get and must not retain the pointer passed to Create or Update.
type Store interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Update(ctx context.Context, session *Session) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}

// ttl is the remaining lifetime of s, never below one second so that
// backends with TTL semantics do not treat it as "no expiry".
func ttl(s *Session) time.Duration {
	d := time.Until(s.ExpiresAt)
	if d < time.Second {
		return time.Second
	}
	return d
}
