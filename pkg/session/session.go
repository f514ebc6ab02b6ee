package session

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record behind a session token.
type Session struct {
	ID             uuid.UUID      `json:"id"`
	Token          string         `json:"token"`
	UserID         *int64         `json:"user_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

func newSession(token string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             uuid.New(),
		Token:          token,
		Data:           make(map[string]any),
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserID != nil
}

func (s *Session) IsExpired() bool {
	return s != nil && time.Now().After(s.ExpiresAt)
}

func (s *Session) Get(key string) (any, bool) {
	if s == nil || s.Data == nil {
		return nil, false
	}
	v, ok := s.Data[key]
	return v, ok
}

// GetString returns the value under key when it is a non-empty string.
func (s *Session) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok && str != ""
}

// Pop returns the string under key and removes it.
func (s *Session) Pop(key string) (string, bool) {
	v, ok := s.GetString(key)
	s.Delete(key)
	return v, ok
}

func (s *Session) Set(key string, value any) {
	if s == nil {
		return
	}
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = value
}

func (s *Session) Delete(key string) {
	if s == nil || s.Data == nil {
		return
	}
	delete(s.Data, key)
}

// Clear drops all data values.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.Data = make(map[string]any)
}

func (s *Session) Touch() {
	if s == nil {
		return
	}
	s.LastActivityAt = time.Now()
}

// clone returns a deep-enough copy for store isolation: the Data map and
// UserID pointer are not shared with the original.
func (s *Session) clone() *Session {
	c := *s
	if s.Data != nil {
		c.Data = make(map[string]any, len(s.Data))
		maps.Copy(c.Data, s.Data)
	}
	if s.UserID != nil {
		id := *s.UserID
		c.UserID = &id
	}
	return &c
}
