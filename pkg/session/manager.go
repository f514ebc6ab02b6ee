package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kfchess/identity/pkg/cookie"
	"github.com/kfchess/identity/pkg/logger"
)

// Manager drives the session life-cycle over a Store and a Transport.
type Manager struct {
	store         Store
	transport     Transport
	config        Config
	cookieManager *cookie.Manager
	cookieOptions []cookie.Option
	logger        *slog.Logger
}

// New builds a Manager. Without WithStore a MemoryStore is used; without
// WithTransport a cookie manager must be supplied.
func New(opts ...Option) *Manager {
	m := &Manager{
		config: DefaultConfig(),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMemoryStore(m.config.CleanupInterval)
	}
	if m.transport == nil {
		if m.cookieManager == nil {
			panic("session: cookie manager is required when using default cookie transport")
		}
		m.transport = NewCookieTransport(m.cookieManager, m.config.CookieName, m.config.SecureCookies, m.cookieOptions...)
	}
	return m
}

// Get loads the session referenced by the request, if any.
func (m *Manager) Get(ctx context.Context, r *http.Request) (*Session, error) {
	token, err := m.transport.GetToken(r)
	if err != nil {
		return nil, err
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.IsExpired() {
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Ensure returns the request's session, creating an anonymous one when the
// request carries none or an unusable one.
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	s, err := m.Get(ctx, r)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
		m.logger.WarnContext(ctx, "session lookup failed, starting a new one",
			logger.Component("session"), logger.Error(err))
	}

	idle, max := m.config.Timeouts(false)
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	s = newSession(token, min(idle, max))
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	if err := m.transport.SetToken(w, s.Token, idle); err != nil {
		_ = m.store.Delete(ctx, s.Token)
		return nil, err
	}
	return s, nil
}

// Save persists data changes and slides the idle expiry.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	idle, max := m.config.Timeouts(s.IsAuthenticated())
	s.ExpiresAt = expiry(s.CreatedAt, time.Now(), idle, max)
	s.Touch()
	return m.store.Update(ctx, s)
}

// Authenticate binds userID to s and rotates its token. Data is kept. On
// failure s keeps its previous user and token.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, s *Session, userID int64) error {
	prev := s.UserID
	s.UserID = &userID
	if err := m.rotate(ctx, w, s); err != nil {
		s.UserID = prev
		return err
	}
	return nil
}

// Deauthenticate unbinds the user, drops all data and rotates the token.
func (m *Manager) Deauthenticate(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.UserID = nil
	s.Clear()
	return m.rotate(ctx, w, s)
}

func (m *Manager) rotate(ctx context.Context, w http.ResponseWriter, s *Session) error {
	token, err := generateToken()
	if err != nil {
		return err
	}
	old := s.Token

	idle, max := m.config.Timeouts(s.IsAuthenticated())
	s.Token = token
	s.ExpiresAt = expiry(s.CreatedAt, time.Now(), idle, max)
	s.Touch()

	if err := m.store.Create(ctx, s); err != nil {
		s.Token = old
		return err
	}
	if old != "" {
		if err := m.store.Delete(ctx, old); err != nil {
			m.logger.WarnContext(ctx, "failed to delete rotated session",
				logger.Component("session"), logger.Error(err))
		}
	}
	return m.transport.SetToken(w, s.Token, idle)
}

// expiry is the earlier of now+idle and createdAt+max.
func expiry(createdAt, now time.Time, idle, max time.Duration) time.Time {
	idleAt := now.Add(idle)
	maxAt := createdAt.Add(max)
	if maxAt.Before(idleAt) {
		return maxAt
	}
	return idleAt
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
