package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kfchess/identity/pkg/logger"
)

type sessionContextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}

func MustFromContext(ctx context.Context) *Session {
	s, ok := FromContext(ctx)
	if !ok {
		panic("session: not found in context")
	}
	return s
}

// Middleware ensures every request carries a session and stores it in the
// request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Ensure(r.Context(), w, r)
		if err != nil {
			m.logger.ErrorContext(r.Context(), "failed to establish session",
				logger.Component("session"), logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// LoggerExtractor adds the authenticated user id to log records.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		s, ok := FromContext(ctx)
		if !ok || !s.IsAuthenticated() {
			return slog.Attr{}, false
		}
		return logger.UserID(*s.UserID), true
	}
}
