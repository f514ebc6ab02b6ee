package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kfchess/identity/pkg/csrf"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/session"
	"github.com/kfchess/identity/svc/directory"
)

// Sessions ties browser sessions to directory users.
type Sessions struct {
	manager *session.Manager
	dir     directory.Directory
	logger  *slog.Logger
}

func NewSessions(manager *session.Manager, dir directory.Directory, log *slog.Logger) *Sessions {
	if log == nil {
		log = logger.Discard()
	}
	return &Sessions{manager: manager, dir: dir, logger: log}
}

// IssueCSRFToken returns the session's CSRF token, generating and persisting
// one on first use. A stored value without the token shape is replaced.
func (s *Sessions) IssueCSRFToken(ctx context.Context, sess *session.Session) (string, error) {
	if token, ok := sess.GetString(csrf.SessionKey); ok && csrf.WellFormed(token) {
		return token, nil
	}
	token, err := csrf.Generate()
	if err != nil {
		return "", err
	}
	sess.Set(csrf.SessionKey, token)
	if err := s.manager.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("save csrf token: %w", err)
	}
	return token, nil
}

// StartAuthenticatedSession binds user to sess under a fresh token. Pending
// session data survives the rotation.
func (s *Sessions) StartAuthenticatedSession(ctx context.Context, w http.ResponseWriter, sess *session.Session, user *directory.User) error {
	if err := s.manager.Authenticate(ctx, w, sess, user.ID); err != nil {
		return fmt.Errorf("authenticate session: %w", err)
	}
	s.logger.InfoContext(ctx, "user logged in",
		logger.Component("account"),
		logger.UserID(user.ID),
	)
	return nil
}

// EndSession logs the session out, dropping all data, and returns the CSRF
// token issued for the now anonymous session.
func (s *Sessions) EndSession(ctx context.Context, w http.ResponseWriter, sess *session.Session) (string, error) {
	var userID any
	if sess.IsAuthenticated() {
		userID = *sess.UserID
	}
	if err := s.manager.Deauthenticate(ctx, w, sess); err != nil {
		return "", fmt.Errorf("deauthenticate session: %w", err)
	}
	if userID != nil {
		s.logger.InfoContext(ctx, "user logged out",
			logger.Component("account"),
			logger.UserID(userID),
		)
	}
	return s.IssueCSRFToken(ctx, sess)
}

// CurrentIdentity returns the user bound to sess, or nil for anonymous
// sessions and users that no longer exist.
func (s *Sessions) CurrentIdentity(ctx context.Context, sess *session.Session) (*directory.User, error) {
	if !sess.IsAuthenticated() {
		return nil, nil
	}
	u, err := s.dir.GetUserByID(ctx, *sess.UserID)
	if errors.Is(err, directory.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}
	return u, nil
}
