// Package profile serves and edits the logged-in player's profile.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kfchess/identity/pkg/file"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/metrics"
	"github.com/kfchess/identity/pkg/session"
	"github.com/kfchess/identity/svc/account"
	"github.com/kfchess/identity/svc/directory"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 24

	// MaxAvatarBytes is the largest accepted profile picture.
	MaxAvatarBytes = 64 * 1024

	avatarPrefix = "profile-pics/"
)

// SelfInfo answers "who am I" for the current session.
type SelfInfo struct {
	LoggedIn  bool                `json:"loggedIn"`
	CSRFToken string              `json:"csrfToken"`
	User      *directory.SelfView `json:"user,omitempty"`
}

type Service struct {
	dir      directory.Directory
	sessions *account.Sessions
	storage  file.Storage
	metrics  metrics.Recorder
	logger   *slog.Logger
}

type Option func(*Service)

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(dir directory.Directory, sessions *account.Sessions, storage file.Storage, opts ...Option) *Service {
	s := &Service{
		dir:      dir,
		sessions: sessions,
		storage:  storage,
		metrics:  metrics.Noop{},
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSelf reports the session's login state, its CSRF token and, when
// logged in, the user including email.
func (s *Service) GetSelf(ctx context.Context, sess *session.Session) (SelfInfo, error) {
	token, err := s.sessions.IssueCSRFToken(ctx, sess)
	if err != nil {
		return SelfInfo{}, err
	}
	u, err := s.sessions.CurrentIdentity(ctx, sess)
	if err != nil {
		return SelfInfo{}, err
	}
	if u == nil {
		return SelfInfo{LoggedIn: false, CSRFToken: token}, nil
	}
	self := u.Self()
	return SelfInfo{LoggedIn: true, CSRFToken: token, User: &self}, nil
}

// GetOthers returns the public view of each existing user in ids.
func (s *Service) GetOthers(ctx context.Context, ids []int64) (map[int64]directory.PublicView, error) {
	users, err := s.dir.GetUsersByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return directory.PublicViews(users), nil
}

// UpdateProfile changes the username. A nil username keeps the current one.
func (s *Service) UpdateProfile(ctx context.Context, sess *session.Session, username *string) (*directory.User, error) {
	u, err := s.currentUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	name := u.Username
	if username != nil {
		name = strings.TrimSpace(*username)
	}
	if err := ValidateUsername(name); err != nil {
		return nil, err
	}

	updated, err := s.dir.UpdateUser(ctx, u.ID, name, u.PictureURL)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, directory.ErrUsernameTaken):
		return nil, ErrUsernameTaken
	case errors.Is(err, directory.ErrUserNotFound):
		return nil, ErrUserNotFound
	default:
		s.logger.ErrorContext(ctx, "failed to update user",
			logger.Component("profile"),
			logger.UserID(u.ID),
			logger.Error(err),
		)
		return nil, errors.Join(ErrUpdateFailed, err)
	}
}

// ValidateUsername checks the length bounds in characters.
func ValidateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	switch {
	case n < MinUsernameLength:
		return ErrUsernameTooShort
	case n > MaxUsernameLength:
		return ErrUsernameTooLong
	}
	return nil
}

// UploadAvatar stores data as the user's public profile picture.
func (s *Service) UploadAvatar(ctx context.Context, sess *session.Session, data []byte) (*directory.User, error) {
	u, err := s.currentUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxAvatarBytes {
		s.metrics.AvatarUploaded("too_large", len(data))
		return nil, ErrFileTooLarge
	}

	key := avatarPrefix + uuid.NewString()
	obj, err := s.storage.Put(ctx, key, data,
		file.WithPublicRead(),
		file.WithContentType(file.DetectContentType(data)),
	)
	if err != nil {
		return nil, s.uploadFailed(ctx, u.ID, key, len(data), err)
	}

	updated, err := s.dir.UpdateUser(ctx, u.ID, u.Username, &obj.URL)
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned avatar",
				logger.Component("profile"),
				logger.Key(key),
				logger.Error(delErr),
			)
		}
		return nil, s.uploadFailed(ctx, u.ID, key, len(data), err)
	}

	s.metrics.AvatarUploaded("ok", len(data))
	s.logger.InfoContext(ctx, "avatar uploaded",
		logger.Component("profile"),
		logger.UserID(u.ID),
		logger.Key(key),
		logger.Size(len(data)),
	)
	return updated, nil
}

func (s *Service) uploadFailed(ctx context.Context, userID int64, key string, size int, err error) error {
	s.metrics.AvatarUploaded("error", size)
	s.logger.ErrorContext(ctx, "failed to upload avatar",
		logger.Component("profile"),
		logger.UserID(userID),
		logger.Key(key),
		logger.Size(size),
		logger.Error(err),
	)
	return errors.Join(ErrUploadFailed, err)
}

func (s *Service) currentUser(ctx context.Context, sess *session.Session) (*directory.User, error) {
	if !sess.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	u, err := s.sessions.CurrentIdentity(ctx, sess)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
