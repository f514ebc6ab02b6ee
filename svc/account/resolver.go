// Package account maps verified external identities onto local users and
// manages the authenticated part of a browser session.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kfchess/identity/pkg/auth"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/metrics"
	"github.com/kfchess/identity/pkg/randomname"
	"github.com/kfchess/identity/svc/directory"
)

var ErrUsernameGenerationExhausted = errors.New("account: could not generate a unique username")

// defaultCreateAttempts bounds the create retries caused by a username taken
// between the existence check and the insert.
const defaultCreateAttempts = 5

// Resolver finds or provisions the local user for an external identity.
type Resolver struct {
	dir            directory.Directory
	names          *randomname.Generator
	createAttempts int
	metrics        metrics.Recorder
	logger         *slog.Logger
}

type ResolverOption func(*Resolver)

func WithNameGenerator(g *randomname.Generator) ResolverOption {
	return func(r *Resolver) {
		if g != nil {
			r.names = g
		}
	}
}

func WithCreateAttempts(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.createAttempts = n
		}
	}
}

func WithMetrics(m metrics.Recorder) ResolverOption {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewResolver(dir directory.Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dir:            dir,
		names:          randomname.New(),
		createAttempts: defaultCreateAttempts,
		metrics:        metrics.Noop{},
		logger:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveOrProvision returns the user registered under identity's email,
// creating one with a random username on first login. The bool reports
// whether the user was created by this call.
func (r *Resolver) ResolveOrProvision(ctx context.Context, identity auth.ExternalIdentity) (*directory.User, bool, error) {
	if identity.Email == "" {
		return nil, false, auth.ErrMissingEmail
	}

	u, err := r.dir.GetUserByEmail(ctx, identity.Email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, directory.ErrUserNotFound) {
		return nil, false, fmt.Errorf("lookup user by email: %w", err)
	}

	for attempt := 1; attempt <= r.createAttempts; attempt++ {
		username, err := r.names.GenerateUnique(ctx, r.usernameAvailable)
		if err != nil {
			if errors.Is(err, randomname.ErrExhausted) {
				return nil, false, errors.Join(ErrUsernameGenerationExhausted, err)
			}
			return nil, false, fmt.Errorf("generate username: %w", err)
		}

		u, err := r.dir.CreateUser(ctx, identity.Email, username, nil, map[string]any{})
		switch {
		case err == nil:
			r.metrics.UserProvisioned()
			r.logger.InfoContext(ctx, "user provisioned",
				logger.Component("account"),
				logger.UserID(u.ID),
				logger.Username(u.Username),
			)
			return u, true, nil

		case errors.Is(err, directory.ErrEmailTaken):
			// A concurrent first login for the same email won the insert.
			u, err := r.dir.GetUserByEmail(ctx, identity.Email)
			if err != nil {
				return nil, false, fmt.Errorf("lookup user after concurrent create: %w", err)
			}
			return u, false, nil

		case errors.Is(err, directory.ErrUsernameTaken):
			r.metrics.UsernameCollision()
			r.logger.DebugContext(ctx, "username taken at create, retrying",
				logger.Component("account"),
				logger.Username(username),
				logger.Attempt(attempt),
			)

		default:
			return nil, false, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, false, ErrUsernameGenerationExhausted
}

func (r *Resolver) usernameAvailable(ctx context.Context, name string) (bool, error) {
	exists, err := directory.UsernameExists(ctx, r.dir, name)
	if err != nil {
		return false, err
	}
	if exists {
		r.metrics.UsernameCollision()
	}
	return !exists, nil
}
