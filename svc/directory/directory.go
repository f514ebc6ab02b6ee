// Package directory stores registered users.
//
// Email and username are both globally unique. Implementations report a
// violation with ErrEmailTaken or ErrUsernameTaken so callers can tell a
// concurrent first login from a username collision.
package directory

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound  = errors.New("directory: user not found")
	ErrEmailTaken    = errors.New("directory: email already registered")
	ErrUsernameTaken = errors.New("directory: username already taken")
)

// Directory is the user persistence contract.
type Directory interface {
	CreateUser(ctx context.Context, email, username string, pictureURL *string, metadata map[string]any) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// GetUsersByID returns the users that exist; unknown ids are omitted.
	GetUsersByID(ctx context.Context, ids []int64) (map[int64]*User, error)
	// UpdateUser replaces the mutable fields and returns the stored user.
	UpdateUser(ctx context.Context, id int64, username string, pictureURL *string) (*User, error)
}

// UsernameExists reports whether username is registered.
func UsernameExists(ctx context.Context, d Directory, username string) (bool, error) {
	_, err := d.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUserNotFound):
		return false, nil
	default:
		return false, err
	}
}
