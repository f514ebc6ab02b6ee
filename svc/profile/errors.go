package profile

import "errors"

var (
	ErrNotAuthenticated = errors.New("profile: user is not logged in")
	ErrUserNotFound     = errors.New("profile: user does not exist")
	ErrUsernameTooShort = errors.New("profile: username too short")
	ErrUsernameTooLong  = errors.New("profile: username too long")
	ErrUsernameTaken    = errors.New("profile: username already taken")
	ErrUpdateFailed     = errors.New("profile: failed to update user")
	ErrFileTooLarge     = errors.New("profile: file too large")
	ErrUploadFailed     = errors.New("profile: failed to upload profile picture")
)

// Message returns the user-facing text for err. Unknown errors map to
// fallback.
func Message(err error, fallback string) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "User is not logged in."
	case errors.Is(err, ErrUserNotFound):
		return "User does not exist."
	case errors.Is(err, ErrUsernameTooShort):
		return "Username too short."
	case errors.Is(err, ErrUsernameTooLong):
		return "Username too long."
	case errors.Is(err, ErrUsernameTaken):
		return "Username already taken."
	case errors.Is(err, ErrFileTooLarge):
		return "File is too large (max size 64KB)."
	case errors.Is(err, ErrUploadFailed):
		return "Failed to upload profile picture."
	case errors.Is(err, ErrUpdateFailed):
		return "Failed to update user."
	default:
		return fallback
	}
}
