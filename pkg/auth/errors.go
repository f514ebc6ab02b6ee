package auth

import (
	"context"
	"errors"
)

var (
	ErrProviderError   = errors.New("auth: identity provider error")
	ErrMissingUserInfo = errors.New("auth: identity provider returned no user info")
	ErrMissingEmail    = errors.New("auth: identity provider returned no email")
	ErrInvalidState    = errors.New("auth: invalid or missing oauth state")
	ErrEmailUnverified = errors.New("auth: identity provider has not verified the email")
)

// Failure kinds reported by FailureKind.
const (
	KindProvider     = "provider_error"
	KindMissingInfo  = "missing_user_info"
	KindMissingEmail = "missing_email"
	KindUnverified   = "email_unverified"
	KindInvalidState = "invalid_state"
	KindCanceled     = "canceled"
	KindInternal     = "internal"
)

// FailureKind maps err to a stable label. Nil maps to "".
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrMissingEmail):
		return KindMissingEmail
	case errors.Is(err, ErrEmailUnverified):
		return KindUnverified
	case errors.Is(err, ErrMissingUserInfo):
		return KindMissingInfo
	case errors.Is(err, ErrProviderError):
		return KindProvider
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
