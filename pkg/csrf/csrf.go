// Package csrf issues and checks per-session anti-forgery tokens.
//
// A token is 24 characters from A-Z0-9 kept in session data under
// SessionKey. The single-page client reads it from /api/user/info and echoes
// it in the X-CSRF-Token header on state-changing requests.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
)

const (
	SessionKey  = "_csrf_token"
	HeaderName  = "X-CSRF-Token"
	TokenLength = 24

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Bytes at or above this bound are rejected so that every symbol is
	// equally likely.
	unbiasedBound = 256 - 256%len(alphabet)
)

var ErrGenerate = errors.New("csrf.generate_failed")

// Generate returns a fresh token from crypto/rand.
func Generate() (string, error) {
	out := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength*2)
	for len(out) < TokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Join(ErrGenerate, err)
		}
		for _, b := range buf {
			if int(b) >= unbiasedBound {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out), nil
}

// Equal compares a presented token with the stored one in constant time.
// An empty stored token never matches.
func Equal(stored, presented string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// WellFormed reports whether s has the token shape.
func WellFormed(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
