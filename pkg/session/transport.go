package session

import (
	"net/http"
	"time"

	"github.com/kfchess/identity/pkg/cookie"
)

// Transport moves the session token between client and server.
type Transport interface {
	GetToken(r *http.Request) (string, error)
	SetToken(w http.ResponseWriter, token string, ttl time.Duration) error
	ClearToken(w http.ResponseWriter)
}

// CookieTransport carries the token in an encrypted, HttpOnly, SameSite=Lax
// cookie.
type CookieTransport struct {
	cookies *cookie.Manager
	name    string
	opts    []cookie.Option
}

func NewCookieTransport(cm *cookie.Manager, name string, secure bool, opts ...cookie.Option) *CookieTransport {
	base := []cookie.Option{
		cookie.WithPath("/"),
		cookie.WithHTTPOnly(true),
		cookie.WithSameSite(http.SameSiteLaxMode),
		cookie.WithSecure(secure),
	}
	return &CookieTransport{cookies: cm, name: name, opts: append(base, opts...)}
}

func (t *CookieTransport) GetToken(r *http.Request) (string, error) {
	token, err := t.cookies.GetEncrypted(r, t.name)
	if err != nil || token == "" {
		return "", ErrSessionNotFound
	}
	return token, nil
}

func (t *CookieTransport) SetToken(w http.ResponseWriter, token string, ttl time.Duration) error {
	opts := append(append([]cookie.Option{}, t.opts...), cookie.WithMaxAge(int(ttl.Seconds())))
	return t.cookies.SetEncrypted(w, t.name, token, opts...)
}

func (t *CookieTransport) ClearToken(w http.ResponseWriter) {
	t.cookies.Delete(w, t.name, t.opts...)
}
