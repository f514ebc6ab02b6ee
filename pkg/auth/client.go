package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/session"
)

// Session data keys owned by the login flow.
const (
	SessionKeyReturnURL = "oauth_next_url"
	SessionKeyState     = "oauth_state"
	SessionKeyNonce     = "oauth_nonce"
	SessionKeyCallback  = "oauth_callback_url"
)

const (
	DefaultReturnURL    = "/"
	DefaultCallbackPath = "/api/user/oauth2callback"
)

// LoginRedirect tells the caller where to send the browser.
type LoginRedirect struct {
	URL                  string
	AlreadyAuthenticated bool
}

// Client runs the authorization code flow on top of a ProviderAdapter.
type Client struct {
	adapter      ProviderAdapter
	secureHosts  []string
	callbackPath string
	logger       *slog.Logger
}

type ClientOption func(*Client)

// WithSecureHosts lists hosts (and their subdomains) whose callback URL is
// always built with https.
func WithSecureHosts(hosts ...string) ClientOption {
	return func(c *Client) {
		c.secureHosts = c.secureHosts[:0]
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				c.secureHosts = append(c.secureHosts, strings.TrimPrefix(h, "."))
			}
		}
	}
}

func WithCallbackPath(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.callbackPath = path
		}
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(adapter ProviderAdapter, opts ...ClientOption) *Client {
	c := &Client{
		adapter:      adapter,
		secureHosts:  []string{"fly.dev", "kfchess.com"},
		callbackPath: DefaultCallbackPath,
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ProviderID() string {
	return c.adapter.ProviderID()
}

// BeginLogin records the pending login in sess and returns the consent page
// URL. An already authenticated session is sent straight to returnURL.
func (c *Client) BeginLogin(ctx context.Context, sess *session.Session, returnURL, callbackURL string) (LoginRedirect, error) {
	target := SafeReturnURL(returnURL, DefaultReturnURL)
	if sess.IsAuthenticated() {
		return LoginRedirect{URL: target, AlreadyAuthenticated: true}, nil
	}

	state, err := randomToken(32)
	if err != nil {
		return LoginRedirect{}, err
	}
	nonce, err := randomToken(16)
	if err != nil {
		return LoginRedirect{}, err
	}

	sess.Set(SessionKeyReturnURL, target)
	sess.Set(SessionKeyState, state)
	sess.Set(SessionKeyNonce, nonce)
	sess.Set(SessionKeyCallback, callbackURL)

	c.logger.DebugContext(ctx, "login started",
		logger.Component("auth"),
		logger.Provider(c.adapter.ProviderID()),
	)
	return LoginRedirect{URL: c.adapter.AuthURL(state, nonce, callbackURL)}, nil
}

// CallbackURL returns the absolute callback URL for r's host.
func (c *Client) CallbackURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	host := r.Host
	if c.isSecureHost(host) {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: host, Path: c.callbackPath}).String()
}

func (c *Client) isSecureHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	for _, secure := range c.secureHosts {
		if host == secure || strings.HasSuffix(host, "."+secure) {
			return true
		}
	}
	return false
}

// CompleteLogin consumes the pending state and exchanges the code carried in
// query. The state is single-use whatever the outcome.
func (c *Client) CompleteLogin(ctx context.Context, sess *session.Session, query url.Values) (ExternalIdentity, error) {
	state, _ := sess.Pop(SessionKeyState)
	nonce, _ := sess.Pop(SessionKeyNonce)
	callbackURL, _ := sess.Pop(SessionKeyCallback)

	if e := query.Get("error"); e != "" {
		return ExternalIdentity{}, fmt.Errorf("%w: %s", ErrProviderError, e)
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(query.Get("state"))) != 1 {
		return ExternalIdentity{}, ErrInvalidState
	}
	code := query.Get("code")
	if code == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing authorization code", ErrProviderError)
	}

	identity, err := c.adapter.Exchange(ctx, code, nonce, callbackURL)
	if err != nil {
		return ExternalIdentity{}, err
	}
	if identity.Email == "" {
		return ExternalIdentity{}, ErrMissingEmail
	}
	// Accounts are keyed by email, so an unverified claim could take over one.
	if !identity.EmailVerified {
		return ExternalIdentity{}, ErrEmailUnverified
	}
	return identity, nil
}

// TakeReturnURL pops the pending return target from sess.
func (c *Client) TakeReturnURL(sess *session.Session, fallback string) string {
	target, _ := sess.Pop(SessionKeyReturnURL)
	return SafeReturnURL(target, fallback)
}

// SafeReturnURL returns raw when it is a same-origin relative path and
// fallback otherwise. An empty fallback means "/".
func SafeReturnURL(raw, fallback string) string {
	if fallback == "" {
		fallback = DefaultReturnURL
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return fallback
	}
	if strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return fallback
	}
	for _, r := range raw {
		if r < 0x20 || r == 0x7f {
			return fallback
		}
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return raw
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
