package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig holds the OpenID Connect client settings.
type OIDCConfig struct {
	Provider     string        `env:"OIDC_PROVIDER" envDefault:"google"`
	Issuer       string        `env:"OIDC_ISSUER" envDefault:"https://accounts.google.com"`
	ClientID     string        `env:"GOOGLE_CLIENT_ID,required"`
	ClientSecret string        `env:"GOOGLE_CLIENT_SECRET,required"`
	Scopes       []string      `env:"OIDC_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
	HTTPTimeout  time.Duration `env:"OIDC_HTTP_TIMEOUT" envDefault:"10s"`
	SecureHosts  []string      `env:"AUTH_SECURE_HOSTS" envSeparator:"," envDefault:"fly.dev,kfchess.com"`
}

// OIDCAdapter implements ProviderAdapter for any discoverable OpenID Connect
// issuer.
type OIDCAdapter struct {
	provider   string
	oauth      oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
}

var _ ProviderAdapter = (*OIDCAdapter)(nil)

type oidcClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// NewOIDCAdapter discovers the issuer's endpoints and signing keys.
func NewOIDCAdapter(ctx context.Context, cfg OIDCConfig) (*OIDCAdapter, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.HTTPTimeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	op, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), cfg.Issuer)
	if err != nil {
		return nil, errors.Join(ErrProviderError, fmt.Errorf("discover %s: %w", cfg.Issuer, err))
	}

	verifier := op.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newOIDCAdapter(cfg, op.Endpoint(), verifier, httpClient), nil
}

func newOIDCAdapter(cfg OIDCConfig, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier, httpClient *http.Client) *OIDCAdapter {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	name := cfg.Provider
	if name == "" {
		name = "oidc"
	}
	return &OIDCAdapter{
		provider: name,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		verifier:   verifier,
		httpClient: httpClient,
	}
}

func (a *OIDCAdapter) ProviderID() string {
	return a.provider
}

func (a *OIDCAdapter) AuthURL(state, nonce, redirectURL string) string {
	cfg := a.oauth
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange redeems the code and verifies the returned id_token, including its
// nonce.
func (a *OIDCAdapter) Exchange(ctx context.Context, code, nonce, redirectURL string) (ExternalIdentity, error) {
	cfg := a.oauth
	cfg.RedirectURL = redirectURL

	ctx = oidc.ClientContext(ctx, a.httpClient)
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return ExternalIdentity{}, errors.Join(ErrProviderError, fmt.Errorf("exchange code: %w", err))
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return ExternalIdentity{}, ErrMissingUserInfo
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return ExternalIdentity{}, errors.Join(ErrProviderError, fmt.Errorf("verify id_token: %w", err))
	}
	if nonce == "" || subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonce)) != 1 {
		return ExternalIdentity{}, errors.Join(ErrProviderError, errors.New("id_token nonce mismatch"))
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return ExternalIdentity{}, errors.Join(ErrMissingUserInfo, err)
	}
	if claims.Email == "" {
		return ExternalIdentity{}, ErrMissingEmail
	}

	subject := claims.Subject
	if subject == "" {
		subject = idToken.Subject
	}
	return ExternalIdentity{
		Subject:       subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}
