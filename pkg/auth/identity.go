package auth

import "context"

// ExternalIdentity is what the identity provider vouches for after a
// successful exchange. It is never persisted.
type ExternalIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// ProviderAdapter hides the provider specific parts of the authorization code
// flow.
type ProviderAdapter interface {
	ProviderID() string
	// AuthURL returns the consent page URL for the given state and nonce.
	AuthURL(state, nonce, redirectURL string) string
	// Exchange trades an authorization code for a verified identity.
	Exchange(ctx context.Context, code, nonce, redirectURL string) (ExternalIdentity, error)
}
