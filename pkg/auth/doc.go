// Package auth implements the browser side of an OpenID Connect login.
//
// A Client drives the flow against a ProviderAdapter. BeginLogin stores the
// pending return target, a fresh state, a nonce and the callback URL in the
// caller's session and returns the provider's consent URL. CompleteLogin
// consumes the state and the nonce, exchanges the authorization code and
// returns the verified ExternalIdentity. Neither call persists the session;
// the caller saves it once the request is done.
//
// # Provider
//
// NewOIDCAdapter discovers the provider from its issuer and verifies the
// returned id_token (signature, audience, expiry and nonce) with
// github.com/coreos/go-oidc/v3:
//
//	adapter, err := auth.NewOIDCAdapter(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	client := auth.NewClient(adapter, auth.WithSecureHosts(cfg.SecureHosts...))
//
// # Return targets
//
// Only same-origin relative paths are honoured as post-login targets.
// Absolute URLs, scheme-relative paths and backslash tricks fall back to the
// default landing page.
//
// # Errors
//
// All failures wrap one of the package sentinels. FailureKind maps an error to
// a short stable label suitable for logs and metrics.
package auth
