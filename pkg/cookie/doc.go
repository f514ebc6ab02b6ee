// Package cookie writes and reads AES-GCM sealed HTTP cookies.
//
// A Manager is built from one or more secrets. The first secret seals new
// values; every secret is tried when opening, so secrets can be rotated by
// prepending the new one and keeping the old one until existing cookies
// expire. The cookie name is bound as additional data, so a sealed value
// copied into a different cookie fails to open.
//
//	cm, err := cookie.New(strings.Split(cfg.Secrets, ","), cookie.WithSecure(true))
//	_ = cm.SetEncrypted(w, "kfchess_session", token, cookie.WithMaxAge(86400))
//	token, err := cm.GetEncrypted(r, "kfchess_session")
//
// Defaults are Path "/", HttpOnly and SameSite=Lax.
package cookie
