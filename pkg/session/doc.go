// Package session manages server-side browser sessions.
//
// A Manager ties a Transport (an encrypted cookie carrying an opaque token)
// to a Store holding the Session record. Every visitor gets a session on first
// contact, anonymous until Authenticate binds a user id to it. Authenticate and
// Deauthenticate both rotate the token so a token observed before a privilege
// change cannot be replayed after it.
//
//	cm, _ := cookie.New(secrets)
//	mgr := session.New(
//	    session.WithCookieManager(cm),
//	    session.WithStore(session.NewRedisStore(rdb, "kfchess:session:")),
//	)
//	r.Use(mgr.Middleware)
//
//	sess := session.MustFromContext(r.Context())
//	sess.Set("oauth_state", state)
//	err := mgr.Save(r.Context(), sess)
//
// Stores must hand out copies: a *Session obtained from a Store is owned by
// the caller and only becomes visible to other requests after Save.
package session
