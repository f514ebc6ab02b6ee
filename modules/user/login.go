package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kfchess/identity/pkg/auth"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/session"
	"github.com/kfchess/identity/svc/account"
)

const landingPage = "/"

// Failure kinds beyond the ones pkg/auth reports.
const (
	kindUsernameExhausted = "username_exhausted"
	kindProvisionFailed   = "provision_failed"
	kindSessionFailed     = "session_failed"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.MustFromContext(ctx)

	redirect, err := h.auth.BeginLogin(ctx, sess, r.URL.Query().Get("next"), h.auth.CallbackURL(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start login", logger.Component("user"), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !redirect.AlreadyAuthenticated {
		if err := h.manager.Save(ctx, sess); err != nil {
			h.logger.ErrorContext(ctx, "failed to save login state", logger.Component("user"), logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// callback always redirects. Failures are logged and counted, never shown.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.MustFromContext(ctx)
	next := h.auth.TakeReturnURL(sess, landingPage)

	if sess.IsAuthenticated() {
		h.saveQuietly(ctx, sess)
		http.Redirect(w, r, next, http.StatusFound)
		return
	}

	if err := h.completeLogin(ctx, w, r, sess); err != nil {
		kind := loginFailureKind(err)
		h.metrics.LoginCompleted(kind)
		h.logger.WarnContext(ctx, "login failed",
			logger.Component("user"),
			logger.Provider(h.auth.ProviderID()),
			logger.FailureKind(kind),
			logger.Error(err),
		)
		h.saveQuietly(ctx, sess)
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (h *Handler) completeLogin(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	identity, err := h.auth.CompleteLogin(ctx, sess, r.URL.Query())
	if err != nil {
		return err
	}

	u, created, err := h.resolver.ResolveOrProvision(ctx, identity)
	if err != nil {
		return err
	}
	if err := h.sessions.StartAuthenticatedSession(ctx, w, sess, u); err != nil {
		return errors.Join(errSession, err)
	}

	h.metrics.LoginCompleted("success")
	h.logger.InfoContext(ctx, "login completed",
		logger.Component("user"),
		logger.Provider(h.auth.ProviderID()),
		logger.UserID(u.ID),
		slog.Bool("created", created),
	)
	return nil
}

var errSession = errors.New("user: could not establish authenticated session")

func loginFailureKind(err error) string {
	switch {
	case errors.Is(err, errSession):
		return kindSessionFailed
	case errors.Is(err, account.ErrUsernameGenerationExhausted):
		return kindUsernameExhausted
	}
	if kind := auth.FailureKind(err); kind != auth.KindInternal {
		return kind
	}
	return kindProvisionFailed
}

func (h *Handler) saveQuietly(ctx context.Context, sess *session.Session) {
	if err := h.manager.Save(ctx, sess); err != nil {
		h.logger.WarnContext(ctx, "failed to save session", logger.Component("user"), logger.Error(err))
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.MustFromContext(ctx)

	token, err := h.sessions.EndSession(ctx, w, sess)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to end session", logger.Component("user"), logger.Error(err))
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loggedIn":  false,
		"csrfToken": token,
	})
}
