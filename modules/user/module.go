// Package user mounts the player-facing login and profile endpoints.
//
//	h := user.New(user.Options{...})
//	r := chi.NewRouter()
//	r.Mount("/", h.Handle())
//
// Handle installs the session middleware and CSRF enforcement itself, so the
// router works standalone.
package user

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kfchess/identity/pkg/auth"
	"github.com/kfchess/identity/pkg/csrf"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/metrics"
	"github.com/kfchess/identity/pkg/session"
	"github.com/kfchess/identity/svc/account"
	"github.com/kfchess/identity/svc/history"
	"github.com/kfchess/identity/svc/profile"
)

// Options lists the module's collaborators. Metrics and Logger are optional.
type Options struct {
	Auth     *auth.Client
	Resolver *account.Resolver
	Sessions *account.Sessions
	Manager  *session.Manager
	Profile  *profile.Service
	History  history.Store
	CSRF     csrf.Config
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

type Handler struct {
	auth     *auth.Client
	resolver *account.Resolver
	sessions *account.Sessions
	manager  *session.Manager
	profile  *profile.Service
	history  history.Store
	csrf     csrf.Config
	metrics  metrics.Recorder
	logger   *slog.Logger
}

func New(opts Options) *Handler {
	h := &Handler{
		auth:     opts.Auth,
		resolver: opts.Resolver,
		sessions: opts.Sessions,
		manager:  opts.Manager,
		profile:  opts.Profile,
		history:  opts.History,
		csrf:     opts.CSRF,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if h.metrics == nil {
		h.metrics = metrics.Noop{}
	}
	if h.logger == nil {
		h.logger = logger.Discard()
	}
	return h
}

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(h.manager.Middleware)
	r.Use(csrf.Middleware(h.csrf, h.logger))

	r.Get("/login", h.login)
	r.Post("/logout", h.logout)

	r.Route("/api/user", func(r chi.Router) {
		r.Get("/oauth2callback", h.callback)
		r.Get("/info", h.info)
		r.Post("/update", h.update)
		r.Post("/uploadPic", h.uploadPic)
		r.Get("/history", h.gameHistory)
		r.Get("/campaign", h.campaign)
	})
	return r
}
