package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kfchess/identity/modules/user"
	"github.com/kfchess/identity/pkg/auth"
	"github.com/kfchess/identity/pkg/config"
	"github.com/kfchess/identity/pkg/cookie"
	"github.com/kfchess/identity/pkg/csrf"
	"github.com/kfchess/identity/pkg/httpserver"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/metrics"
	"github.com/kfchess/identity/pkg/requestid"
	"github.com/kfchess/identity/pkg/session"
	"github.com/kfchess/identity/svc/account"
	"github.com/kfchess/identity/svc/profile"
)

// appConfig selects the backends. Each backend's own settings are loaded
// only when it is selected.
type appConfig struct {
	DirectoryBackend string        `env:"DIRECTORY_BACKEND" envDefault:"postgres"`
	HistoryBackend   string        `env:"HISTORY_BACKEND" envDefault:"postgres"`
	StorageBackend   string        `env:"STORAGE_BACKEND" envDefault:"s3"`
	ReadyTimeout     time.Duration `env:"READINESS_TIMEOUT" envDefault:"3s"`
	MetricsPath      string        `env:"METRICS_PATH" envDefault:"/metrics"`
}

func (c appConfig) Validate() error {
	switch c.DirectoryBackend {
	case backendPostgres, backendMemory:
	default:
		return fmt.Errorf("unknown DIRECTORY_BACKEND %q", c.DirectoryBackend)
	}
	switch c.HistoryBackend {
	case backendPostgres, backendMongo, backendMemory:
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend)
	}
	switch c.StorageBackend {
	case backendS3, backendLocal:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// run installs the configured logger as default once it is built.
		slog.ErrorContext(ctx, "identity server stopped", logger.Component("server"), logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}

	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return err
	}
	opts := append(logger.FromConfig(logCfg),
		logger.WithContextExtractors(requestid.LoggerExtractor(), session.LoggerExtractor()))
	lg := logger.New(opts...)
	logger.SetAsDefault(lg)

	var (
		appCfg    appConfig
		httpCfg   httpserver.Config
		cookieCfg cookie.Config
		sessCfg   session.Config
		csrfCfg   csrf.Config
		oidcCfg   auth.OIDCConfig
	)
	for _, load := range []func() error{
		func() error { return config.Load(&appCfg) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&cookieCfg) },
		func() error { return config.Load(&sessCfg) },
		func() error { return config.Load(&csrfCfg) },
		func() error { return config.Load(&oidcCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	b := &backends{log: lg}
	defer b.close()

	dir, err := b.directory(ctx, appCfg.DirectoryBackend)
	if err != nil {
		return err
	}
	hist, err := b.history(ctx, appCfg.HistoryBackend)
	if err != nil {
		return err
	}
	storage, err := b.storage(ctx, appCfg.StorageBackend)
	if err != nil {
		return err
	}
	store, err := b.sessionStore(ctx, sessCfg)
	if err != nil {
		return err
	}

	cookies, err := cookie.New(cookieCfg.SecretList(), cookie.WithDomain(cookieCfg.Domain), cookie.WithSecure(cookieCfg.Secure))
	if err != nil {
		return err
	}
	manager := session.New(
		session.WithStore(store),
		session.WithConfig(sessCfg),
		session.WithCookieManager(cookies),
		session.WithLogger(lg),
	)

	adapter, err := auth.NewOIDCAdapter(ctx, oidcCfg)
	if err != nil {
		return err
	}
	authClient := auth.NewClient(adapter, auth.WithSecureHosts(oidcCfg.SecureHosts...), auth.WithLogger(lg))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	sessions := account.NewSessions(manager, dir, lg)
	h := user.New(user.Options{
		Auth:     authClient,
		Resolver: account.NewResolver(dir, account.WithMetrics(rec), account.WithLogger(lg)),
		Sessions: sessions,
		Manager:  manager,
		Profile:  profile.NewService(dir, sessions, storage, profile.WithMetrics(rec), profile.WithLogger(lg)),
		History:  hist,
		CSRF:     csrfCfg,
		Metrics:  rec,
		Logger:   lg,
	})

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(lg, appCfg.ReadyTimeout, b.checks...))
	r.Handle(appCfg.MetricsPath, metrics.Handler(reg))
	if b.uploadsDir != "" {
		r.Handle(b.uploadsPrefix+"*", http.StripPrefix(b.uploadsPrefix, http.FileServer(http.Dir(b.uploadsDir))))
	}
	r.Mount("/", h.Handle())

	lg.InfoContext(ctx, "identity server starting",
		slog.String("directory", appCfg.DirectoryBackend),
		slog.String("history", appCfg.HistoryBackend),
		slog.String("storage", appCfg.StorageBackend),
		slog.String("sessions", sessCfg.Backend),
		logger.Provider(adapter.ProviderID()),
	)

	err = httpserver.New(httpCfg, httpserver.WithLogger(lg)).Run(ctx, r)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
