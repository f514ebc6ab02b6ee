// Package httpserver runs an http.Handler with configured timeouts and a
// graceful shutdown bound to a context, and provides liveness and readiness
// handlers.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server stopped", logger.Error(err))
//	}
//
// Run returns nil after a clean shutdown. Listen failures are wrapped in
// ErrStart and shutdown failures in ErrShutdown.
package httpserver
