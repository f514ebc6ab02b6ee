package csrf

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/session"
)

type Config struct {
	// Enforce rejects unsafe requests without a matching header. When false
	// tokens are still issued but never checked.
	Enforce bool `env:"CSRF_ENFORCE" envDefault:"true"`
}

const rejectMessage = "Invalid CSRF token."

// Middleware checks X-CSRF-Token on POST, PUT, PATCH and DELETE against the
// token stored in the request's session. It must run after the session
// middleware.
func Middleware(cfg Config, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enforce || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			var stored string
			if sess, ok := session.FromContext(r.Context()); ok {
				stored, _ = sess.GetString(SessionKey)
			}
			if !Equal(stored, r.Header.Get(HeaderName)) {
				log.WarnContext(r.Context(), "csrf validation failed",
					logger.Component("csrf"),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("has_stored_token", stored != ""),
				)
				reject(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func reject(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": rejectMessage,
	})
}
