package session

import "time"

type Config struct {
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"kfchess_session"`

	AnonIdleTimeout time.Duration `env:"SESSION_ANON_IDLE_TIMEOUT" envDefault:"24h"`
	AnonMaxLifetime time.Duration `env:"SESSION_ANON_MAX_LIFETIME" envDefault:"168h"`

	AuthIdleTimeout time.Duration `env:"SESSION_AUTH_IDLE_TIMEOUT" envDefault:"720h"`
	AuthMaxLifetime time.Duration `env:"SESSION_AUTH_MAX_LIFETIME" envDefault:"2160h"`

	// CleanupInterval applies to the memory store only; 0 disables it.
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`

	SecureCookies bool `env:"SESSION_SECURE_COOKIES" envDefault:"false"`

	// Backend selects the store built by cmd/server: "memory" or "redis".
	Backend string `env:"SESSION_BACKEND" envDefault:"memory"`
}

func DefaultConfig() Config {
	return Config{
		CookieName:      "kfchess_session",
		AnonIdleTimeout: 24 * time.Hour,
		AnonMaxLifetime: 7 * 24 * time.Hour,
		AuthIdleTimeout: 30 * 24 * time.Hour,
		AuthMaxLifetime: 90 * 24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
		Backend:         "memory",
	}
}

// Timeouts returns idle and max lifetime for the given session state.
func (c Config) Timeouts(authenticated bool) (idle, max time.Duration) {
	if authenticated {
		return c.AuthIdleTimeout, c.AuthMaxLifetime
	}
	return c.AnonIdleTimeout, c.AnonMaxLifetime
}
