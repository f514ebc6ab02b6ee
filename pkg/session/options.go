package session

import (
	"log/slog"

	"github.com/kfchess/identity/pkg/cookie"
)

type Option func(*Manager)

func WithStore(store Store) Option {
	return func(m *Manager) { m.store = store }
}

func WithTransport(t Transport) Option {
	return func(m *Manager) { m.transport = t }
}

func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithCookieManager enables the default cookie transport.
func WithCookieManager(cm *cookie.Manager, opts ...cookie.Option) Option {
	return func(m *Manager) {
		m.cookieManager = cm
		m.cookieOptions = opts
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
