package cookie

import (
	"net/http"
	"strings"
)

// Config holds env-driven cookie settings. Secrets is a comma separated list,
// newest first.
type Config struct {
	Secrets string `env:"COOKIE_SECRETS,required"`
	Domain  string `env:"COOKIE_DOMAIN" envDefault:""`
	Secure  bool   `env:"COOKIE_SECURE" envDefault:"false"`
}

// SecretList splits Secrets on commas and drops blanks.
func (c Config) SecretList() []string {
	var out []string
	for _, s := range strings.Split(c.Secrets, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

type Option func(*Options)

func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

func WithDomain(domain string) Option {
	return func(o *Options) { o.Domain = domain }
}

func WithMaxAge(seconds int) Option {
	return func(o *Options) { o.MaxAge = seconds }
}

func WithSecure(secure bool) Option {
	return func(o *Options) { o.Secure = secure }
}

func WithHTTPOnly(httpOnly bool) Option {
	return func(o *Options) { o.HttpOnly = httpOnly }
}

func WithSameSite(sameSite http.SameSite) Option {
	return func(o *Options) { o.SameSite = sameSite }
}

// apply returns a copy of base with opts applied; base is left untouched.
func apply(base Options, opts []Option) Options {
	out := base
	for _, opt := range opts {
		opt(&out)
	}
	return out
}
