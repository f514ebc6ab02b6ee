// Package config loads typed configuration structs from the environment.
//
// Values come from process environment variables, optionally seeded from
// .env files through godotenv, and are parsed with caarlos0/env using struct
// tags. Each configuration type is parsed once per process and served from a
// cache afterwards.
//
//	type OAuthConfig struct {
//	    ClientID     string `env:"GOOGLE_CLIENT_ID,required"`
//	    ClientSecret string `env:"GOOGLE_CLIENT_SECRET,required"`
//	}
//
//	var cfg OAuthConfig
//	config.MustLoad(&cfg)
//
// Types implementing Validator are checked right after parsing; a failing
// Validate is returned wrapped in ErrInvalidConfig and the value is not cached.
package config
