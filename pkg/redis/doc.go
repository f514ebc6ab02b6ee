// Package redis opens a go-redis client from REDIS_URL and exposes a ping
// health check. The session store built on top of it lives in pkg/session.
package redis
