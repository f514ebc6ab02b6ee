// Package metrics exposes Prometheus counters for the login flow, account
// provisioning and avatar uploads.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services depend on; Noop satisfies it in tests.
type Recorder interface {
	LoginCompleted(result string)
	UserProvisioned()
	UsernameCollision()
	AvatarUploaded(result string, size int)
}

type Collector struct {
	logins     *prometheus.CounterVec
	provisions prometheus.Counter
	collisions prometheus.Counter
	uploads    *prometheus.CounterVec
	uploadSize prometheus.Histogram
}

// NewCollector registers the service metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kfchess_login_total",
			Help: "OAuth callbacks by outcome.",
		}, []string{"result"}),
		provisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kfchess_user_provisioned_total",
			Help: "Accounts created on first login.",
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kfchess_username_collision_total",
			Help: "Generated usernames rejected because they were taken.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kfchess_avatar_upload_total",
			Help: "Profile picture uploads by outcome.",
		}, []string{"result"}),
		uploadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kfchess_avatar_upload_bytes",
			Help:    "Size of accepted profile picture uploads.",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 7),
		}),
	}
	reg.MustRegister(c.logins, c.provisions, c.collisions, c.uploads, c.uploadSize)
	return c
}

func (c *Collector) LoginCompleted(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) UserProvisioned() {
	c.provisions.Inc()
}

func (c *Collector) UsernameCollision() {
	c.collisions.Inc()
}

func (c *Collector) AvatarUploaded(result string, size int) {
	c.uploads.WithLabelValues(result).Inc()
	if result == "ok" {
		c.uploadSize.Observe(float64(size))
	}
}

// Handler serves the registry for scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type Noop struct{}

func (Noop) LoginCompleted(string)      {}
func (Noop) UserProvisioned()           {}
func (Noop) UsernameCollision()         {}
func (Noop) AvatarUploaded(string, int) {}
