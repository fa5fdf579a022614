// Package metrics exposes Prometheus metrics for listing retrieval and login.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/carsensor/internal/application"
)

// Compile-time interface satisfaction check.
var _ application.Recorder = (*Collector)(nil)

// Collector records retrieval and login outcomes as Prometheus metrics.
type Collector struct {
	fetches        *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	logins         *prometheus.CounterVec
	sessionExpired prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carsensor_fetch_total",
			Help: "Listing page fetches by outcome.",
		}, []string{"outcome"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carsensor_fetch_latency_seconds",
			Help:    "Latency of listing page fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carsensor_login_total",
			Help: "Login exchanges by outcome.",
		}, []string{"outcome"}),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carsensor_session_expired_total",
			Help: "Sessions cleared because the remote service rejected the credential.",
		}),
	}

	reg.MustRegister(c.fetches, c.fetchLatency, c.logins, c.sessionExpired)
	return c
}

// RecordFetch records a completed fetch. Superseded fetches are counted but
// their latency is not observed.
func (c *Collector) RecordFetch(outcome string, latency time.Duration) {
	c.fetches.WithLabelValues(outcome).Inc()
	if outcome == application.OutcomeSuperseded {
		return
	}
	c.fetchLatency.Observe(latency.Seconds())
	if outcome == application.OutcomeSessionExpired {
		c.sessionExpired.Inc()
	}
}

// RecordLogin records a login outcome.
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
