// Package metrics holds the Prometheus collectors of the gateway. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RemoteCalls        *prometheus.CounterVec
	RemoteCallDuration *prometheus.HistogramVec
	TokenRefreshes     *prometheus.CounterVec
	LoginOutcomes      *prometheus.CounterVec
	AutoRegistrations  *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg, which Handler
// then serves.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemoteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ucenter_remote_calls_total",
			Help: "Remote UCenter calls by operation and outcome",
		}, []string{"op", "outcome"}),
		RemoteCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ucenter_remote_call_duration_seconds",
			Help:    "Latency of remote UCenter calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		TokenRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ucenter_token_refreshes_total",
			Help: "Bearer token fetches by result",
		}, []string{"result"}),
		LoginOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ucenter_login_outcomes_total",
			Help: "Resolved logins by scheme and outcome kind",
		}, []string{"scheme", "kind"}),
		AutoRegistrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ucenter_auto_registrations_total",
			Help: "Accounts provisioned for first-seen identifiers",
		}, []string{"type", "result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ucenter_http_requests_total",
			Help: "Gateway HTTP API requests by route and status",
		}, []string{"route", "status"}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveRemoteCall(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(op, outcome).Inc()
	m.RemoteCallDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) IncTokenRefresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) IncLoginOutcome(scheme, kind string) {
	if m == nil {
		return
	}
	m.LoginOutcomes.WithLabelValues(scheme, kind).Inc()
}

func (m *Metrics) IncAutoRegistration(typ, result string) {
	if m == nil {
		return
	}
	m.AutoRegistrations.WithLabelValues(typ, result).Inc()
}

func (m *Metrics) IncHTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
