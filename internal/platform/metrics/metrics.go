package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics shared by the services.
type Metrics struct {
	UsersRegistered prometheus.Counter
	Logins          prometheus.Counter
	AuthFailures    prometheus.Counter
	EndpointLatency *prometheus.HistogramVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	AuditIngested     prometheus.Counter
	AuditDropped      *prometheus.CounterVec
	AuditDeadLettered prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idplane_users_registered_total",
			Help: "Total number of users registered",
		}),
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idplane_logins_total",
			Help: "Total number of successful logins",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idplane_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idplane_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idplane_cache_hits_total",
			Help: "Total cache hits, labeled by key namespace",
		}, []string{"namespace"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idplane_cache_misses_total",
			Help: "Total cache misses, labeled by key namespace",
		}, []string{"namespace"}),
		AuditIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idplane_audit_records_ingested_total",
			Help: "Total audit records persisted by the sink",
		}),
		AuditDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idplane_audit_messages_dropped_total",
			Help: "Total audit messages dropped at validation, labeled by reason",
		}, []string{"reason"}),
		AuditDeadLettered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idplane_audit_messages_dead_lettered_total",
			Help: "Total messages routed to the dead-letter topic",
		}),
	}
}

// IncrementUsersRegistered increments the registration counter by 1.
func (m *Metrics) IncrementUsersRegistered() {
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncrementLogins() {
	m.Logins.Inc()
}

func (m *Metrics) IncrementAuthFailures() {
	m.AuthFailures.Inc()
}

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Metrics) RecordCacheHit(namespace string) {
	m.CacheHits.WithLabelValues(namespace).Inc()
}

func (m *Metrics) RecordCacheMiss(namespace string) {
	m.CacheMisses.WithLabelValues(namespace).Inc()
}

func (m *Metrics) IncrementAuditIngested() {
	m.AuditIngested.Inc()
}

func (m *Metrics) IncrementAuditDropped(reason string) {
	m.AuditDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementAuditDeadLettered() {
	m.AuditDeadLettered.Inc()
}
