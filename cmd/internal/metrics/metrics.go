// Package metrics exposes Pigeon's Prometheus instrumentation: presence and
// delivery counters for the realtime core plus HTTP request timings.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all collectors. All recording methods are nil-safe so
// library code can treat instrumentation as optional.
type Metrics struct {
	registry *prometheus.Registry

	onlineUsers        prometheus.Gauge
	messagesDelivered  prometheus.Counter
	messagesDropped    *prometheus.CounterVec
	presenceBroadcasts prometheus.Counter
	httpDuration       *prometheus.HistogramVec
}

// New constructs and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pigeon_online_users",
			Help: "Number of users with a live connection.",
		}),
		messagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pigeon_messages_delivered_total",
			Help: "Messages pushed to a live connection.",
		}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pigeon_messages_dropped_total",
			Help: "Messages not pushed in real time, by reason.",
		}, []string{"reason"}),
		presenceBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pigeon_presence_broadcasts_total",
			Help: "Online-user set broadcasts triggered by registry changes.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pigeon_http_request_duration_seconds",
			Help:    "HTTP request duration by method, route, and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.onlineUsers,
		m.messagesDelivered,
		m.messagesDropped,
		m.presenceBroadcasts,
		m.httpDuration,
	)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetOnlineUsers records the current online-user gauge.
func (m *Metrics) SetOnlineUsers(n int) {
	if m == nil {
		return
	}
	m.onlineUsers.Set(float64(n))
}

// MessageDelivered counts a successful live push.
func (m *Metrics) MessageDelivered() {
	if m == nil {
		return
	}
	m.messagesDelivered.Inc()
}

// MessageDropped counts a message that skipped the real-time path.
// Reasons: "offline", "backpressure", "marshal".
func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.messagesDropped.WithLabelValues(reason).Inc()
}

// PresenceBroadcast counts one online-set fanout.
func (m *Metrics) PresenceBroadcast() {
	if m == nil {
		return
	}
	m.presenceBroadcasts.Inc()
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
