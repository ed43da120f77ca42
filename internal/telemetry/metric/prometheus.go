package metric

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/attendmesh/internal/core/service"
)

const namespace = "attendmesh"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Attendance metrics
	AttendanceEvents *prometheus.CounterVec
	EndsIgnored      *prometheus.CounterVec
	RevivesSkipped   *prometheus.CounterVec
	ActiveUsers      prometheus.Gauge

	// Auth metrics
	Logins *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Live feed
	FeedClients prometheus.Gauge
}

var _ service.Observer = (*Registry)(nil)

// NewRegistry creates a registry with Go and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		AttendanceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "events_total",
			Help:      "Attendance state changes by event type.",
		}, []string{"type"}),
		EndsIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "ends_ignored_total",
			Help:      "End notifications that changed nothing, by reason.",
		}, []string{"reason"}),
		RevivesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "revives_skipped_total",
			Help:      "Revive requests that changed nothing, by reason.",
		}, []string{"reason"}),
		ActiveUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "active_users",
			Help:      "Users with a running attendance, as seen through events.",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Connected live feed clients.",
		}),
	}

	reg.MustRegister(
		r.AttendanceEvents,
		r.EndsIgnored,
		r.RevivesSkipped,
		r.ActiveUsers,
		r.Logins,
		r.RequestsTotal,
		r.RequestDuration,
		r.FeedClients,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() { global = NewRegistry() })
	return global
}

// Registerer exposes the underlying registry for other components
// (for example the Badger size gauges).
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for tests and pushers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the /metrics handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// OnAttendanceEvent implements service.Observer.
func (r *Registry) OnAttendanceEvent(ev service.Event) {
	r.AttendanceEvents.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case service.EventStarted, service.EventRestored, service.EventRevived:
		r.ActiveUsers.Inc()
	case service.EventEnded:
		r.ActiveUsers.Dec()
	case service.EventEndIgnored:
		r.EndsIgnored.WithLabelValues(reason(ev.Detail)).Inc()
	case service.EventReviveSkipped:
		r.RevivesSkipped.WithLabelValues(reason(ev.Detail)).Inc()
	}
}

// RecordLogin counts a login attempt.
func (r *Registry) RecordLogin(result string) {
	r.Logins.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.RequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func reason(detail string) string {
	if detail == "" {
		return "unknown"
	}
	return detail
}
