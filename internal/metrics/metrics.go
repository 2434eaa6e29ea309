// Package metrics exposes Prometheus counters for the back-office workflow.
// All methods are safe on a nil *Metrics so tests can skip wiring.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server records
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	StageTransitions    *prometheus.CounterVec
	OutcomesSet         *prometheus.CounterVec
	NotificationsQueued prometheus.Counter
	NotificationsFailed *prometheus.CounterVec
	LoginAttempts       *prometheus.CounterVec
	EmailsSent          *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "HTTP requests by method, route and status class",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		StageTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_document_stage_transitions_total",
			Help: "Documents advanced into each pipeline stage",
		}, []string{"stage"}),
		OutcomesSet: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_document_outcomes_total",
			Help: "Verification outcomes recorded by status",
		}, []string{"status"}),
		NotificationsQueued: f.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_notifications_enqueued_total",
			Help: "Notification events accepted by the outbox",
		}),
		NotificationsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_notifications_failed_total",
			Help: "Notification events dropped, by phase",
		}, []string{"phase"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_login_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_emails_total",
			Help: "Outbound emails by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncStageTransition(stage string) {
	if m == nil {
		return
	}
	m.StageTransitions.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncOutcome(status string) {
	if m == nil {
		return
	}
	m.OutcomesSet.WithLabelValues(status).Inc()
}

func (m *Metrics) IncNotificationQueued() {
	if m == nil {
		return
	}
	m.NotificationsQueued.Inc()
}

// IncNotificationFailed counts a dropped event; phase is "enqueue" or "deliver"
func (m *Metrics) IncNotificationFailed(phase string) {
	if m == nil {
		return
	}
	m.NotificationsFailed.WithLabelValues(phase).Inc()
}

func (m *Metrics) IncLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncEmail(result string) {
	if m == nil {
		return
	}
	m.EmailsSent.WithLabelValues(result).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
