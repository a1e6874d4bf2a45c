package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adminconsole/services/console/internal/notify"
)

// Metrics holds the console's Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	APIRequests   *prometheus.CounterVec
	APILatency    *prometheus.HistogramVec
	ListFetches   *prometheus.CounterVec
	Toasts        *prometheus.CounterVec
	LoginAttempts *prometheus.CounterVec
}

// New creates the metrics on a fresh registry, so tests and multiple consoles
// in one process never collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminconsole_api_requests_total",
			Help: "Calls made to the remote admin API",
		}, []string{"method", "route", "status"}),
		APILatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adminconsole_api_request_duration_seconds",
			Help:    "Latency of calls made to the remote admin API",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ListFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminconsole_list_fetches_total",
			Help: "List reads issued by resource controllers",
		}, []string{"resource", "outcome"}),
		Toasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminconsole_toasts_total",
			Help: "Toasts shown to the operator",
		}, []string{"kind"}),
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminconsole_login_attempts_total",
			Help: "Console login attempts by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveRequest records one remote API call.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.APIRequests.WithLabelValues(method, route, code).Inc()
	m.APILatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveFetch records one list read.
func (m *Metrics) ObserveFetch(resource string, err error, _ time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ListFetches.WithLabelValues(resource, outcome).Inc()
}

// ObserveLogin records a login outcome: ok, fail or rate_limited.
func (m *Metrics) ObserveLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// ToastSink counts shown toasts by kind.
func (m *Metrics) ToastSink() notify.Sink {
	return notify.SinkFunc(func(_ context.Context, ev notify.Event) error {
		if ev.Type == notify.EventShow {
			m.Toasts.WithLabelValues(string(ev.Toast.Kind)).Inc()
		}
		return nil
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
