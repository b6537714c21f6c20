package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_operations_total",
			Help: "Identity engine operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	auditFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_audit_failures_total",
		Help: "Audit events that could not be persisted.",
	})

	initOnce sync.Once
)

// Init registers the collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, authOutcomes, auditFailures, buildInfo)
	})
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOutcome counts one engine operation, e.g. ("rotate", "ok") or ("authenticate", "forbidden").
func RecordOutcome(operation, outcome string) {
	authOutcomes.WithLabelValues(operation, outcome).Inc()
}

// RecordAuditFailure counts an audit event that was logged but not persisted.
func RecordAuditFailure() {
	auditFailures.Inc()
}

// CanonicalPath collapses identifier segments so metric label cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	// /v1/accounts/me/members/{id}, /v1/accounts/me/invites/{id}/revoke
	if len(parts) >= 5 && parts[0] == "v1" && parts[1] == "accounts" && parts[2] == "me" {
		switch {
		case parts[3] == "members" && len(parts) == 5:
			parts[4] = ":id"
		case parts[3] == "invites" && len(parts) == 6 && parts[5] == "revoke":
			parts[4] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Instrument wraps next with request count, latency and in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// statusWriter: локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
