package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Mutation gate metrics
	GateAcquisitionsTotal *prometheus.CounterVec
	GateWaitDuration      *prometheus.HistogramVec
	MutationDuration      *prometheus.HistogramVec
	UpstreamErrorsTotal   prometheus.Counter

	// Business metrics
	MembershipOperationsTotal  *prometheus.CounterVec
	InvitationTransitionsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membership_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "membership_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GateAcquisitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membership_gate_acquisitions_total",
				Help: "Resource credential acquisitions by gateway mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		GateWaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "membership_gate_wait_seconds",
				Help:    "Time spent acquiring a resource credential and the gateway slot",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"mode"},
		),
		MutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "membership_mutation_duration_seconds",
				Help:    "Duration of gated graph mutations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode", "outcome"},
		),
		UpstreamErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "membership_upstream_errors_total",
				Help: "Graph store responses that carried errors",
			},
		),
		MembershipOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membership_operations_total",
				Help: "Membership operations by kind and outcome",
			},
			[]string{"operation", "outcome"},
		),
		InvitationTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membership_invitation_transitions_total",
				Help: "Invitation actions by kind and outcome",
			},
			[]string{"action", "outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GateAcquisitionsTotal,
		m.GateWaitDuration,
		m.MutationDuration,
		m.UpstreamErrorsTotal,
		m.MembershipOperationsTotal,
		m.InvitationTransitionsTotal,
	)

	return m
}

// NewUnregistered builds metrics on a private registry. Used by tests and
// commands that never expose /metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Outcome labels an error as "success" or "error".
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests, labelled by the matched route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the exposition format for registry.
func Handler(registry prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
