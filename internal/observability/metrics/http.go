package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

const namespace = "grantflow"

// HTTPServerMetrics also serves as the gateway and workflow metrics sink of
// the API process, so one registry backs /metrics.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	gatewayCallsTotal     *prometheus.CounterVec
	gatewayFallbacksTotal *prometheus.CounterVec
	gatewayProbesTotal    *prometheus.CounterVec
	breakerTransitions    *prometheus.CounterVec

	workflowTransitionsTotal *prometheus.CounterVec
	workflowRejectionsTotal  *prometheus.CounterVec
	sessionsActive           prometheus.Gauge
	exportsTotal             *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control.",
		},
		[]string{"service", "reason"},
	)
	gatewayCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Agent gateway calls by operation and response kind.",
		},
		[]string{"service", "operation", "kind"},
	)
	gatewayFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "fallbacks_total",
			Help:      "Simulated fallbacks by operation and reason.",
		},
		[]string{"service", "operation", "reason"},
	)
	gatewayProbesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "probes_total",
			Help:      "Connectivity probes by result.",
		},
		[]string{"service", "result"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes by operation.",
		},
		[]string{"service", "operation", "from", "to"},
	)
	workflowTransitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Step transitions by source, target and status.",
		},
		[]string{"service", "from", "to", "status"},
	)
	workflowRejectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "rejections_total",
			Help:      "Rejected step operations by step and error kind.",
		},
		[]string{"service", "step", "kind"},
	)
	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "sessions_active",
			Help:      "Sessions held in the session store.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "artifacts_total",
			Help:      "Export artifacts by format and status.",
		},
		[]string{"service", "format", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rejectedTotal,
		gatewayCallsTotal,
		gatewayFallbacksTotal,
		gatewayProbesTotal,
		breakerTransitions,
		workflowTransitionsTotal,
		workflowRejectionsTotal,
		sessionsActive,
		exportsTotal,
	)

	return &HTTPServerMetrics{
		registry:                 registry,
		service:                  service,
		requestTotal:             requestTotal,
		requestDuration:          requestDuration,
		requestInFlight:          requestInFlight,
		rejectedTotal:            rejectedTotal,
		gatewayCallsTotal:        gatewayCallsTotal,
		gatewayFallbacksTotal:    gatewayFallbacksTotal,
		gatewayProbesTotal:       gatewayProbesTotal,
		breakerTransitions:       breakerTransitions,
		workflowTransitionsTotal: workflowTransitionsTotal,
		workflowRejectionsTotal:  workflowRejectionsTotal,
		sessionsActive:           sessionsActive,
		exportsTotal:             exportsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds session ids out of the label set.
func normalizePath(path string) string {
	const prefix = "/v1/sessions/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return path
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		return prefix + "{session_id}" + rest[i:]
	}
	return prefix + "{session_id}"
}

func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(m.service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordCall(operation domain.Operation, kind domain.ResponseKind) {
	m.gatewayCallsTotal.WithLabelValues(m.service, string(operation), string(kind)).Inc()
}

func (m *HTTPServerMetrics) RecordFallback(operation domain.Operation, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.gatewayFallbacksTotal.WithLabelValues(m.service, string(operation), reason).Inc()
}

func (m *HTTPServerMetrics) RecordProbe(reachable bool) {
	result := "unreachable"
	if reachable {
		result = "reachable"
	}
	m.gatewayProbesTotal.WithLabelValues(m.service, result).Inc()
}

// RecordBreakerTransition matches resilience.StateObserver.
func (m *HTTPServerMetrics) RecordBreakerTransition(operation, from, to string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, from, to).Inc()
}

func (m *HTTPServerMetrics) RecordTransition(from, to domain.StepState, status domain.AdvanceStatus) {
	m.workflowTransitionsTotal.WithLabelValues(m.service, string(from), string(to), string(status)).Inc()
}

func (m *HTTPServerMetrics) RecordRejection(step domain.StepState, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.workflowRejectionsTotal.WithLabelValues(m.service, string(step), kind).Inc()
}

func (m *HTTPServerMetrics) SetActiveSessions(n int) {
	m.sessionsActive.Set(float64(n))
}

func (m *HTTPServerMetrics) RecordExport(format domain.ExportFormat, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.exportsTotal.WithLabelValues(m.service, string(format), status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
