package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
)

var (
	_ ports.GatewayMetrics  = (*HTTPServerMetrics)(nil)
	_ ports.WorkflowMetrics = (*HTTPServerMetrics)(nil)
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/sessions":                 "/v1/sessions",
		"/v1/sessions/":                "/v1/sessions/",
		"/v1/sessions/abc":             "/v1/sessions/{session_id}",
		"/v1/sessions/abc/steps/grant": "/v1/sessions/{session_id}/steps/grant",
		"/v1/sessions/abc/export":      "/v1/sessions/{session_id}/export",
		"/v1/gateway/status":           "/v1/gateway/status",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewHTTPServerMetrics("grantflow-api")
	handler := m.Middleware("grantflow-api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/sessions/s-1/advance", nil))

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("grantflow-api", http.MethodPost, "/v1/sessions/{session_id}/advance", "409"))
	if got != 1 {
		t.Fatalf("expected one counted request, got %v", got)
	}
}

func TestGatewayAndWorkflowCounters(t *testing.T) {
	m := NewHTTPServerMetrics("grantflow-api")
	m.RecordCall(domain.OpGrantSearch, domain.ResponseSimulated)
	m.RecordFallback(domain.OpGrantSearch, "")
	m.RecordProbe(false)
	m.RecordTransition(domain.StepOrgVerification, domain.StepGrantInfo, domain.AdvanceStatusAdvanced)
	m.RecordRejection(domain.StepGrantInfo, "")
	m.RecordExport(domain.ExportText, errors.New("disk full"))
	m.RecordBreakerTransition("adk.run", "closed", "open")

	if v := testutil.ToFloat64(m.gatewayCallsTotal.WithLabelValues("grantflow-api", string(domain.OpGrantSearch), string(domain.ResponseSimulated))); v != 1 {
		t.Fatalf("gateway calls = %v", v)
	}
	if v := testutil.ToFloat64(m.gatewayFallbacksTotal.WithLabelValues("grantflow-api", string(domain.OpGrantSearch), "unknown")); v != 1 {
		t.Fatalf("fallbacks = %v", v)
	}
	if v := testutil.ToFloat64(m.gatewayProbesTotal.WithLabelValues("grantflow-api", "unreachable")); v != 1 {
		t.Fatalf("probes = %v", v)
	}
	if v := testutil.ToFloat64(m.workflowRejectionsTotal.WithLabelValues("grantflow-api", string(domain.StepGrantInfo), "unknown")); v != 1 {
		t.Fatalf("rejections = %v", v)
	}
	if v := testutil.ToFloat64(m.exportsTotal.WithLabelValues("grantflow-api", "txt", "error")); v != 1 {
		t.Fatalf("exports = %v", v)
	}
	if v := testutil.ToFloat64(m.breakerTransitions.WithLabelValues("grantflow-api", "adk.run", "closed", "open")); v != 1 {
		t.Fatalf("breaker transitions = %v", v)
	}
}

func TestWorkerMetricsIgnoresNegativeLag(t *testing.T) {
	m := NewWorkerMetrics("grantflow-worker")
	m.StartArchive()
	m.FinishArchive("grantflow-worker", 10*time.Millisecond, nil)
	m.ObserveEventLag("grantflow-worker", -time.Second)

	if v := testutil.ToFloat64(m.archiveTotal.WithLabelValues("grantflow-worker", "success")); v != 1 {
		t.Fatalf("archive total = %v", v)
	}
	if v := testutil.ToFloat64(m.archiveInFlight); v != 0 {
		t.Fatalf("in flight = %v", v)
	}
	if n := testutil.CollectAndCount(m.eventLag); n != 0 {
		t.Fatalf("expected no lag samples, got %d", n)
	}
}
