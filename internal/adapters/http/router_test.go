package httpadapter

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/grantflow/internal/config"
	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/usecase"
	"github.com/kirillkom/grantflow/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/grantflow/internal/infrastructure/gateway"
)

type outcomeView struct {
	SessionID     string `json:"session_id"`
	State         string `json:"state"`
	Status        string `json:"status"`
	ApprovalsHeld int    `json:"approvals_held"`
}

type sessionView struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	logger := discardLogger()
	gw := gateway.New(gateway.Config{}, nil, nil, gateway.NewSimulator(nil), logger, nil)
	workflow := usecase.NewWorkflowService(usecase.Dependencies{
		Gateway:            gw,
		Logger:             logger,
		GrantSearchEnabled: true,
	}, domain.SessionConfig{})

	router, err := NewRouter(cfg, Deps{
		Workflow: workflow,
		Exports:  usecase.NewExportService(nil, xlsx.NewWriter(), nil, logger),
		Gateway:  gw,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	res := do(t, h, http.MethodPost, "/v1/sessions", nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("create session expected 201, got %d: %s", res.Code, res.Body.String())
	}
	session := decode[sessionView](t, res)
	if session.ID == "" || session.State != string(domain.StepOrgVerification) {
		t.Fatalf("unexpected new session: %+v", session)
	}
	return session.ID
}

func submitAndApprove(t *testing.T, h http.Handler, id, step string, body any, wantNext domain.StepState) {
	t.Helper()
	res := do(t, h, http.MethodPost, "/v1/sessions/"+id+"/"+step, body)
	if res.Code != http.StatusOK {
		t.Fatalf("%s expected 200, got %d: %s", step, res.Code, res.Body.String())
	}
	if got := decode[outcomeView](t, res); got.Status != string(domain.AdvanceStatusProposed) {
		t.Fatalf("%s expected proposed status, got %+v", step, got)
	}

	res = do(t, h, http.MethodPost, "/v1/sessions/"+id+"/advance", map[string]any{"approved": true})
	if res.Code != http.StatusOK {
		t.Fatalf("advance after %s expected 200, got %d: %s", step, res.Code, res.Body.String())
	}
	if got := decode[outcomeView](t, res); got.State != string(wantNext) {
		t.Fatalf("advance after %s expected %s, got %+v", step, wantNext, got)
	}
}

func completeSession(t *testing.T, h http.Handler) string {
	t.Helper()
	id := createSession(t, h)
	submitAndApprove(t, h, id, "organization", map[string]any{
		"name":           "University of Toronto",
		"type":           "University",
		"location":       "Toronto, Ontario, Canada",
		"research_areas": []string{"Health Sciences"},
	}, domain.StepGrantInfo)
	submitAndApprove(t, h, id, "grant", map[string]any{
		"description": "Operating grants for health research in Canada.",
	}, domain.StepEligibility)
	submitAndApprove(t, h, id, "eligibility", map[string]any{}, domain.StepProject)
	submitAndApprove(t, h, id, "project", map[string]any{
		"title":            "Cold chain vaccines",
		"narrative":        "Keeping vaccines cold in remote communities.",
		"requested_amount": 250000,
		"team_size":        6,
	}, domain.StepComplete)
	return id
}

func TestSessionWorkflowAndTextExport(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := completeSession(t, h)

	res := do(t, h, http.MethodGet, "/v1/sessions/"+id+"/export", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("export expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "grant_application_"+id+".txt") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !strings.HasPrefix(res.Body.String(), "Grant Application Draft") {
		t.Fatalf("unexpected draft body: %q", res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "All core sections completed.") {
		t.Fatalf("expected completed status line in draft")
	}

	res = do(t, h, http.MethodGet, "/v1/sessions/"+id+"/export?format=xlsx", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("xlsx export expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); got != domain.ExportWorkbook.ContentType() {
		t.Fatalf("unexpected workbook content type %q", got)
	}
}

func TestSubmitRejectsBodyOutsideSchema(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := createSession(t, h)

	res := do(t, h, http.MethodPost, "/v1/sessions/"+id+"/organization", map[string]any{"type": "University"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("missing name expected 400, got %d", res.Code)
	}

	res = do(t, h, http.MethodPost, "/v1/sessions/"+id+"/organization", map[string]any{"name": "Org", "type": "NGO", "budget": 10})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("unknown field expected 400, got %d", res.Code)
	}

	res = do(t, h, http.MethodPost, "/v1/sessions/"+id+"/advance", map[string]any{"approved": "yes"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("non-boolean approval expected 400, got %d", res.Code)
	}
}

func TestDomainValidationErrorNamesField(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := createSession(t, h)

	res := do(t, h, http.MethodPost, "/v1/sessions/"+id+"/organization", map[string]any{"name": "  ", "type": "NGO"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("blank name expected 400, got %d: %s", res.Code, res.Body.String())
	}
	if body := decode[errorBody](t, res); body.Field != "name" {
		t.Fatalf("expected field name in error, got %+v", body)
	}
}

func TestStepConflictsMapTo409(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := createSession(t, h)

	res := do(t, h, http.MethodPost, "/v1/sessions/"+id+"/grant", map[string]any{"description": "early"})
	if res.Code != http.StatusConflict {
		t.Fatalf("step mismatch expected 409, got %d", res.Code)
	}

	res = do(t, h, http.MethodPost, "/v1/sessions/"+id+"/back", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("back at first step expected 409, got %d", res.Code)
	}

	res = do(t, h, http.MethodGet, "/v1/sessions/"+id+"/export", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("export before completion expected 409, got %d", res.Code)
	}
}

func TestAdvanceWithoutApprovalKeepsStep(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := createSession(t, h)

	res := do(t, h, http.MethodPost, "/v1/sessions/"+id+"/advance", map[string]any{"approved": false})
	if res.Code != http.StatusOK {
		t.Fatalf("withheld approval expected 200, got %d", res.Code)
	}
	got := decode[outcomeView](t, res)
	if got.State != string(domain.StepOrgVerification) || got.Status != string(domain.AdvanceStatusPendingApproval) {
		t.Fatalf("unexpected outcome %+v", got)
	}
}

func TestAdvanceWithAbsentApprovalIsPending(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := createSession(t, h)

	for name, body := range map[string]any{"no body": nil, "empty object": map[string]any{}} {
		res := do(t, h, http.MethodPost, "/v1/sessions/"+id+"/advance", body)
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", name, res.Code, res.Body.String())
		}
		got := decode[outcomeView](t, res)
		if got.State != string(domain.StepOrgVerification) || got.Status != string(domain.AdvanceStatusPendingApproval) {
			t.Fatalf("%s: unexpected outcome %+v", name, got)
		}
	}
}

func TestSchemaErrorMessageIsShort(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := createSession(t, h)

	res := do(t, h, http.MethodPost, "/v1/sessions/"+id+"/advance", map[string]any{"approved": "yes"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	body := decode[errorBody](t, res)
	if !strings.HasPrefix(body.Error, "invalid request body: ") {
		t.Fatalf("unexpected error %q", body.Error)
	}
	if strings.Contains(body.Error, "\n") || strings.Contains(body.Error, "Schema:") {
		t.Fatalf("error leaks the schema dump: %q", body.Error)
	}
}

func TestResetAndDeleteSession(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := completeSession(t, h)

	res := do(t, h, http.MethodPost, "/v1/sessions/"+id+"/reset", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("reset expected 200, got %d", res.Code)
	}
	if got := decode[outcomeView](t, res); got.State != string(domain.StepOrgVerification) || got.ApprovalsHeld != 0 {
		t.Fatalf("unexpected reset outcome %+v", got)
	}

	res = do(t, h, http.MethodDelete, "/v1/sessions/"+id, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", res.Code)
	}
	res = do(t, h, http.MethodGet, "/v1/sessions/"+id, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("deleted session expected 404, got %d", res.Code)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	h := newTestHandler(t, config.Config{})

	res := do(t, h, http.MethodGet, "/v1/sessions/missing", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, config.Config{})

	res := do(t, h, http.MethodPut, "/v1/sessions", nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestGatewayStatusWithoutLiveClient(t *testing.T) {
	h := newTestHandler(t, config.Config{})

	res := do(t, h, http.MethodGet, "/v1/gateway/status?refresh=true", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	status := decode[domain.ProbeStatus](t, res)
	if status.Reachable || status.Error == "" {
		t.Fatalf("expected unreachable status with reason, got %+v", status)
	}
}

func TestValidateLocation(t *testing.T) {
	h := newTestHandler(t, config.Config{})

	res := do(t, h, http.MethodPost, "/v1/locations/validate", map[string]any{"location": "Toronto, Ontario, Canada"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	got := decode[domain.ValidationResult](t, res)
	if got.Confidence != domain.ConfidenceHigh || got.MatchedToken != "canada" {
		t.Fatalf("unexpected validation %+v", got)
	}

	res = do(t, h, http.MethodPost, "/v1/locations/validate", map[string]any{"location": "Springfield", "manual_override": true})
	got = decode[domain.ValidationResult](t, res)
	if got.Confidence != domain.ConfidenceLow || !got.Override {
		t.Fatalf("expected manual override, got %+v", got)
	}
}

func TestListExportsWithoutArchive(t *testing.T) {
	h := newTestHandler(t, config.Config{})
	id := createSession(t, h)

	res := do(t, h, http.MethodGet, "/v1/sessions/"+id+"/exports", nil)
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", res.Code)
	}
}

func TestHealthzAndRequestID(t *testing.T) {
	h := newTestHandler(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected request id echo, got %q", got)
	}
}

func TestSessionStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store, err := NewSessionStore(1)
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	workflow := usecase.NewWorkflowService(usecase.Dependencies{Logger: discardLogger()}, domain.SessionConfig{})
	first, second := workflow.Start(), workflow.Start()
	store.Put(first)
	store.Put(second)

	if _, err := store.Get(first.ID()); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected evicted session to be gone, got %v", err)
	}
	if got, err := store.Get(second.ID()); err != nil || got != second {
		t.Fatalf("expected second session, got %v %v", got, err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session, got %d", store.Len())
	}
}
