package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/grantflow/internal/config"
	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
	"github.com/kirillkom/grantflow/internal/core/usecase"
	"github.com/kirillkom/grantflow/internal/core/validation"
)

const (
	serviceName     = "grantflow-api"
	maxRequestBytes = 1 << 20
	queueWait       = 250 * time.Millisecond
)

// Metrics is the observability sink of the API process.
type Metrics interface {
	Handler() http.Handler
	Middleware(service string, next http.Handler) http.Handler
	RecordRejected(reason string)
	SetActiveSessions(n int)
	RecordExport(format domain.ExportFormat, err error)
}

// Deps are the collaborators of the router. Archive and Metrics are optional.
type Deps struct {
	Workflow  *usecase.WorkflowService
	Exports   *usecase.ExportService
	Archive   ports.ExportArchive
	Gateway   ports.GatewayProber
	Locations *validation.LocationValidator
	Sessions  *SessionStore
	Metrics   Metrics
	Logger    *slog.Logger
}

type Router struct {
	cfg       config.Config
	deps      Deps
	logger    *slog.Logger
	validator *requestValidator
}

func NewRouter(cfg config.Config, deps Deps) (*Router, error) {
	if deps.Workflow == nil {
		return nil, errors.New("http router: workflow service is required")
	}
	if deps.Exports == nil {
		deps.Exports = usecase.NewExportService(nil, nil, nil, deps.Logger)
	}
	if deps.Locations == nil {
		deps.Locations = validation.DefaultLocationValidator()
	}
	if deps.Sessions == nil {
		store, err := NewSessionStore(cfg.SessionCacheSize)
		if err != nil {
			return nil, err
		}
		deps.Sessions = store
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	validator, err := newRequestValidator(context.Background())
	if err != nil {
		return nil, err
	}
	return &Router{cfg: cfg, deps: deps, logger: logger, validator: validator}, nil
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/sessions", rt.createSession)
	api.HandleFunc("GET /v1/sessions/{session_id}", rt.getSession)
	api.HandleFunc("DELETE /v1/sessions/{session_id}", rt.deleteSession)
	api.HandleFunc("POST /v1/sessions/{session_id}/organization", rt.submitOrganization)
	api.HandleFunc("POST /v1/sessions/{session_id}/grant", rt.submitGrant)
	api.HandleFunc("POST /v1/sessions/{session_id}/eligibility", rt.submitEligibility)
	api.HandleFunc("POST /v1/sessions/{session_id}/project", rt.submitProject)
	api.HandleFunc("POST /v1/sessions/{session_id}/advance", rt.advance)
	api.HandleFunc("POST /v1/sessions/{session_id}/back", rt.back)
	api.HandleFunc("POST /v1/sessions/{session_id}/reset", rt.reset)
	api.HandleFunc("GET /v1/sessions/{session_id}/export", rt.exportApplication)
	api.HandleFunc("GET /v1/sessions/{session_id}/exports", rt.listExports)
	api.HandleFunc("GET /v1/gateway/status", rt.gatewayStatus)
	api.HandleFunc("POST /v1/locations/validate", rt.validateLocation)

	var reject func(string)
	if rt.deps.Metrics != nil {
		reject = rt.deps.Metrics.RecordRejected
	}

	var apiHandler http.Handler = api
	apiHandler = rt.validator.middleware(apiHandler)
	apiHandler = maxBodyMiddleware(apiHandler, maxRequestBytes)
	apiHandler = backpressureMiddleware(apiHandler, rt.cfg.APIMaxInFlight, queueWait, reject)
	apiHandler = rateLimitMiddleware(apiHandler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, reject)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.deps.Metrics != nil {
		root.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}
	root.Handle("/", apiHandler)

	var handler http.Handler = root
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	session := rt.deps.Workflow.Start()
	rt.deps.Sessions.Put(session)
	rt.syncSessionGauge()
	rt.logger.InfoContext(r.Context(), "session_started", "session_id", session.ID(), "request_id", requestIDFromContext(r.Context()))
	writeJSON(w, http.StatusCreated, session.Summary(r.Context()))
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Summary(r.Context()))
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.deps.Sessions.Delete(r.PathValue("session_id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.syncSessionGauge()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) submitOrganization(w http.ResponseWriter, r *http.Request) {
	var in domain.OrganizationInput
	handleSubmit(rt, w, r, &in, func(ctx context.Context, s *usecase.Session) (domain.StepOutcome, error) {
		return s.SubmitOrganization(ctx, in)
	})
}

func (rt *Router) submitGrant(w http.ResponseWriter, r *http.Request) {
	var in domain.GrantInput
	handleSubmit(rt, w, r, &in, func(ctx context.Context, s *usecase.Session) (domain.StepOutcome, error) {
		return s.SubmitGrant(ctx, in)
	})
}

func (rt *Router) submitEligibility(w http.ResponseWriter, r *http.Request) {
	var in domain.EligibilityInput
	handleSubmit(rt, w, r, &in, func(ctx context.Context, s *usecase.Session) (domain.StepOutcome, error) {
		return s.SubmitEligibility(ctx, in)
	})
}

func (rt *Router) submitProject(w http.ResponseWriter, r *http.Request) {
	var in domain.ProjectInput
	handleSubmit(rt, w, r, &in, func(ctx context.Context, s *usecase.Session) (domain.StepOutcome, error) {
		return s.SubmitProject(ctx, in)
	})
}

func (rt *Router) advance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approved bool `json:"approved"`
	}
	session, ok := rt.session(w, r)
	if !ok {
		return
	}
	// An absent body or approval withholds approval.
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		rt.writeError(w, r, err)
		return
	}
	outcome, err := session.Advance(r.Context(), req.Approved)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) back(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.session(w, r)
	if !ok {
		return
	}
	outcome, err := session.Back(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) reset(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Reset(r.Context()))
}

func (rt *Router) exportApplication(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.session(w, r)
	if !ok {
		return
	}
	format := domain.ExportFormat(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))))
	artifact, err := rt.deps.Exports.Export(r.Context(), session, format)
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordExport(artifact.Format, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Content)
}

func (rt *Router) listExports(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Archive == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "export archive is not configured"})
		return
	}
	events, err := rt.deps.Archive.ListBySession(r.Context(), r.PathValue("session_id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": events})
}

func (rt *Router) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Gateway == nil {
		writeJSON(w, http.StatusOK, domain.ProbeStatus{Error: "no live agent client configured"})
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	if refresh {
		writeJSON(w, http.StatusOK, rt.deps.Gateway.Refresh(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Gateway.Status(r.Context()))
}

func (rt *Router) validateLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location       string `json:"location"`
		ManualOverride bool   `json:"manual_override"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	result := rt.deps.Locations.Validate(req.Location)
	if req.ManualOverride {
		result = validation.ManualOverride(result)
	}
	writeJSON(w, http.StatusOK, result)
}

func handleSubmit[T any](
	rt *Router,
	w http.ResponseWriter,
	r *http.Request,
	in *T,
	call func(context.Context, *usecase.Session) (domain.StepOutcome, error),
) {
	session, ok := rt.session(w, r)
	if !ok {
		return
	}
	if err := decodeJSON(r, in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	outcome, err := call(r.Context(), session)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) session(w http.ResponseWriter, r *http.Request) (*usecase.Session, bool) {
	session, err := rt.deps.Sessions.Get(r.PathValue("session_id"))
	if err != nil {
		rt.writeError(w, r, err)
		return nil, false
	}
	return session, true
}

func (rt *Router) syncSessionGauge() {
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.SetActiveSessions(rt.deps.Sessions.Len())
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.ErrorContext(r.Context(), "request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	if status == http.StatusInternalServerError {
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse(err))
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
