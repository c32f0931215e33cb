// Package gateway routes reasoning-service operations to the live agent server
// when it is reachable and to a local simulation otherwise.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
)

// Backend answers one operation by decoding its result into out.
type Backend interface {
	Ask(ctx context.Context, operation domain.Operation, payload any, out any) error
}

const (
	ReasonProbeFailed  = "probe_failed"
	ReasonLiveFailed   = "live_failed"
	ReasonLiveTimeout  = "live_timeout"
	ReasonUnparseable  = "unparseable"
	ReasonNoLiveClient = "no_live_client"
)

type Config struct {
	CallTimeout time.Duration
}

type Gateway struct {
	prober    *Prober
	live      Backend
	simulator *Simulator
	cfg       Config
	logger    *slog.Logger
	metrics   ports.GatewayMetrics
}

func New(cfg Config, prober *Prober, live Backend, simulator *Simulator, logger *slog.Logger, metrics ports.GatewayMetrics) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if simulator == nil {
		simulator = NewSimulator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopGatewayMetrics{}
	}
	return &Gateway{
		prober:    prober,
		live:      live,
		simulator: simulator,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Call never reports backend unavailability. Errors are reserved for unknown
// operations, mismatched payloads, and cancellation by the caller.
func (g *Gateway) Call(ctx context.Context, operation domain.Operation, payload any) (domain.GatewayResponse, error) {
	if !operation.IsKnown() {
		return domain.GatewayResponse{}, domain.WrapError(domain.ErrUnknownOperation, "gateway.call", fmt.Errorf("%q", operation))
	}
	if err := checkPayload(operation, payload); err != nil {
		return domain.GatewayResponse{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.GatewayResponse{}, err
	}

	if g.live == nil || g.prober == nil {
		return g.fallback(ctx, operation, payload, ReasonNoLiveClient, "no live agent client configured")
	}
	status := g.prober.Status(ctx)
	if !status.Reachable {
		return g.fallback(ctx, operation, payload, ReasonProbeFailed,
			fmt.Sprintf("agent server %s unreachable: %s", status.Endpoint, status.Error))
	}

	result := newResult(operation)
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	err := g.live.Ask(callCtx, operation, payload, result)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.GatewayResponse{}, ctxErr
		}
		reason := ReasonLiveFailed
		if callCtx.Err() != nil {
			reason = ReasonLiveTimeout
		}
		return g.fallback(ctx, operation, payload, reason, fmt.Sprintf("live %s call failed: %v", operation, err))
	}

	body, err := canonical(operation, result)
	if err != nil {
		return g.fallback(ctx, operation, payload, ReasonUnparseable, fmt.Sprintf("live %s answer rejected: %v", operation, err))
	}
	g.metrics.RecordCall(operation, domain.ResponseLive)
	return domain.GatewayResponse{Kind: domain.ResponseLive, Operation: operation, Payload: body}, nil
}

func (g *Gateway) fallback(ctx context.Context, operation domain.Operation, payload any, reason, diagnostic string) (domain.GatewayResponse, error) {
	g.logger.WarnContext(ctx, "gateway_fallback", "operation", operation, "reason", reason, "diagnostic", diagnostic)
	g.metrics.RecordFallback(operation, reason)

	result := newResult(operation)
	if err := g.simulator.Ask(ctx, operation, payload, result); err != nil {
		return domain.GatewayResponse{}, err
	}
	body, err := canonical(operation, result)
	if err != nil {
		return domain.GatewayResponse{}, fmt.Errorf("encode simulated %s result: %w", operation, err)
	}
	g.metrics.RecordCall(operation, domain.ResponseSimulated)
	return domain.GatewayResponse{
		Kind:       domain.ResponseSimulated,
		Operation:  operation,
		Payload:    body,
		Diagnostic: diagnostic,
	}, nil
}

// Status exposes the probe for operator surfaces.
func (g *Gateway) Status(ctx context.Context) domain.ProbeStatus {
	if g.prober == nil {
		return domain.ProbeStatus{Error: "no live agent client configured"}
	}
	return g.prober.Status(ctx)
}

func (g *Gateway) Refresh(ctx context.Context) domain.ProbeStatus {
	if g.prober == nil {
		return domain.ProbeStatus{Error: "no live agent client configured"}
	}
	return g.prober.Refresh(ctx)
}

func checkPayload(operation domain.Operation, payload any) error {
	ok := false
	switch operation {
	case domain.OpOrganizationVerification:
		_, ok = payload.(domain.OrgVerificationRequest)
	case domain.OpGrantSearch:
		_, ok = payload.(domain.GrantSearchRequest)
	case domain.OpEligibilityCrossCheck:
		_, ok = payload.(domain.EligibilityCrossCheckRequest)
	case domain.OpSuggestionGeneration:
		_, ok = payload.(domain.SuggestionRequest)
	}
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "gateway.call",
			fmt.Errorf("operation %s does not accept payload of type %T", operation, payload))
	}
	return nil
}

func newResult(operation domain.Operation) any {
	switch operation {
	case domain.OpOrganizationVerification:
		return &domain.OrgVerificationResult{}
	case domain.OpGrantSearch:
		return &domain.GrantSearchResult{}
	case domain.OpEligibilityCrossCheck:
		return &domain.EligibilityCrossCheckResult{}
	default:
		return &domain.SuggestionResult{}
	}
}

// canonical validates a decoded result and encodes it with nil slices
// normalised, so live and simulated payloads share one shape.
func canonical(operation domain.Operation, result any) (json.RawMessage, error) {
	switch r := result.(type) {
	case *domain.OrgVerificationResult:
		switch r.Status {
		case domain.VerificationPassed, domain.VerificationMismatch, domain.VerificationNotInCanada, domain.VerificationInconclusive:
		default:
			return nil, fmt.Errorf("unknown verification status %q", r.Status)
		}
	case *domain.GrantSearchResult:
		if r.Results == nil {
			r.Results = []domain.GrantOpportunity{}
		}
		if r.TotalFound < len(r.Results) {
			r.TotalFound = len(r.Results)
		}
	case *domain.EligibilityCrossCheckResult:
		if r.Concerns == nil {
			r.Concerns = []string{}
		}
	case *domain.SuggestionResult:
		if len(r.Suggestions) == 0 {
			return nil, fmt.Errorf("no suggestions returned")
		}
	default:
		return nil, fmt.Errorf("unexpected %s result type %T", operation, result)
	}
	return json.Marshal(result)
}

// assign copies a typed simulated result into the caller's result pointer.
func assign(operation domain.Operation, result any, out any) error {
	switch dst := out.(type) {
	case *domain.OrgVerificationResult:
		if v, ok := result.(domain.OrgVerificationResult); ok {
			*dst = v
			return nil
		}
	case *domain.GrantSearchResult:
		if v, ok := result.(domain.GrantSearchResult); ok {
			*dst = v
			return nil
		}
	case *domain.EligibilityCrossCheckResult:
		if v, ok := result.(domain.EligibilityCrossCheckResult); ok {
			*dst = v
			return nil
		}
	case *domain.SuggestionResult:
		if v, ok := result.(domain.SuggestionResult); ok {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("simulated %s result %T does not fit %T", operation, result, out)
}
