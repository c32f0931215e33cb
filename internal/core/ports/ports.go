package ports

import "github.com/kirillkom/grantflow/internal/core/domain"

// WorkflowMetrics records orchestrator activity.
type WorkflowMetrics interface {
	RecordTransition(from, to domain.StepState, status domain.AdvanceStatus)
	RecordRejection(step domain.StepState, kind string)
}

// GatewayMetrics records agent gateway activity.
type GatewayMetrics interface {
	RecordCall(operation domain.Operation, kind domain.ResponseKind)
	RecordFallback(operation domain.Operation, reason string)
	RecordProbe(reachable bool)
}

// NoopWorkflowMetrics discards everything.
type NoopWorkflowMetrics struct{}

func (NoopWorkflowMetrics) RecordTransition(domain.StepState, domain.StepState, domain.AdvanceStatus) {}
func (NoopWorkflowMetrics) RecordRejection(domain.StepState, string)                                {}

// NoopGatewayMetrics discards everything.
type NoopGatewayMetrics struct{}

func (NoopGatewayMetrics) RecordCall(domain.Operation, domain.ResponseKind) {}
func (NoopGatewayMetrics) RecordFallback(domain.Operation, string)          {}
func (NoopGatewayMetrics) RecordProbe(bool)                                 {}
