package ports

import (
	"context"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

// WorkflowSession is the inbound contract of one guided application session.
type WorkflowSession interface {
	ID() string
	SubmitOrganization(ctx context.Context, in domain.OrganizationInput) (domain.StepOutcome, error)
	SubmitGrant(ctx context.Context, in domain.GrantInput) (domain.StepOutcome, error)
	SubmitEligibility(ctx context.Context, in domain.EligibilityInput) (domain.StepOutcome, error)
	SubmitProject(ctx context.Context, in domain.ProjectInput) (domain.StepOutcome, error)
	Advance(ctx context.Context, approved bool) (domain.StepOutcome, error)
	Back(ctx context.Context) (domain.StepOutcome, error)
	Reset(ctx context.Context) domain.StepOutcome
	Snapshot() domain.SessionSnapshot
}
