package usecase

import (
	"fmt"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

// Advance is the approval gate of the step machine. Without approval nothing
// changes. With approval the current step's section must be present and, for
// organization verification, the location must be matched or manually
// overridden.
func Advance(state domain.StepState, record domain.WorkflowRecord, approval bool) (domain.StepState, domain.WorkflowRecord, domain.AdvanceStatus, error) {
	const op = "workflow.advance"

	if !state.IsValid() {
		return state, record, "", domain.InvalidField(op, "state", fmt.Sprintf("unknown step %q", state))
	}
	if state.IsTerminal() {
		return state, record, "", domain.WrapError(domain.ErrStepClosed, op, fmt.Errorf("no step after %s", state))
	}
	if !approval {
		return state, record, domain.AdvanceStatusPendingApproval, nil
	}
	if err := checkGate(state, record); err != nil {
		return state, record, "", err
	}

	next, _ := state.Next()
	return next, record, domain.AdvanceStatusAdvanced, nil
}

func checkGate(state domain.StepState, record domain.WorkflowRecord) error {
	const op = "workflow.advance"

	switch state {
	case domain.StepOrgVerification:
		if record.Organization == nil {
			return domain.InvalidField(op, "organization", "submit organization details before approving")
		}
		if record.Organization.LocationCheck.Confidence == domain.ConfidenceNone {
			return domain.InvalidField(op, "location", "location could not be matched; correct it or submit with manual_override")
		}
	case domain.StepGrantInfo:
		if record.Grant == nil {
			return domain.InvalidField(op, "grant", "submit grant information before approving")
		}
	case domain.StepEligibility:
		if record.Eligibility == nil {
			return domain.InvalidField(op, "eligibility", "run the eligibility assessment before approving")
		}
		if record.Eligibility.Stale {
			return domain.InvalidField(op, "eligibility", "organization or grant changed since the assessment; resubmit eligibility")
		}
	case domain.StepProject:
		if record.Project == nil {
			return domain.InvalidField(op, "project", "submit project details before approving")
		}
	}
	return nil
}
