package domain

// StepState is the position of a session in the fixed workflow sequence.
type StepState string

const (
	StepOrgVerification StepState = "ORG_VERIFICATION"
	StepGrantInfo       StepState = "GRANT_INFO"
	StepEligibility     StepState = "ELIGIBILITY"
	StepProject         StepState = "PROJECT_AND_SUGGESTIONS"
	StepComplete        StepState = "COMPLETE"
)

var stepOrder = []StepState{
	StepOrgVerification,
	StepGrantInfo,
	StepEligibility,
	StepProject,
	StepComplete,
}

// Steps returns the workflow sequence in order.
func Steps() []StepState {
	out := make([]StepState, len(stepOrder))
	copy(out, stepOrder)
	return out
}

func (s StepState) String() string {
	return string(s)
}

// Index is the zero-based position of s, or -1 for unknown values.
func (s StepState) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

func (s StepState) IsValid() bool {
	return s.Index() >= 0
}

func (s StepState) IsInitial() bool {
	return s == StepOrgVerification
}

func (s StepState) IsTerminal() bool {
	return s == StepComplete
}

// Next returns the successor of s. The terminal step has none.
func (s StepState) Next() (StepState, bool) {
	idx := s.Index()
	if idx < 0 || idx+1 >= len(stepOrder) {
		return s, false
	}
	return stepOrder[idx+1], true
}

// Previous returns the predecessor of s. The initial step has none.
func (s StepState) Previous() (StepState, bool) {
	idx := s.Index()
	if idx <= 0 {
		return s, false
	}
	return stepOrder[idx-1], true
}

// AdvanceStatus reports the outcome of an approval gate evaluation.
type AdvanceStatus string

const (
	AdvanceStatusAdvanced        AdvanceStatus = "advanced"
	AdvanceStatusPendingApproval AdvanceStatus = "pending_approval"
	AdvanceStatusMovedBack       AdvanceStatus = "moved_back"
	AdvanceStatusReset           AdvanceStatus = "reset"
)
