package domain

// Confidence is the qualitative strength of a location match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
	ConfidenceNone   Confidence = "NONE"
)

// ValidationResult is produced by the location validator. MatchedToken is empty
// when nothing matched.
type ValidationResult struct {
	Confidence   Confidence `json:"confidence"`
	MatchedToken string     `json:"matched_token,omitempty"`
	Override     bool       `json:"manual_override,omitempty"`
}

func (r ValidationResult) Matched() bool {
	return r.MatchedToken != ""
}

// Determination is the three-way eligibility outcome.
type Determination string

const (
	DeterminationEligible    Determination = "ELIGIBLE"
	DeterminationConditional Determination = "CONDITIONAL"
	DeterminationNotEligible Determination = "NOT_ELIGIBLE"
)

// Rank orders determinations: NOT_ELIGIBLE < CONDITIONAL < ELIGIBLE.
func (d Determination) Rank() int {
	switch d {
	case DeterminationEligible:
		return 2
	case DeterminationConditional:
		return 1
	default:
		return 0
	}
}

type FactorResult struct {
	Name      string `json:"name"`
	Satisfied bool   `json:"satisfied"`
}

type EligibilityAssessment struct {
	Factors       []FactorResult `json:"factors"`
	Determination Determination  `json:"determination"`
	Rationale     string         `json:"rationale"`
}

func (a EligibilityAssessment) Confirmed() []string {
	out := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		if f.Satisfied {
			out = append(out, f.Name)
		}
	}
	return out
}

func (a EligibilityAssessment) Missing() []string {
	out := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		if !f.Satisfied {
			out = append(out, f.Name)
		}
	}
	return out
}
