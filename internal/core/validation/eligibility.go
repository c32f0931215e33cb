package validation

import (
	"fmt"
	"strings"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

const (
	FactorJurisdiction     = "Located in Canada"
	FactorRegistration     = "Registered non-profit or educational institution"
	FactorResearchCapacity = "Has research capacity"
	FactorFundingThreshold = "Meets minimum funding requirements"
	FactorSectorAlignment  = "Within grant's target sectors"
)

// FactorNames returns the eligibility factors in evaluation order.
func FactorNames() []string {
	return []string{
		FactorJurisdiction,
		FactorRegistration,
		FactorResearchCapacity,
		FactorFundingThreshold,
		FactorSectorAlignment,
	}
}

// FactorInputs is the satisfied/unsatisfied value of every factor.
type FactorInputs struct {
	Jurisdiction     bool
	Registration     bool
	ResearchCapacity bool
	FundingThreshold bool
	SectorAlignment  bool
}

func (in FactorInputs) values() []bool {
	return []bool{in.Jurisdiction, in.Registration, in.ResearchCapacity, in.FundingThreshold, in.SectorAlignment}
}

// Determine applies the determination policy to the jurisdiction factor and
// the number of other satisfied factors.
func Determine(jurisdiction bool, others int) domain.Determination {
	switch {
	case !jurisdiction:
		return domain.DeterminationNotEligible
	case others >= 3:
		return domain.DeterminationEligible
	case others == 2:
		return domain.DeterminationConditional
	default:
		return domain.DeterminationNotEligible
	}
}

// Assess evaluates the fixed factor list.
func Assess(in FactorInputs) domain.EligibilityAssessment {
	names := FactorNames()
	values := in.values()

	factors := make([]domain.FactorResult, len(names))
	others := 0
	for i := range names {
		factors[i] = domain.FactorResult{Name: names[i], Satisfied: values[i]}
		if i > 0 && values[i] {
			others++
		}
	}

	assessment := domain.EligibilityAssessment{
		Factors:       factors,
		Determination: Determine(in.Jurisdiction, others),
	}
	assessment.Rationale = rationale(assessment, in.Jurisdiction, others)
	return assessment
}

func rationale(a domain.EligibilityAssessment, jurisdiction bool, others int) string {
	total := len(a.Factors)
	satisfied := len(a.Confirmed())
	missing := strings.Join(a.Missing(), ", ")

	switch a.Determination {
	case domain.DeterminationEligible:
		return fmt.Sprintf("Eligible: %d of %d factors satisfied, including %q.", satisfied, total, FactorJurisdiction)
	case domain.DeterminationConditional:
		return fmt.Sprintf("Conditionally eligible: jurisdiction confirmed but only %d additional factors satisfied. Missing: %s.", others, missing)
	}
	if !jurisdiction {
		return fmt.Sprintf("Not eligible: the %q requirement is not met. Missing: %s.", FactorJurisdiction, missing)
	}
	return fmt.Sprintf("Not eligible: only %d of %d factors satisfied. Missing: %s.", satisfied, total, missing)
}

var registeredOrgTypes = []string{
	"university",
	"college",
	"research institute",
	"non profit",
	"nonprofit",
	"charity",
	"government agency",
	"hospital",
}

var sectorStopwords = map[string]bool{
	"sciences": true,
	"science":  true,
	"studies":  true,
	"research": true,
	"other":    true,
}

// Scorer derives factor inputs from a workflow record.
type Scorer struct {
	minFunding int64
}

func NewScorer(minFunding int64) *Scorer {
	if minFunding < 0 {
		minFunding = 0
	}
	return &Scorer{minFunding: minFunding}
}

// Assess derives the factors from the record, applies attestations, and
// evaluates them.
func (s *Scorer) Assess(record domain.WorkflowRecord, att domain.Attestations) domain.EligibilityAssessment {
	return Assess(s.Derive(record, att))
}

func (s *Scorer) Derive(record domain.WorkflowRecord, att domain.Attestations) FactorInputs {
	in := FactorInputs{}
	org := record.Organization
	if org != nil {
		in.Jurisdiction = org.LocationCheck.Confidence != domain.ConfidenceNone && org.LocationCheck.Confidence != ""
		in.Registration = isRegisteredType(org.Type)
		in.ResearchCapacity = len(org.ResearchAreas) > 0
	}
	if record.Project != nil {
		in.FundingThreshold = record.Project.RequestedAmount >= s.minFunding && record.Project.RequestedAmount > 0
	}
	in.SectorAlignment = sectorAligned(record)

	in.Registration = attested(att.Registration, in.Registration)
	in.ResearchCapacity = attested(att.ResearchCapacity, in.ResearchCapacity)
	in.FundingThreshold = attested(att.FundingThreshold, in.FundingThreshold)
	in.SectorAlignment = attested(att.SectorAlignment, in.SectorAlignment)
	return in
}

func attested(value *bool, derived bool) bool {
	if value == nil {
		return derived
	}
	return *value
}

func isRegisteredType(orgType string) bool {
	norm := normalize(orgType)
	for _, t := range registeredOrgTypes {
		if containsTerm(norm, normalize(t)) {
			return true
		}
	}
	return false
}

func sectorAligned(record domain.WorkflowRecord) bool {
	grantText := normalize(record.Grant.Text())
	if grantText == "" {
		return false
	}
	var areas []string
	if record.Organization != nil {
		areas = append(areas, record.Organization.ResearchAreas...)
	}
	if record.Project != nil && record.Project.FocusArea != "" {
		areas = append(areas, record.Project.FocusArea)
	}
	for _, area := range areas {
		for _, word := range strings.Fields(normalize(area)) {
			if len(word) < 4 || sectorStopwords[word] {
				continue
			}
			if containsTerm(grantText, word) {
				return true
			}
		}
	}
	return false
}
