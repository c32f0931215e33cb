package domain

import (
	"encoding/json"
	"slices"
)

// WorkflowRecord is the accumulated data of one session. Sections stay nil
// until their step has produced a proposal.
type WorkflowRecord struct {
	Organization *Organization      `json:"organization,omitempty"`
	Grant        *GrantInfo         `json:"grant,omitempty"`
	Eligibility  *EligibilityResult `json:"eligibility,omitempty"`
	Project      *Project           `json:"project,omitempty"`
	Suggestions  []string           `json:"suggestions,omitempty"`
}

type Organization struct {
	Name             string                 `json:"name"`
	Type             string                 `json:"type"`
	Location         string                 `json:"location"`
	ResearchAreas    []string               `json:"research_areas"`
	LocationCheck    ValidationResult       `json:"location_check"`
	Verification     *OrgVerificationResult `json:"verification,omitempty"`
	VerificationKind ResponseKind           `json:"verification_kind,omitempty"`
}

// GrantSource is the tagged variant describing where grant information came from.
type GrantSource interface {
	grantSource()
	GrantText() string
}

// DescribedText is grant information typed in by the operator.
type DescribedText struct {
	Text string
}

func (DescribedText) grantSource() {}

func (d DescribedText) GrantText() string { return d.Text }

// UploadedArtifact is grant information supplied as an uploaded file. The text
// is extracted upstream.
type UploadedArtifact struct {
	Reference     string
	ExtractedText string
}

func (UploadedArtifact) grantSource() {}

func (u UploadedArtifact) GrantText() string { return u.ExtractedText }

type GrantInfo struct {
	Source          GrantSource
	RelatedPrograms []GrantOpportunity
	SearchKind      ResponseKind
}

// Text returns the grant text regardless of the source variant.
func (g *GrantInfo) Text() string {
	if g == nil || g.Source == nil {
		return ""
	}
	return g.Source.GrantText()
}

func (g GrantInfo) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	switch src := g.Source.(type) {
	case DescribedText:
		out["method"] = "description"
		out["description"] = src.Text
	case UploadedArtifact:
		out["method"] = "file_upload"
		out["reference"] = src.Reference
		out["extracted_text"] = src.ExtractedText
	}
	if len(g.RelatedPrograms) > 0 {
		out["related_programs"] = g.RelatedPrograms
		out["search_kind"] = g.SearchKind
	}
	return json.Marshal(out)
}

type EligibilityResult struct {
	Eligible         bool                         `json:"eligible"`
	Determination    Determination                `json:"determination"`
	Factors          []FactorResult               `json:"factors"`
	ConfirmedFactors []string                     `json:"confirmed_factors"`
	MissingFactors   []string                     `json:"missing_factors"`
	Rationale        string                       `json:"rationale"`
	Attestations     Attestations                 `json:"attestations"`
	CrossCheck       *EligibilityCrossCheckResult `json:"cross_check,omitempty"`
	CrossCheckKind   ResponseKind                 `json:"cross_check_kind,omitempty"`
	// Stale is set when the organization or grant changed after the
	// assessment. A stale result cannot be approved.
	Stale bool `json:"stale,omitempty"`
}

// Apply replaces the scored part of the result with assessment.
func (e *EligibilityResult) Apply(assessment EligibilityAssessment) {
	e.Eligible = assessment.Determination != DeterminationNotEligible
	e.Determination = assessment.Determination
	e.Factors = assessment.Factors
	e.ConfirmedFactors = assessment.Confirmed()
	e.MissingFactors = assessment.Missing()
	e.Rationale = assessment.Rationale
}

type Project struct {
	Title           string `json:"title"`
	Narrative       string `json:"narrative"`
	RequestedAmount int64  `json:"requested_amount"`
	Duration        string `json:"duration"`
	FocusArea       string `json:"focus_area"`
	TeamSize        int    `json:"team_size"`
}

// Clone returns a deep copy so callers can read a record without sharing
// mutable state with its session.
func (r WorkflowRecord) Clone() WorkflowRecord {
	out := WorkflowRecord{Suggestions: slices.Clone(r.Suggestions)}
	if r.Organization != nil {
		org := *r.Organization
		org.ResearchAreas = slices.Clone(org.ResearchAreas)
		if org.Verification != nil {
			v := *org.Verification
			org.Verification = &v
		}
		out.Organization = &org
	}
	if r.Grant != nil {
		grant := *r.Grant
		grant.RelatedPrograms = slices.Clone(grant.RelatedPrograms)
		out.Grant = &grant
	}
	if r.Eligibility != nil {
		elig := *r.Eligibility
		elig.Factors = slices.Clone(elig.Factors)
		elig.ConfirmedFactors = slices.Clone(elig.ConfirmedFactors)
		elig.MissingFactors = slices.Clone(elig.MissingFactors)
		if elig.CrossCheck != nil {
			cc := *elig.CrossCheck
			cc.Concerns = slices.Clone(cc.Concerns)
			elig.CrossCheck = &cc
		}
		out.Eligibility = &elig
	}
	if r.Project != nil {
		project := *r.Project
		out.Project = &project
	}
	return out
}

func (r WorkflowRecord) IsEmpty() bool {
	return r.Organization == nil && r.Grant == nil && r.Eligibility == nil && r.Project == nil && len(r.Suggestions) == 0
}
