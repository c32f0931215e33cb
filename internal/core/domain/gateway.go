package domain

import (
	"encoding/json"
	"fmt"
)

// Operation names a call to the external reasoning service.
type Operation string

const (
	OpOrganizationVerification Operation = "organization-verification"
	OpGrantSearch              Operation = "grant-search"
	OpEligibilityCrossCheck    Operation = "eligibility-cross-check"
	OpSuggestionGeneration     Operation = "suggestion-generation"
)

var knownOperations = map[Operation]bool{
	OpOrganizationVerification: true,
	OpGrantSearch:              true,
	OpEligibilityCrossCheck:    true,
	OpSuggestionGeneration:     true,
}

func (o Operation) IsKnown() bool {
	return knownOperations[o]
}

// ResponseKind tags which backend produced a GatewayResponse.
type ResponseKind string

const (
	ResponseLive      ResponseKind = "LIVE"
	ResponseSimulated ResponseKind = "SIMULATED"
)

// GatewayResponse is the uniform envelope returned by the agent gateway. Payload
// holds the canonical JSON encoding of the operation's result type.
type GatewayResponse struct {
	Kind       ResponseKind    `json:"kind"`
	Operation  Operation       `json:"operation"`
	Payload    json.RawMessage `json:"payload"`
	Diagnostic string          `json:"diagnostic,omitempty"`
}

func (r GatewayResponse) Decode(out any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("decode %s payload: empty payload", r.Operation)
	}
	if err := json.Unmarshal(r.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.Operation, err)
	}
	return nil
}

type OrgVerificationRequest struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Location      string   `json:"location"`
	ResearchAreas []string `json:"research_areas"`
}

// VerificationStatus values mirror the two-step verification outcome.
const (
	VerificationPassed       = "passed"
	VerificationMismatch     = "failed_mismatch"
	VerificationNotInCanada  = "failed_not_in_canada"
	VerificationInconclusive = "inconclusive"
)

type OrgVerificationResult struct {
	Status        string `json:"status"`
	OfficialName  string `json:"official_name"`
	Province      string `json:"province"`
	LocationMatch bool   `json:"location_match"`
	InCanada      bool   `json:"in_canada"`
	Summary       string `json:"summary"`
}

type GrantSearchRequest struct {
	Query         string   `json:"query"`
	ResearchAreas []string `json:"research_areas"`
}

type GrantOpportunity struct {
	Title       string  `json:"title"`
	Agency      string  `json:"agency"`
	Amount      string  `json:"amount"`
	Deadline    string  `json:"deadline"`
	MatchScore  float64 `json:"match_score"`
	Description string  `json:"description"`
}

type GrantSearchResult struct {
	Results    []GrantOpportunity `json:"results"`
	TotalFound int                `json:"total_found"`
}

type EligibilityCrossCheckRequest struct {
	OrganizationName string         `json:"organization_name"`
	OrganizationType string         `json:"organization_type"`
	GrantText        string         `json:"grant_text"`
	Factors          []FactorResult `json:"factors"`
}

type EligibilityCrossCheckResult struct {
	Eligible bool     `json:"eligible"`
	Concerns []string `json:"concerns"`
	Notes    string   `json:"notes"`
}

type SuggestionRequest struct {
	ProjectTitle   string   `json:"project_title"`
	Narrative      string   `json:"narrative"`
	FocusArea      string   `json:"focus_area"`
	GrantText      string   `json:"grant_text"`
	MissingFactors []string `json:"missing_factors"`
}

type SuggestionResult struct {
	Suggestions []string `json:"suggestions"`
}
