package domain

// OrganizationInput feeds the ORG_VERIFICATION step.
type OrganizationInput struct {
	Name           string   `json:"name" yaml:"name"`
	Type           string   `json:"type" yaml:"type"`
	Location       string   `json:"location" yaml:"location"`
	ResearchAreas  []string `json:"research_areas" yaml:"research_areas"`
	ManualOverride bool     `json:"manual_override" yaml:"manual_override"`
}

// GrantInput feeds the GRANT_INFO step. Exactly one of Description or
// ArtifactReference must be set.
type GrantInput struct {
	Description       string `json:"description" yaml:"description"`
	ArtifactReference string `json:"artifact_reference" yaml:"artifact_reference"`
	ExtractedText     string `json:"extracted_text" yaml:"extracted_text"`
}

// Attestations are explicit human answers for eligibility factors. A nil
// pointer leaves the factor to be derived from the record.
type Attestations struct {
	Registration     *bool `json:"registration,omitempty" yaml:"registration,omitempty"`
	ResearchCapacity *bool `json:"research_capacity,omitempty" yaml:"research_capacity,omitempty"`
	FundingThreshold *bool `json:"funding_threshold,omitempty" yaml:"funding_threshold,omitempty"`
	SectorAlignment  *bool `json:"sector_alignment,omitempty" yaml:"sector_alignment,omitempty"`
}

// EligibilityInput feeds the ELIGIBILITY step.
type EligibilityInput struct {
	Attestations Attestations `json:"attestations" yaml:"attestations"`
}

// ProjectInput feeds the PROJECT_AND_SUGGESTIONS step.
type ProjectInput struct {
	Title           string `json:"title" yaml:"title"`
	Narrative       string `json:"narrative" yaml:"narrative"`
	RequestedAmount int64  `json:"requested_amount" yaml:"requested_amount"`
	Duration        string `json:"duration" yaml:"duration"`
	FocusArea       string `json:"focus_area" yaml:"focus_area"`
	TeamSize        int    `json:"team_size" yaml:"team_size"`
}
