package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/validation"
)

const maxSearchQuery = 500

func (s *Session) SubmitOrganization(ctx context.Context, in domain.OrganizationInput) (domain.StepOutcome, error) {
	const op = "workflow.submit_organization"
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.TrimSpace(in.Type)
	in.Location = strings.TrimSpace(in.Location)
	in.ResearchAreas = cleanList(in.ResearchAreas)

	validate := func() error {
		if in.Name == "" {
			return domain.InvalidField(op, "name", "organization name is required")
		}
		if in.Type == "" {
			return domain.InvalidField(op, "type", "organization type is required")
		}
		return nil
	}

	return s.submit(ctx, domain.StepOrgVerification, op, validate, func(ctx context.Context, _ domain.WorkflowRecord) (func(*domain.WorkflowRecord), error) {
		check := s.deps.Locations.Validate(in.Location)
		if in.ManualOverride {
			check = validation.ManualOverride(check)
		}

		org := &domain.Organization{
			Name:          in.Name,
			Type:          in.Type,
			Location:      in.Location,
			ResearchAreas: in.ResearchAreas,
			LocationCheck: check,
		}
		if s.deps.Gateway != nil {
			resp, err := s.deps.Gateway.Call(ctx, domain.OpOrganizationVerification, domain.OrgVerificationRequest{
				Name:          in.Name,
				Type:          in.Type,
				Location:      in.Location,
				ResearchAreas: in.ResearchAreas,
			})
			if err != nil {
				return nil, fmt.Errorf("verify organization: %w", err)
			}
			var verification domain.OrgVerificationResult
			if err := resp.Decode(&verification); err != nil {
				return nil, err
			}
			org.Verification = &verification
			org.VerificationKind = resp.Kind
		}

		return func(r *domain.WorkflowRecord) {
			r.Organization = org
			s.rescore(r, true)
		}, nil
	})
}

func (s *Session) SubmitGrant(ctx context.Context, in domain.GrantInput) (domain.StepOutcome, error) {
	const op = "workflow.submit_grant"
	in.Description = strings.TrimSpace(in.Description)
	in.ArtifactReference = strings.TrimSpace(in.ArtifactReference)

	validate := func() error {
		switch {
		case in.Description == "" && in.ArtifactReference == "":
			return domain.InvalidField(op, "description", "provide a grant description or an uploaded artifact")
		case in.Description != "" && in.ArtifactReference != "":
			return domain.InvalidField(op, "artifact_reference", "provide either a description or an artifact, not both")
		}
		return nil
	}

	return s.submit(ctx, domain.StepGrantInfo, op, validate, func(ctx context.Context, record domain.WorkflowRecord) (func(*domain.WorkflowRecord), error) {
		grant := &domain.GrantInfo{}
		if in.ArtifactReference != "" {
			grant.Source = domain.UploadedArtifact{Reference: in.ArtifactReference, ExtractedText: in.ExtractedText}
		} else {
			grant.Source = domain.DescribedText{Text: in.Description}
		}

		if s.deps.GrantSearchEnabled && s.deps.Gateway != nil {
			req := domain.GrantSearchRequest{Query: searchQuery(grant)}
			if record.Organization != nil {
				req.ResearchAreas = record.Organization.ResearchAreas
			}
			resp, err := s.deps.Gateway.Call(ctx, domain.OpGrantSearch, req)
			if err != nil {
				return nil, fmt.Errorf("search related grants: %w", err)
			}
			var found domain.GrantSearchResult
			if err := resp.Decode(&found); err != nil {
				return nil, err
			}
			grant.RelatedPrograms = found.Results
			grant.SearchKind = resp.Kind
		}

		return func(r *domain.WorkflowRecord) {
			r.Grant = grant
			s.rescore(r, true)
		}, nil
	})
}

func searchQuery(grant *domain.GrantInfo) string {
	q := strings.TrimSpace(grant.Text())
	if q == "" {
		if artifact, ok := grant.Source.(domain.UploadedArtifact); ok {
			q = artifact.Reference
		}
	}
	if runes := []rune(q); len(runes) > maxSearchQuery {
		q = string(runes[:maxSearchQuery])
	}
	return q
}

func (s *Session) SubmitEligibility(ctx context.Context, in domain.EligibilityInput) (domain.StepOutcome, error) {
	const op = "workflow.submit_eligibility"
	validate := func() error { return nil }

	return s.submit(ctx, domain.StepEligibility, op, validate, func(ctx context.Context, record domain.WorkflowRecord) (func(*domain.WorkflowRecord), error) {
		assessment := s.deps.Scorer.Assess(record, in.Attestations)
		result := &domain.EligibilityResult{Attestations: in.Attestations}
		result.Apply(assessment)

		if s.deps.Gateway != nil {
			req := domain.EligibilityCrossCheckRequest{
				GrantText: record.Grant.Text(),
				Factors:   assessment.Factors,
			}
			if record.Organization != nil {
				req.OrganizationName = record.Organization.Name
				req.OrganizationType = record.Organization.Type
			}
			resp, err := s.deps.Gateway.Call(ctx, domain.OpEligibilityCrossCheck, req)
			if err != nil {
				return nil, fmt.Errorf("cross-check eligibility: %w", err)
			}
			var cross domain.EligibilityCrossCheckResult
			if err := resp.Decode(&cross); err != nil {
				return nil, err
			}
			// Advisory only: the determination stays with the local scorer.
			result.CrossCheck = &cross
			result.CrossCheckKind = resp.Kind
		}

		return func(r *domain.WorkflowRecord) { r.Eligibility = result }, nil
	})
}

func (s *Session) SubmitProject(ctx context.Context, in domain.ProjectInput) (domain.StepOutcome, error) {
	const op = "workflow.submit_project"
	in.Title = strings.TrimSpace(in.Title)
	in.Narrative = strings.TrimSpace(in.Narrative)
	in.Duration = strings.TrimSpace(in.Duration)
	in.FocusArea = strings.TrimSpace(in.FocusArea)

	validate := func() error {
		switch {
		case in.Title == "":
			return domain.InvalidField(op, "title", "project title is required")
		case in.Narrative == "":
			return domain.InvalidField(op, "narrative", "project description is required")
		case in.RequestedAmount < 0:
			return domain.InvalidField(op, "requested_amount", "must not be negative")
		case in.TeamSize < 0:
			return domain.InvalidField(op, "team_size", "must not be negative")
		}
		return nil
	}

	return s.submit(ctx, domain.StepProject, op, validate, func(ctx context.Context, record domain.WorkflowRecord) (func(*domain.WorkflowRecord), error) {
		project := &domain.Project{
			Title:           in.Title,
			Narrative:       in.Narrative,
			RequestedAmount: in.RequestedAmount,
			Duration:        in.Duration,
			FocusArea:       in.FocusArea,
			TeamSize:        in.TeamSize,
		}

		var suggestions []string
		if s.deps.Gateway != nil {
			req := domain.SuggestionRequest{
				ProjectTitle: project.Title,
				Narrative:    project.Narrative,
				FocusArea:    project.FocusArea,
				GrantText:    record.Grant.Text(),
			}
			if record.Eligibility != nil {
				withProject := record
				withProject.Project = project
				req.MissingFactors = s.deps.Scorer.Assess(withProject, record.Eligibility.Attestations).Missing()
			}
			resp, err := s.deps.Gateway.Call(ctx, domain.OpSuggestionGeneration, req)
			if err != nil {
				return nil, fmt.Errorf("generate suggestions: %w", err)
			}
			var out domain.SuggestionResult
			if err := resp.Decode(&out); err != nil {
				return nil, err
			}
			suggestions = out.Suggestions
		}

		return func(r *domain.WorkflowRecord) {
			r.Project = project
			r.Suggestions = suggestions
			s.rescore(r, false)
		}, nil
	})
}

// rescore re-derives an existing eligibility result after a section it
// depends on was merged. upstream marks it stale so the ELIGIBILITY gate asks
// for a fresh assessment and cross-check.
func (s *Session) rescore(r *domain.WorkflowRecord, upstream bool) {
	if r.Eligibility == nil {
		return
	}
	elig := *r.Eligibility
	elig.Apply(s.deps.Scorer.Assess(*r, elig.Attestations))
	if upstream {
		elig.Stale = true
	}
	r.Eligibility = &elig
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
