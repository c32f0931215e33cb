package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/validation"
)

// Simulator answers every operation locally and deterministically. Its results
// have exactly the types the live service is asked to produce.
type Simulator struct {
	locations *validation.LocationValidator
}

func NewSimulator(locations *validation.LocationValidator) *Simulator {
	if locations == nil {
		locations = validation.DefaultLocationValidator()
	}
	return &Simulator{locations: locations}
}

// Ask fills out with the simulated result of operation.
func (s *Simulator) Ask(_ context.Context, operation domain.Operation, payload any, out any) error {
	var result any
	switch req := payload.(type) {
	case domain.OrgVerificationRequest:
		result = s.verifyOrganization(req)
	case domain.GrantSearchRequest:
		result = searchGrants(req)
	case domain.EligibilityCrossCheckRequest:
		result = crossCheck(req)
	case domain.SuggestionRequest:
		result = suggest(req)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "gateway.simulate", fmt.Errorf("unsupported payload %T", payload))
	}
	return assign(operation, result, out)
}

func (s *Simulator) verifyOrganization(req domain.OrgVerificationRequest) domain.OrgVerificationResult {
	res := domain.OrgVerificationResult{OfficialName: strings.TrimSpace(req.Name)}
	check := s.locations.Validate(req.Location)

	switch {
	case res.OfficialName == "" || strings.TrimSpace(req.Location) == "":
		res.Status = domain.VerificationInconclusive
		res.Summary = "Simulated verification: organization name or location missing."
	case check.Confidence == domain.ConfidenceNone:
		res.Status = domain.VerificationNotInCanada
		res.Summary = fmt.Sprintf("Simulated verification: %q could not be matched to a Canadian location.", req.Location)
	default:
		res.Status = domain.VerificationPassed
		res.LocationMatch = true
		res.InCanada = true
		if check.Confidence == domain.ConfidenceHigh && check.MatchedToken != "canada" {
			res.Province = titleCase(check.MatchedToken)
		}
		res.Summary = fmt.Sprintf("Simulated verification: location matched %q with %s confidence.", check.MatchedToken, check.Confidence)
	}
	return res
}

var simulatedPrograms = []domain.GrantOpportunity{
	{
		Title:       "CIHR Project Grant",
		Agency:      "Canadian Institutes of Health Research",
		Amount:      "$100,000 - $1,000,000",
		Deadline:    "2025-03-15",
		MatchScore:  0.92,
		Description: "Supports health research projects across all pillars of health.",
	},
	{
		Title:       "NSERC Discovery Grant",
		Agency:      "Natural Sciences and Engineering Research Council",
		Amount:      "$25,000 - $500,000",
		Deadline:    "2025-02-01",
		MatchScore:  0.88,
		Description: "Funds ongoing programs of research in the natural sciences and engineering.",
	},
	{
		Title:       "SSHRC Insight Grant",
		Agency:      "Social Sciences and Humanities Research Council",
		Amount:      "$7,000 - $400,000",
		Deadline:    "2025-02-15",
		MatchScore:  0.75,
		Description: "Supports research excellence in the social sciences and humanities.",
	},
}

func searchGrants(domain.GrantSearchRequest) domain.GrantSearchResult {
	results := make([]domain.GrantOpportunity, len(simulatedPrograms))
	copy(results, simulatedPrograms)
	return domain.GrantSearchResult{Results: results, TotalFound: len(results)}
}

func crossCheck(req domain.EligibilityCrossCheckRequest) domain.EligibilityCrossCheckResult {
	concerns := []string{}
	satisfied := 0
	jurisdiction := false
	for i, f := range req.Factors {
		if f.Satisfied {
			satisfied++
			if i == 0 {
				jurisdiction = true
			}
			continue
		}
		concerns = append(concerns, "Not demonstrated: "+f.Name)
	}
	return domain.EligibilityCrossCheckResult{
		Eligible: jurisdiction && satisfied >= 3,
		Concerns: concerns,
		Notes:    fmt.Sprintf("Simulated cross-check: %d of %d factors satisfied.", satisfied, len(req.Factors)),
	}
}

var standardSuggestions = []string{
	"Ensure your project timeline aligns with grant reporting requirements",
	"Include detailed budget breakdown with justifications",
	"Consider partnerships with other institutions to strengthen your application",
	"Highlight previous relevant research experience and publications",
	"Clearly articulate the impact and benefits of your research",
	"Prepare all required documentation well before the deadline",
}

func suggest(req domain.SuggestionRequest) domain.SuggestionResult {
	out := make([]string, 0, len(req.MissingFactors)+len(standardSuggestions))
	for _, factor := range req.MissingFactors {
		out = append(out, "Address the unmet eligibility factor: "+factor)
	}
	out = append(out, standardSuggestions...)
	return domain.SuggestionResult{Suggestions: out}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	if len(words) == 1 && len(words[0]) <= 3 {
		return strings.ToUpper(words[0])
	}
	for i, w := range words {
		if w == "and" || w == "of" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
