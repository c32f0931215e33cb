package adk

import (
	"encoding/json"
	"fmt"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

const maxGrantSnippet = 4000

// Agent names understood by the grant research agent tree.
const (
	AgentOrganizationVerifier = "organization_verifier"
	AgentGrantSearch          = "grant_search"
	AgentEligibilityChecker   = "eligibility_checker"
	AgentProposalAnalyzer     = "proposal_analyzer"
)

// BuildPrompt returns the target agent and prompt for an operation. The payload
// must be the request type of that operation.
func BuildPrompt(operation domain.Operation, payload any) (string, string, error) {
	switch operation {
	case domain.OpOrganizationVerification:
		req, ok := payload.(domain.OrgVerificationRequest)
		if !ok {
			return "", "", payloadTypeError(operation, payload)
		}
		return AgentOrganizationVerifier, withRequest(`Verify that this organization exists and is located in Canada.
Step 1: confirm the organization name and type. Step 2: confirm the location and province.
Return strict JSON with keys:
status ("passed", "failed_mismatch", "failed_not_in_canada" or "inconclusive"), official_name (string),
province (string), location_match (bool), in_canada (bool), summary (string).
No markdown, no extra keys.`, req), nil

	case domain.OpGrantSearch:
		req, ok := payload.(domain.GrantSearchRequest)
		if !ok {
			return "", "", payloadTypeError(operation, payload)
		}
		req.Query = truncate(req.Query)
		return AgentGrantSearch, withRequest(`Find Canadian research funding programs related to the request below.
Return strict JSON with keys:
results (array of objects with title, agency, amount, deadline, match_score between 0 and 1, description),
total_found (number).
No markdown, no extra keys.`, req), nil

	case domain.OpEligibilityCrossCheck:
		req, ok := payload.(domain.EligibilityCrossCheckRequest)
		if !ok {
			return "", "", payloadTypeError(operation, payload)
		}
		req.GrantText = truncate(req.GrantText)
		return AgentEligibilityChecker, withRequest(`Review the eligibility factors of this organization against the grant.
Return strict JSON with keys:
eligible (bool), concerns (array of strings), notes (string).
No markdown, no extra keys.`, req), nil

	case domain.OpSuggestionGeneration:
		req, ok := payload.(domain.SuggestionRequest)
		if !ok {
			return "", "", payloadTypeError(operation, payload)
		}
		req.GrantText = truncate(req.GrantText)
		return AgentProposalAnalyzer, withRequest(`Suggest concrete improvements that raise this application's chance of qualifying.
Return strict JSON with key:
suggestions (array of short strings).
No markdown, no extra keys.`, req), nil
	}
	return "", "", domain.WrapError(domain.ErrUnknownOperation, "adk.prompt", fmt.Errorf("%q", operation))
}

func payloadTypeError(operation domain.Operation, payload any) error {
	return domain.WrapError(domain.ErrInvalidInput, "adk.prompt",
		fmt.Errorf("operation %s does not accept payload of type %T", operation, payload))
}

func withRequest(instructions string, req any) string {
	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		body = []byte(fmt.Sprintf("%+v", req))
	}
	return instructions + "\n\nRequest:\n" + string(body)
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) > maxGrantSnippet {
		return string(runes[:maxGrantSnippet])
	}
	return text
}
