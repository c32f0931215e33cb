// Package validation holds the pure heuristics of the workflow: location
// confidence scoring and eligibility determination.
package validation

import (
	"strings"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

type compiledTerm struct {
	token      string
	normalized string
}

type compiledRule struct {
	name       string
	confidence domain.Confidence
	terms      []compiledTerm
}

// LocationValidator scores free-text locations against ordered vocabularies.
// It holds no mutable state and is safe for concurrent use.
type LocationValidator struct {
	jurisdiction string
	rules        []compiledRule
}

func NewLocationValidator(vocab Vocabulary) (*LocationValidator, error) {
	if err := vocab.validate(); err != nil {
		return nil, err
	}
	rules := make([]compiledRule, 0, len(vocab.Rules))
	for _, rule := range vocab.Rules {
		compiled := compiledRule{name: rule.Name, confidence: rule.Confidence}
		for _, term := range rule.Terms {
			norm := normalize(term)
			if norm == "" {
				continue
			}
			compiled.terms = append(compiled.terms, compiledTerm{
				token:      strings.ToLower(strings.TrimSpace(term)),
				normalized: norm,
			})
		}
		rules = append(rules, compiled)
	}
	return &LocationValidator{jurisdiction: vocab.Jurisdiction, rules: rules}, nil
}

// DefaultLocationValidator uses the embedded vocabulary. It panics if the
// embedded data is broken.
func DefaultLocationValidator() *LocationValidator {
	vocab, err := DefaultVocabulary()
	if err != nil {
		panic(err)
	}
	v, err := NewLocationValidator(vocab)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *LocationValidator) Jurisdiction() string {
	return v.jurisdiction
}

// Validate returns the confidence of the first rule with a matching term. Empty
// or unmatched input yields NONE.
func (v *LocationValidator) Validate(text string) domain.ValidationResult {
	haystack := normalize(text)
	if haystack == "" {
		return domain.ValidationResult{Confidence: domain.ConfidenceNone}
	}
	for _, rule := range v.rules {
		for _, term := range rule.terms {
			if containsTerm(haystack, term.normalized) {
				return domain.ValidationResult{
					Confidence:   rule.confidence,
					MatchedToken: term.token,
				}
			}
		}
	}
	return domain.ValidationResult{Confidence: domain.ConfidenceNone}
}

// ManualOverride records a human assertion that an unmatched location is valid.
// Results that already matched are returned unchanged.
func ManualOverride(result domain.ValidationResult) domain.ValidationResult {
	if result.Confidence != domain.ConfidenceNone {
		return result
	}
	return domain.ValidationResult{
		Confidence: domain.ConfidenceLow,
		Override:   true,
	}
}
