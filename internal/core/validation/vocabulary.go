package validation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

type Rule struct {
	Name       string            `yaml:"name"`
	Confidence domain.Confidence `yaml:"confidence"`
	Terms      []string          `yaml:"terms"`
}

// Vocabulary is the ordered rule set used by the location validator.
type Vocabulary struct {
	Jurisdiction string `yaml:"jurisdiction"`
	Rules        []Rule `yaml:"rules"`
}

func DefaultVocabulary() (Vocabulary, error) {
	return ParseVocabulary(defaultVocabulary)
}

func LoadVocabulary(path string) (Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}
	return ParseVocabulary(raw)
}

func ParseVocabulary(raw []byte) (Vocabulary, error) {
	var vocab Vocabulary
	if err := yaml.Unmarshal(raw, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}
	if err := vocab.validate(); err != nil {
		return Vocabulary{}, err
	}
	return vocab, nil
}

func (v Vocabulary) validate() error {
	if len(v.Rules) == 0 {
		return errors.New("vocabulary: at least one rule is required")
	}
	for i, rule := range v.Rules {
		switch rule.Confidence {
		case domain.ConfidenceHigh, domain.ConfidenceMedium:
		default:
			// LOW is reserved for manual override and NONE means no match.
			return fmt.Errorf("vocabulary: rule %d (%s) has unsupported confidence %q", i, rule.Name, rule.Confidence)
		}
		usable := 0
		for _, term := range rule.Terms {
			if normalize(term) != "" {
				usable++
			}
		}
		if usable == 0 {
			return fmt.Errorf("vocabulary: rule %d (%s) has no terms", i, rule.Name)
		}
	}
	return nil
}

// normalize lowercases text and turns every run of non-alphanumeric runes into a
// single space, so "St. John's,NL" and "st john s nl" compare equal.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// containsTerm reports whether the normalized term occurs on word boundaries
// inside the normalized haystack.
func containsTerm(haystack, term string) bool {
	if haystack == "" || term == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+term+" ")
}
