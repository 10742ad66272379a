package scoring

import (
	"strings"

	"github.com/kansa-ai/kansa/internal/model"
)

// BiasDetector decides whether a decision input carries bias indicators.
// The default is a keyword heuristic; a statistical detector can be
// substituted without changing the pipeline contract.
type BiasDetector interface {
	Detect(content string, metadata map[string]any) bool
}

// PrivacyDetector decides whether a decision input exposes demographic or
// otherwise protected attributes.
type PrivacyDetector interface {
	Detect(content string) bool
}

// NoveltyDetector decides whether a decision input represents a pattern the
// organization has not reviewed before. The default implementation never
// fires; deployments plug in their own drift detection.
type NoveltyDetector interface {
	Detect(in model.DecisionInput) bool
}

// biasTerms are input phrases that correlate with biased framing in the
// advisory domains this service governs.
var biasTerms = []string{
	"male", "female", "man", "woman",
	"young", "elderly", "old people",
	"immigrant", "foreigner", "minority",
	"low-income", "wealthy", "poor",
	"disabled", "disability",
}

// demographicTerms indicate that protected or identifying attributes appear
// in the input content.
var demographicTerms = []string{
	"gender", "race", "ethnicity", "religion", "nationality",
	"age", "date of birth", "marital status",
	"ssn", "social security", "zip code",
	"salary", "income", "household",
}

// KeywordBiasDetector matches a fixed term list against the input content.
type KeywordBiasDetector struct {
	Terms []string
}

// NewKeywordBiasDetector returns a detector with the default term list.
func NewKeywordBiasDetector() *KeywordBiasDetector {
	return &KeywordBiasDetector{Terms: biasTerms}
}

func (d *KeywordBiasDetector) Detect(content string, _ map[string]any) bool {
	return containsAny(content, d.Terms)
}

// KeywordPrivacyDetector matches demographic terms against the input content.
type KeywordPrivacyDetector struct {
	Terms []string
}

// NewKeywordPrivacyDetector returns a detector with the default term list.
func NewKeywordPrivacyDetector() *KeywordPrivacyDetector {
	return &KeywordPrivacyDetector{Terms: demographicTerms}
}

func (d *KeywordPrivacyDetector) Detect(content string) bool {
	return containsAny(content, d.Terms)
}

// StaticNoveltyDetector is the default new-pattern stub: it never fires.
type StaticNoveltyDetector struct{}

func (StaticNoveltyDetector) Detect(model.DecisionInput) bool { return false }

func containsAny(content string, terms []string) bool {
	lowered := strings.ToLower(content)
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}
