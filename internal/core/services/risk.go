package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driving"
	"github.com/custodia-labs/emma/internal/logger"
)

// Ensure RiskScorer implements the interface.
var _ driving.RiskScorer = (*RiskScorer)(nil)

// riskCategory is a weighted list of terms matched by substring on lowercased text.
type riskCategory struct {
	name   string
	weight float64
	terms  []string
}

var riskCategories = []riskCategory{
	{
		name:   "high_risk",
		weight: 0.6,
		terms: []string{
			"diagnose", "diagnosis", "treat", "treatment", "prescribe", "prescription",
			"cure", "heal", "medicine", "medication", "drug", "surgery", "operation",
			"emergency", "urgent", "critical", "serious", "dangerous", "fatal",
		},
	},
	{
		name:   "medium_risk",
		weight: 0.3,
		terms: []string{
			"symptom", "pain", "ache", "hurt", "sick", "ill", "disease", "condition",
			"infection", "virus", "bacteria", "cancer", "tumor", "heart attack",
			"stroke", "diabetes", "hypertension", "asthma",
		},
	},
	{
		name:   "low_risk",
		weight: 0.1,
		terms: []string{
			"appointment", "schedule", "book", "visit", "consultation", "checkup",
			"routine", "preventive", "vaccination", "immunization", "screening",
		},
	},
}

var medicalTerms = []string{
	"nhs", "gp", "doctor", "physician", "nurse", "specialist", "consultant",
	"hospital", "clinic", "practice", "surgery", "pharmacy", "laboratory",
	"test", "examination", "scan", "x-ray", "blood test", "urine test",
}

// highRiskMedical keywords get an extra multiplier when a medical term is present.
var highRiskMedical = []string{"diagnose", "treat", "prescribe", "cure"}

// safePatterns each halve a category's contextual multiplier.
var safePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)not\s+\w+`),
	regexp.MustCompile(`(?i)cannot\s+\w+`),
	regexp.MustCompile(`(?i)will\s+not\s+\w+`),
	regexp.MustCompile(`(?i)should\s+not\s+\w+`),
	regexp.MustCompile(`(?i)do\s+not\s+\w+`),
	regexp.MustCompile(`(?i)information\s+about`),
	regexp.MustCompile(`(?i)general\s+information`),
	regexp.MustCompile(`(?i)nhs\s+guidelines`),
	regexp.MustCompile(`(?i)consult\s+a\s+doctor`),
	regexp.MustCompile(`(?i)see\s+a\s+healthcare\s+professional`),
}

const (
	safePatternFactor      = 0.5
	medicalContextFactor   = 0.3
	riskLowThreshold       = 0.9
	riskMediumThreshold    = 0.7
	riskHighThreshold      = 0.5
	healthCheckSafeText    = "Hello, how can I help you?"
	healthCheckRiskyText   = "I want to diagnose your condition"
	healthCheckSafeMinimum = 0.5
)

// complianceRule discounts the overall score when any of its terms appear.
type complianceRule struct {
	standard string
	discount float64
	terms    []string
}

var complianceRules = []complianceRule{
	{
		standard: "gdpr",
		discount: 0.8,
		terms: []string{
			"personal data", "patient information", "medical record", "privacy",
			"consent", "data protection", "confidentiality",
		},
	},
	{
		standard: "nhs",
		discount: 0.9,
		terms: []string{
			"nhs guidelines", "nhs policy", "nhs standards", "nhs protocol",
			"nhs framework", "nhs regulation",
		},
	},
	{
		standard: "hipaa",
		discount: 0.85,
		terms: []string{
			"protected health information", "phi", "health insurance portability",
			"accountability act", "privacy rule", "security rule",
		},
	},
}

// RiskScorer rates message text for safety and compliance risk.
// It holds no mutable state and is safe for concurrent use.
type RiskScorer struct {
	threshold float64
}

// NewRiskScorer creates a scorer that gates at threshold.
// A non-positive threshold selects domain.DefaultSafetyThreshold.
func NewRiskScorer(threshold float64) *RiskScorer {
	if threshold <= 0 {
		threshold = domain.DefaultSafetyThreshold
	}
	return &RiskScorer{threshold: threshold}
}

// Threshold returns the gating threshold.
func (r *RiskScorer) Threshold() float64 {
	return r.threshold
}

// Score returns a safety score in [0,1]; higher is safer.
// Empty text scores 0. Any internal fault also scores 0.
func (r *RiskScorer) Score(text string) (score float64) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("risk scorer fault: %v", rec)
			score = 0.0
		}
	}()
	return r.score(text)
}

// score treats whitespace-only text like the empty string.
func (r *RiskScorer) score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0.0
	}
	lower := strings.ToLower(text)

	overall := 0.0
	for _, cat := range riskCategories {
		overall += cat.weight * categoryScore(lower, cat.terms)
	}

	adjusted := overall * complianceFactor(lower)
	result := clamp01(math.Min(overall, adjusted))

	logger.Debug("Risk score %.3f for %q", result, truncate(text, 50))
	return result
}

// categoryScore returns 1 when no term matches, otherwise
// 1 - clamp(found/len(terms) * contextMultiplier).
func categoryScore(lower string, terms []string) float64 {
	found := matchTerms(lower, terms)
	if len(found) == 0 {
		return 1.0
	}
	base := float64(len(found)) / float64(len(terms))
	return 1.0 - clamp01(base*contextMultiplier(lower, found))
}

func contextMultiplier(lower string, found []string) float64 {
	mult := 1.0
	for _, p := range safePatterns {
		if p.MatchString(lower) {
			mult *= safePatternFactor
		}
	}
	if containsAny(lower, medicalTerms) && anyIn(found, highRiskMedical) {
		mult *= medicalContextFactor
	}
	return mult
}

func complianceFactor(lower string) float64 {
	factor := 1.0
	for _, rule := range complianceRules {
		if containsAny(lower, rule.terms) {
			factor *= rule.discount
		}
	}
	return factor
}

// IsSafe reports whether text meets the gating threshold.
func (r *RiskScorer) IsSafe(text string) bool {
	return r.Score(text) >= r.threshold
}

// Report explains the score of text.
func (r *RiskScorer) Report(text string) domain.SafetyReport {
	score := r.Score(text)
	lower := strings.ToLower(text)

	flagged := []domain.FlaggedKeyword{}
	for _, cat := range riskCategories {
		for _, kw := range matchTerms(lower, cat.terms) {
			flagged = append(flagged, domain.FlaggedKeyword{Keyword: kw, Category: cat.name})
		}
	}

	issues := []string{}
	for _, rule := range complianceRules {
		for _, kw := range matchTerms(lower, rule.terms) {
			issues = append(issues, fmt.Sprintf("%s: %s", strings.ToUpper(rule.standard), kw))
		}
	}

	return domain.SafetyReport{
		SafetyScore:      score,
		RiskLevel:        domain.RiskLevelFor(score),
		FlaggedKeywords:  flagged,
		ComplianceIssues: issues,
		Recommendations:  recommendationsFor(score),
	}
}

func recommendationsFor(score float64) []string {
	switch {
	case score < riskHighThreshold:
		return []string{
			"Message contains high-risk content",
			"Review and potentially block this message",
			"Consider human review for compliance",
		}
	case score < riskMediumThreshold:
		return []string{
			"Message contains medium-risk content",
			"Monitor this type of content closely",
			"Consider adding safety disclaimers",
		}
	case score < riskLowThreshold:
		return []string{
			"Message contains low-risk content",
			"Continue monitoring for safety",
			"Consider adding informational disclaimers",
		}
	default:
		return []string{"Message appears safe for healthcare context"}
	}
}

// HealthCheck verifies a plain greeting is not flagged and that a
// diagnosis request scores below it.
func (r *RiskScorer) HealthCheck() error {
	safe := r.Score(healthCheckSafeText)
	if safe < healthCheckSafeMinimum {
		return fmt.Errorf("risk scorer: greeting scored %.2f, want >= %.2f", safe, healthCheckSafeMinimum)
	}
	risky := r.Score(healthCheckRiskyText)
	if risky >= safe {
		return fmt.Errorf("risk scorer: diagnosis request scored %.2f, not below greeting %.2f", risky, safe)
	}
	return nil
}

func matchTerms(lower string, terms []string) []string {
	var found []string
	for _, t := range terms {
		if strings.Contains(lower, t) {
			found = append(found, t)
		}
	}
	return found
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func anyIn(found, set []string) bool {
	for _, f := range found {
		for _, s := range set {
			if f == s {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
