package domain

// RiskLevel is the human-facing bucket derived from a safety score.
// The naming is inverted relative to the score: a high safety score
// reports a LOW risk level.
type RiskLevel string

// Risk levels.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelFor buckets a safety score.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 0.9:
		return RiskLow
	case score >= 0.7:
		return RiskMedium
	case score >= 0.5:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// String returns the string representation.
func (l RiskLevel) String() string {
	return string(l)
}

// DefaultSafetyThreshold is the score below which content is blocked.
const DefaultSafetyThreshold = 0.8

// FlaggedKeyword is a risk keyword found in scored text.
type FlaggedKeyword struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
}

// SafetyReport explains a safety score.
type SafetyReport struct {
	SafetyScore      float64          `json:"safety_score"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	FlaggedKeywords  []FlaggedKeyword `json:"flagged_keywords"`
	ComplianceIssues []string         `json:"compliance_issues"`
	Recommendations  []string         `json:"recommendations"`
}
