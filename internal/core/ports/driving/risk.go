package driving

import "github.com/custodia-labs/emma/internal/core/domain"

// RiskScorer rates text for safety and compliance risk.
// Implementations are pure and never block.
type RiskScorer interface {
	// Score returns a safety score in [0,1]; higher is safer.
	Score(text string) float64

	// IsSafe reports whether text meets the configured threshold.
	IsSafe(text string) bool

	// Report explains the score with flagged keywords and recommendations.
	Report(text string) domain.SafetyReport

	// HealthCheck verifies the scorer still separates known safe and unsafe text.
	HealthCheck() error
}
