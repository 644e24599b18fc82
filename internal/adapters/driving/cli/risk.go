package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var riskJSON bool

var riskCmd = &cobra.Command{
	Use:   "risk [text]",
	Short: "Show the safety report for a piece of text",
	Args:  cobra.ExactArgs(1),
	RunE:  runRisk,
}

func init() {
	riskCmd.Flags().BoolVar(&riskJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(riskCmd)
}

func runRisk(cmd *cobra.Command, args []string) error {
	if riskScorer == nil {
		return errors.New("risk scorer not configured")
	}
	if strings.TrimSpace(args[0]) == "" {
		return errors.New("text is empty")
	}

	report := riskScorer.Report(args[0])

	if riskJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Safety score: %.3f\n", report.SafetyScore)
	cmd.Printf("Risk level:   %s\n", report.RiskLevel)
	cmd.Printf("Safe:         %t\n", riskScorer.IsSafe(args[0]))
	if len(report.FlaggedKeywords) > 0 {
		cmd.Println("Flagged keywords:")
		for _, kw := range report.FlaggedKeywords {
			cmd.Printf("  - %s (%s)\n", kw.Keyword, kw.Category)
		}
	}
	if len(report.ComplianceIssues) > 0 {
		cmd.Println("Compliance issues:")
		for _, issue := range report.ComplianceIssues {
			cmd.Printf("  - %s\n", issue)
		}
	}
	cmd.Println("Recommendations:")
	for _, rec := range report.Recommendations {
		cmd.Printf("  - %s\n", rec)
	}
	return nil
}
