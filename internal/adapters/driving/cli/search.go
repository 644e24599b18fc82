package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/emma/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Long: `Searches NHS FAQs, guidelines and documents.
Combines keyword matching with semantic (vector) search when an
embedding backend is configured.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultTopK, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	results, err := retrievalService.Query(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

type searchResultJSON struct {
	ID       string  `json:"id"`
	RecordID string  `json:"record_id,omitempty"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
}

func outputSearchJSON(cmd *cobra.Command, results []domain.RetrievalResult) error {
	out := make([]searchResultJSON, len(results))
	for i := range results {
		out[i] = searchResultJSON{
			ID:       results[i].ID,
			RecordID: results[i].RecordID,
			Source:   string(results[i].Source),
			Score:    results[i].Score,
			Snippet:  results[i].Snippet(),
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.RetrievalResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s (%s %.2f)\n", i+1, sourceLabel(results[i]), results[i].Source, results[i].Score)
		if rec := results[i].Record; rec != nil && rec.Category != "" {
			cmd.Printf("      Category: %s\n", rec.Category)
		}
		if snippet := results[i].Snippet(); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
}
