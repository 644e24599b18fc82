package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/emma/internal/adapters/driven/importer"
	"github.com/custodia-labs/emma/internal/core/domain"
)

var (
	knowledgeListKind string
	knowledgeListJSON bool

	knowledgeAddKind     string
	knowledgeAddTitle    string
	knowledgeAddCategory string
	knowledgeAddTags     []string
	knowledgeAddFile     string
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the knowledge base",
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge records",
	Args:  cobra.NoArgs,
	RunE:  runKnowledgeList,
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add [body]",
	Short: "Add a record to the knowledge base",
	Long: `Adds an FAQ, guideline or document. The body is taken from the
argument or, with --file, from a Markdown, HTML or plain text file whose
markup is stripped and whose heading becomes the title. The record is
embedded and indexed when an embedding backend is configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKnowledgeAdd,
}

func init() {
	knowledgeListCmd.Flags().StringVar(&knowledgeListKind, "kind", "", "only list records of this kind (faq, guideline, document)")
	knowledgeListCmd.Flags().BoolVar(&knowledgeListJSON, "json", false, "output records as JSON")

	knowledgeAddCmd.Flags().StringVarP(&knowledgeAddKind, "kind", "k", string(domain.KindDocument), "record kind (faq, guideline, document)")
	knowledgeAddCmd.Flags().StringVarP(&knowledgeAddTitle, "title", "t", "", "question or title")
	knowledgeAddCmd.Flags().StringVarP(&knowledgeAddCategory, "category", "c", "", "category, e.g. appointments")
	knowledgeAddCmd.Flags().StringSliceVar(&knowledgeAddTags, "tags", nil, "comma-separated tags")
	knowledgeAddCmd.Flags().StringVarP(&knowledgeAddFile, "file", "f", "", "read the body from a file")

	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeAddCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

func runKnowledgeList(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	var records []domain.KnowledgeRecord
	for _, rec := range retrievalService.Records() {
		if knowledgeListKind != "" && rec.Kind.String() != knowledgeListKind {
			continue
		}
		records = append(records, rec)
	}

	if knowledgeListJSON {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal records: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(records) == 0 {
		cmd.Println("No knowledge records.")
		return nil
	}
	for i := range records {
		rec := &records[i]
		cmd.Printf("  %-14s %-10s %s\n", rec.ID, rec.Kind, rec.PrimaryText)
	}
	cmd.Printf("\n%d record(s)\n", len(records))
	return nil
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	var draft domain.KnowledgeRecord
	switch {
	case knowledgeAddFile != "":
		rec, err := importer.ReadFile(knowledgeAddFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", knowledgeAddFile, err)
		}
		draft = rec
	case len(args) == 1:
		draft.BodyText = strings.TrimSpace(args[0])
	default:
		return errors.New("a body argument or --file is required")
	}

	draft.Kind = domain.KnowledgeKind(strings.ToLower(knowledgeAddKind))
	if knowledgeAddTitle != "" {
		draft.PrimaryText = knowledgeAddTitle
	}
	draft.Category = knowledgeAddCategory
	draft.Tags = append(draft.Tags, knowledgeAddTags...)

	stored, err := retrievalService.AddDocument(cmd.Context(), draft)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}

	cmd.Printf("Added %s %s\n", stored.Kind, stored.ID)
	return nil
}
