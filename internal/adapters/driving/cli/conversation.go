package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/emma/internal/adapters/driving/httpapi"
)

var (
	conversationExportOutput string
	serverURL                string
)

// Conversations are held in the memory of `emma serve`, so these commands
// talk to it over HTTP instead of bootstrapping their own services.
var conversationCmd = &cobra.Command{
	Use:   "conversation",
	Short: "Inspect conversations held by a running emma serve",
	Long: `Reads conversations from a running "emma serve" instance through its
HTTP API. Use --server when it does not listen on the default address.`,
	Annotations: map[string]string{noBootstrap: "true"},
}

var conversationExportCmd = &cobra.Command{
	Use:         "export [conversation-id]",
	Short:       "Export a conversation as JSON",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{noBootstrap: "true"},
	RunE:        runConversationExport,
}

var conversationStatsCmd = &cobra.Command{
	Use:         "stats",
	Short:       "Show conversation statistics",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{noBootstrap: "true"},
	RunE:        runConversationStats,
}

func init() {
	conversationCmd.PersistentFlags().StringVar(&serverURL, "server", httpapi.DefaultServerURL,
		"base URL of the running emma serve")
	conversationExportCmd.Flags().StringVarP(&conversationExportOutput, "output", "o", "", "write the export to a file")
	conversationCmd.AddCommand(conversationExportCmd)
	conversationCmd.AddCommand(conversationStatsCmd)
	rootCmd.AddCommand(conversationCmd)
}

func runConversationExport(cmd *cobra.Command, args []string) error {
	export, err := httpapi.NewClient(serverURL, nil).Export(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	if conversationExportOutput != "" {
		if err := os.WriteFile(conversationExportOutput, data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", conversationExportOutput, err)
		}
		cmd.Printf("Exported %d message(s) to %s\n", len(export.Messages), conversationExportOutput)
		return nil
	}
	cmd.Println(string(data))
	return nil
}

func runConversationStats(cmd *cobra.Command, _ []string) error {
	stats, err := httpapi.NewClient(serverURL, nil).Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	cmd.Printf("Conversations: %d (active %d, paused %d, ended %d)\n",
		stats.TotalConversations, stats.ActiveConversations, stats.PausedConversations, stats.EndedConversations)
	cmd.Printf("Sessions:      %d\n", stats.TotalSessions)
	cmd.Printf("Messages:      %d (average %.1f per conversation)\n", stats.TotalMessages, stats.AverageLength)
	if !stats.LastCleanup.IsZero() {
		cmd.Printf("Last cleanup:  %s\n", stats.LastCleanup.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
