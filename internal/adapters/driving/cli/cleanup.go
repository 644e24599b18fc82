package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/emma/internal/adapters/driving/httpapi"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired sessions and conversations from a running emma serve",
	Long: `Asks a running "emma serve" instance to remove sessions and
conversations that have been idle longer than its configured maximum
session duration. The server also does this hourly on its own.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{noBootstrap: "true"},
	RunE:        runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVar(&serverURL, "server", httpapi.DefaultServerURL, "base URL of the running emma serve")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	res, err := httpapi.NewClient(serverURL, nil).Cleanup(cmd.Context())
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	cmd.Printf("Removed %d session(s) and %d conversation(s).\n", res.SessionsRemoved, res.ConversationsRemoved)
	return nil
}
