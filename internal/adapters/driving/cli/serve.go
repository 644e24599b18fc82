package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/emma/internal/adapters/driving/httpapi"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the JSON API under /api together with the background
scheduler that reaps expired conversations. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "HTTP port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	server, err := httpapi.NewServer(httpapi.Services{
		Chat:          chatService,
		Retrieval:     retrievalService,
		Risk:          riskScorer,
		Conversations: conversationService,
		Generator:     generatorName,
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", servePort)
	g, ctx := errgroup.WithContext(cmd.Context())

	if scheduler != nil {
		g.Go(func() error {
			return scheduler.Start(ctx)
		})
	}
	g.Go(func() error {
		cmd.Printf("EMMA API listening on http://localhost%s/api\n", addr)
		return server.Serve(ctx, addr)
	})

	return g.Wait()
}
