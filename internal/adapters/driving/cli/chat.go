package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/emma/internal/core/domain"
)

var (
	chatMessage string
	chatSession string
	chatUser    string
	chatSources bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with EMMA",
	Long: `Starts an interactive chat session with EMMA. Type "exit" or "quit"
to leave. Use --message to send a single message and print the reply.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "send one message and exit")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "session id (default: new random id)")
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "", "user id")
	chatCmd.Flags().BoolVar(&chatSources, "sources", false, "show the knowledge records used for each reply")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	session := chatSession
	if session == "" {
		session = uuid.NewString()
	}

	if chatMessage != "" {
		return sendChat(cmd, session, chatMessage)
	}

	cmd.Printf("EMMA (session %s). Type \"exit\" to quit.\n\n", session)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("you> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			cmd.Println("Goodbye.")
			return nil
		}
		if err := sendChat(cmd, session, line); err != nil {
			return err
		}
		if err := cmd.Context().Err(); err != nil {
			return nil
		}
	}
}

func sendChat(cmd *cobra.Command, session, message string) error {
	resp, err := chatService.ProcessMessage(cmd.Context(), domain.ChatRequest{
		SessionID: session,
		UserID:    chatUser,
		Message:   message,
		Metadata:  map[string]any{"platform": "cli"},
	})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	cmd.Printf("emma> %s\n", resp.Response)
	if resp.Blocked {
		cmd.Printf("      (blocked, safety score %.2f)\n", resp.SafetyScore)
	}
	if chatSources {
		for _, src := range resp.Sources {
			cmd.Printf("      source: %s (%s, %.2f)\n", sourceLabel(src), src.Source, src.Score)
		}
	}
	cmd.Println()
	return nil
}

func sourceLabel(r domain.RetrievalResult) string {
	if r.Record != nil && r.Record.PrimaryText != "" {
		return r.Record.PrimaryText
	}
	if r.RecordID != "" {
		return r.RecordID
	}
	return r.ID
}
