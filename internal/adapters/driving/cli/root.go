// Package cli implements the emma command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/emma/internal/core/ports/driving"
	"github.com/custodia-labs/emma/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services are the driving ports the commands run against.
type Services struct {
	Chat          driving.ChatService
	Retrieval     driving.RetrievalService
	Risk          driving.RiskScorer
	Conversations driving.ConversationService
	Scheduler     driving.Scheduler

	// Generator names the response model, empty for fallback replies.
	Generator string
}

// Options carry the global flags into Bootstrap.
type Options struct {
	ConfigDir string
	InMemory  bool
}

// Bootstrap builds Services for a command run. The returned close
// function releases stores and backends.
type Bootstrap func(ctx context.Context, opts Options) (Services, func() error, error)

var (
	chatService         driving.ChatService
	retrievalService    driving.RetrievalService
	riskScorer          driving.RiskScorer
	conversationService driving.ConversationService
	scheduler           driving.Scheduler
	generatorName       string

	bootstrap    Bootstrap
	closeBackend func() error
)

var (
	verboseFlag   bool
	configDirFlag string
	inMemoryFlag  bool
)

// noBootstrap marks commands that run without services.
const noBootstrap = "no-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "emma",
	Short: "EMMA healthcare assistant",
	Long: `EMMA (Electronic Medical Management Assistant) answers patient
questions from an NHS knowledge base, gates every message through a
safety scorer and keeps an auditable conversation history.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "configuration directory (default ~/.emma)")
	rootCmd.PersistentFlags().BoolVar(&inMemoryFlag, "in-memory", false, "keep knowledge and scheduler state in memory only")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetBootstrap installs the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices injects the services used by commands.
func SetServices(s Services) {
	chatService = s.Chat
	retrievalService = s.Retrieval
	riskScorer = s.Risk
	conversationService = s.Conversations
	scheduler = s.Scheduler
	generatorName = s.Generator
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if closeErr := teardown(nil, nil); err == nil {
		err = closeErr
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verboseFlag)

	if bootstrap == nil || cmd.Annotations[noBootstrap] == "true" || chatService != nil {
		return nil
	}

	svc, closer, err := bootstrap(cmd.Context(), Options{
		ConfigDir: configDirFlag,
		InMemory:  inMemoryFlag,
	})
	if err != nil {
		return fmt.Errorf("initialising services: %w", err)
	}
	SetServices(svc)
	closeBackend = closer
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeBackend == nil {
		return nil
	}
	err := closeBackend()
	closeBackend = nil
	return err
}
