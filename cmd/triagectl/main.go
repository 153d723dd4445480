// Command triagectl classifies emails from the command line and runs
// operator tasks against the triage database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dromeas/triage/internal/logging"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "triagectl",
		Short: "Dromeas email triage operator CLI",
		Long: `triagectl talks to the configured AI providers directly and prints
classifications as JSON. It also applies database migrations and issues API keys.

Provider credentials come from ANTHROPIC_API_KEY, OPENAI_API_KEY and GEMINI_API_KEY
(or a .env file).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Init(cmd.ErrOrStderr(), logging.ParseLevel(logLevel))
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")

	root.AddCommand(classifyCmd())
	root.AddCommand(consensusCmd())
	root.AddCommand(askCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(keysCmd())

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
