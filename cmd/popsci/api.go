package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/popsci/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running popsci server via HTTP.

These commands require a running server (popsci serve).
Use --server to specify a custom server URL.

Examples:
  popsci api health                              # Check server health
  popsci api paper interpret 10.1038/nature14539 # Start a task
  popsci api paper status <task-id> --wait       # Follow a task
  popsci api paper download <task-id> article.pdf`,
}

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Paper interpretation commands",
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt template commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.MetricsEndpoint{}).Command(getServerURL))

	for _, ep := range endpoints.PaperCommands() {
		paperCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.PromptCommands() {
		promptsCmd.AddCommand(ep.Command(getServerURL))
	}

	apiCmd.AddCommand(paperCmd)
	apiCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(apiCmd)
}
