package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/doctalk/internal/cli"
	"github.com/cloo-solutions/doctalk/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "doctalk",
		Short: "Doctalk CLI - Chat with your documents",
		Long: `Doctalk CLI provides commands to index documents and ask questions
grounded in them.

Environment variables:
  DOCTALK_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SessionsCmd())
	rootCmd.AddCommand(client.IndexCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
