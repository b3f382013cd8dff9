package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parabrain",
	Short: "PARA knowledge base API with project-aware LLM chat",
	Long: `parabrain serves the HTTP API for projects, areas, notes and tags,
and a chat agent whose system prompt is grounded in the selected project
and its linked notes.

Configuration comes from the environment (and a .env file when present).
Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetUserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
