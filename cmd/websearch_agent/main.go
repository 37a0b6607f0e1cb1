// Package main provides the command-line entry point for the web search
// pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "websearch_agent",
	Short: "Answer questions from the public web",
	Long:  "websearch_agent answers a natural-language question by expanding it into sub-queries, searching the web, fetching and summarizing relevant pages, and merging the summaries into a single grounded answer.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
