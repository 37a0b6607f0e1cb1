package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/websearch-agent/internal/cache"
	"github.com/jonathan/websearch-agent/internal/config"
	"github.com/jonathan/websearch-agent/internal/fetch"
	"github.com/jonathan/websearch-agent/internal/llm"
	"github.com/jonathan/websearch-agent/internal/logging"
	"github.com/jonathan/websearch-agent/internal/observability"
	"github.com/jonathan/websearch-agent/internal/pipeline"
	"github.com/jonathan/websearch-agent/internal/prompts"
	"github.com/jonathan/websearch-agent/internal/robots"
	"github.com/jonathan/websearch-agent/internal/search"
	"github.com/jonathan/websearch-agent/internal/urlutil"
)

var searchCommand = &cobra.Command{
	Use:   "search [query...]",
	Short: "Run the search pipeline for a query",
	Long:  "Runs the full pipeline: query expansion, concurrent web search, relevance filtering, polite page fetching, per-page summarization, and final merge.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearchCmd,
}

var (
	searchConfigPath string
	searchJSONOutput bool
)

func init() {
	searchCommand.Flags().StringVar(&searchConfigPath, "config", "", "Path to config.yaml (defaults apply when omitted)")
	searchCommand.Flags().BoolVar(&searchJSONOutput, "json", false, "Print the result as JSON instead of formatted text")

	rootCmd.AddCommand(searchCommand)
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := config.Load(searchConfigPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	promptStore, err := prompts.Load(cfg.Paths.Prompts)
	if err != nil {
		return err
	}

	// Ctrl-C cancels the run and releases all in-flight work.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llmClient, err := llm.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature, logger)
	if err != nil {
		return err
	}
	defer func() { _ = llmClient.Close() }()

	store, err := cache.NewStore(cfg.Cache.Directory, cfg.Cache.Enabled, logger)
	if err != nil {
		return err
	}

	fetcher := fetch.NewFetcher(
		cfg.Fetching,
		urlutil.NewFilter(cfg.Filtering.DisallowedDomains),
		robots.NewChecker(logger),
		store,
		logger,
	)
	searchClient := search.NewHTTPClient(cfg.Search.Endpoint, cfg.Search.APIKey, logger)

	p := pipeline.New(cfg, llmClient, searchClient, fetcher, promptStore, logger)

	result, err := p.Run(ctx, query)
	if err != nil {
		return err
	}

	if searchJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	observability.NewPrinter(os.Stdout).PrintResult(query, result)
	if result.Warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", result.Warning)
	}
	return nil
}
