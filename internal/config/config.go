// Package config provides typed configuration loading and validation for
// the search pipeline. Settings are read from a nested YAML file, with
// environment variables overriding the API keys.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LLM holds the language-model provider settings.
type LLM struct {
	APIKey        string  `yaml:"api_key" validate:"required"`
	Model         string  `yaml:"model" validate:"required"`
	Temperature   float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxConcurrent int     `yaml:"max_concurrent" validate:"gte=1"`
}

// LLMTokens caps the output tokens of each pipeline LLM call.
type LLMTokens struct {
	BetterQueries    int `yaml:"better_queries" validate:"gt=0"`
	RelevanceCheck   int `yaml:"relevance_check" validate:"gt=0"`
	SummarizeContent int `yaml:"summarize_content" validate:"gt=0"`
	MergeSummaries   int `yaml:"merge_summaries" validate:"gt=0"`
}

// Search holds the web-search provider settings and result caps.
type Search struct {
	APIKey             string `yaml:"api_key"`
	Endpoint           string `yaml:"endpoint" validate:"required,url"`
	MaxResultsPerQuery int    `yaml:"max_results_per_query" validate:"gte=1"`
	TotalMaxResults    int    `yaml:"total_max_results" validate:"gte=1"`
	NumBetterQueries   int    `yaml:"num_better_queries" validate:"gte=1"`
}

// Fetching holds the HTTP politeness and extraction settings.
type Fetching struct {
	MaxConcurrentFetches int     `yaml:"max_concurrent_fetches" validate:"gte=1"`
	PerDomainDelay       float64 `yaml:"per_domain_delay" validate:"gte=0"` // seconds
	FetchTimeout         int     `yaml:"fetch_timeout" validate:"gt=0"`    // seconds
	UserAgent            string  `yaml:"user_agent" validate:"required"`
	AcceptEncoding       string  `yaml:"accept_encoding"`
	MaxContentChars      int     `yaml:"max_content_chars" validate:"gte=1"`
}

// Filtering holds the relevance threshold and the domain blocklist.
type Filtering struct {
	MinRelevanceScore int      `yaml:"min_relevance_score" validate:"gte=0,lte=5"`
	DisallowedDomains []string `yaml:"disallowed_domains"`
}

// Cache controls the on-disk content cache.
type Cache struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// Paths locates external resource files.
type Paths struct {
	Prompts string `yaml:"prompts"`
}

// Logging controls observability verbosity and the optional log file.
type Logging struct {
	Level string `yaml:"level" validate:"required"`
	File  string `yaml:"file"`
}

// Config is the full application configuration, resolved once at
// construction time.
type Config struct {
	LLM       LLM       `yaml:"llm"`
	LLMTokens LLMTokens `yaml:"llm_tokens"`
	Search    Search    `yaml:"search"`
	Fetching  Fetching  `yaml:"fetching"`
	Filtering Filtering `yaml:"filtering"`
	Cache     Cache     `yaml:"cache"`
	Paths     Paths     `yaml:"paths"`
	Logging   Logging   `yaml:"logging"`
}

// Default returns the built-in configuration defaults. The API keys are
// intentionally empty; the LLM key is required and must come from the
// YAML file or environment, while the search key may stay empty.
func Default() *Config {
	return &Config{
		LLM: LLM{
			Model:         "gemini-2.5-flash",
			Temperature:   0.2,
			MaxConcurrent: 8,
		},
		LLMTokens: LLMTokens{
			BetterQueries:    512,
			RelevanceCheck:   100,
			SummarizeContent: 2048,
			MergeSummaries:   4096,
		},
		Search: Search{
			Endpoint:           "https://s.jina.ai/search",
			MaxResultsPerQuery: 5,
			TotalMaxResults:    12,
			NumBetterQueries:   10,
		},
		Fetching: Fetching{
			MaxConcurrentFetches: 20,
			PerDomainDelay:       0.8,
			FetchTimeout:         30,
			UserAgent:            "Mozilla/5.0 (compatible; WebSearchAgent/1.0)",
			AcceptEncoding:       "gzip, deflate, br",
			MaxContentChars:      8000,
		},
		Filtering: Filtering{
			MinRelevanceScore: 3,
			DisallowedDomains: []string{"youtube.com", "youtu.be"},
		},
		Cache: Cache{
			Enabled:   true,
			Directory: "cache",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load resolves the configuration: defaults, overlaid by the YAML file at
// path (if non-empty), overlaid by the LLM_API_KEY and SEARCH_API_KEY
// environment variables, then validated. Validation failure is fatal.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if key := os.Getenv("SEARCH_API_KEY"); key != "" {
		cfg.Search.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks all field constraints. The returned error names the
// first offending field.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: field %s fails constraint %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Enabled && c.Cache.Directory == "" {
		return fmt.Errorf("invalid config: cache.directory is required when the cache is enabled")
	}
	return nil
}

// PerDomainDelayDuration returns the minimum spacing between fetches to
// the same origin as a duration.
func (f *Fetching) PerDomainDelayDuration() time.Duration {
	return time.Duration(f.PerDomainDelay * float64(time.Second))
}

// FetchTimeoutDuration returns the total HTTP fetch timeout as a duration.
func (f *Fetching) FetchTimeoutDuration() time.Duration {
	return time.Duration(f.FetchTimeout) * time.Second
}
