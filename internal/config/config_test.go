package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	path := writeConfig(t, "llm:\n  api_key: test-key\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, 10, cfg.Search.NumBetterQueries)
	assert.Equal(t, 12, cfg.Search.TotalMaxResults)
	assert.Equal(t, 20, cfg.Fetching.MaxConcurrentFetches)
	assert.Equal(t, 3, cfg.Filtering.MinRelevanceScore)
	assert.Contains(t, cfg.Filtering.DisallowedDomains, "youtube.com")
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: test-key
  model: gemini-2.5-pro
  temperature: 0.7
search:
  num_better_queries: 3
  total_max_results: 5
fetching:
  per_domain_delay: 0
  max_concurrent_fetches: 2
filtering:
  min_relevance_score: 5
  disallowed_domains: [example.net]
cache:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 3, cfg.Search.NumBetterQueries)
	assert.Equal(t, 5, cfg.Search.TotalMaxResults)
	assert.Zero(t, cfg.Fetching.PerDomainDelayDuration())
	assert.Equal(t, 2, cfg.Fetching.MaxConcurrentFetches)
	assert.Equal(t, 5, cfg.Filtering.MinRelevanceScore)
	assert.Equal(t, []string{"example.net"}, cfg.Filtering.DisallowedDomains)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoad_EnvOverridesAPIKeys(t *testing.T) {
	t.Setenv("LLM_API_KEY", "env-llm-key")
	t.Setenv("SEARCH_API_KEY", "env-search-key")

	path := writeConfig(t, "llm:\n  api_key: file-key\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-llm-key", cfg.LLM.APIKey)
	assert.Equal(t, "env-search-key", cfg.Search.APIKey)
}

func TestLoad_MissingAPIKeyFails(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	path := writeConfig(t, "logging:\n  level: debug\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), "APIKey")
}

func TestValidate_Ranges(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.LLM.APIKey = "k"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"temperature above 2", func(c *Config) { c.LLM.Temperature = 2.5 }},
		{"zero better queries", func(c *Config) { c.Search.NumBetterQueries = 0 }},
		{"zero total results", func(c *Config) { c.Search.TotalMaxResults = 0 }},
		{"relevance above 5", func(c *Config) { c.Filtering.MinRelevanceScore = 6 }},
		{"negative delay", func(c *Config) { c.Fetching.PerDomainDelay = -1 }},
		{"zero fetch timeout", func(c *Config) { c.Fetching.FetchTimeout = 0 }},
		{"zero concurrent fetches", func(c *Config) { c.Fetching.MaxConcurrentFetches = 0 }},
		{"zero content chars", func(c *Config) { c.Fetching.MaxContentChars = 0 }},
		{"cache enabled without directory", func(c *Config) { c.Cache.Directory = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := writeConfig(t, "llm: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}
