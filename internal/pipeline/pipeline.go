// Package pipeline orchestrates the six-phase search run: query
// expansion, concurrent web search, LLM relevance filtering, polite page
// fetching, per-page summarization, and a final merge. Phase boundaries
// are barriers; inside a phase work fans out under the configured
// concurrency caps.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/websearch-agent/internal/config"
	"github.com/jonathan/websearch-agent/internal/fetch"
	"github.com/jonathan/websearch-agent/internal/llm"
	"github.com/jonathan/websearch-agent/internal/prompts"
	"github.com/jonathan/websearch-agent/internal/search"
	"github.com/jonathan/websearch-agent/internal/urlutil"
)

// queriesSchema constrains the expansion output to a non-empty list of
// sub-query strings.
const queriesSchema = `{
	"type": "object",
	"required": ["queries"],
	"properties": {"queries": {"type": "array", "minItems": 1, "items": {"type": "string"}}}
}`

// scoreSchema constrains the relevance output to an integer 0..5.
const scoreSchema = `{
	"type": "object",
	"required": ["score"],
	"properties": {"score": {"type": "integer", "minimum": 0, "maximum": 5}}
}`

// Fetcher is the page-fetching contract the pipeline depends on; the
// fetcher enforces its own politeness limits.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Doc, error)
}

// Pipeline wires the clients and run-independent configuration. One
// Pipeline serves many runs; all run-scoped state lives on the stack of
// Run.
type Pipeline struct {
	cfg     *config.Config
	llm     llm.Client
	search  search.Client
	fetcher Fetcher
	prompts *prompts.Store
	filter  *urlutil.Filter
	logger  *zap.Logger
}

// New builds a Pipeline from its collaborators.
func New(cfg *config.Config, llmClient llm.Client, searchClient search.Client, fetcher Fetcher, promptStore *prompts.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		llm:     llmClient,
		search:  searchClient,
		fetcher: fetcher,
		prompts: promptStore,
		filter:  urlutil.NewFilter(cfg.Filtering.DisallowedDomains),
		logger:  logger.Named("pipeline"),
	}
}

// Run executes the full pipeline for one query. A cancelled context
// yields ErrRunCancelled with partial results discarded.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	logger := p.logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("starting run", zap.String("query", query))

	system, err := p.prompts.Render("system_prompt", map[string]string{})
	if err != nil {
		return nil, err
	}
	r := &run{p: p, query: query, system: system, logger: logger}

	// Phase 1: expand the query into sub-queries.
	queries, err := r.expand(ctx)
	if err != nil {
		return nil, err
	}
	if err := barrier(ctx); err != nil {
		return nil, err
	}
	logger.Info("expanded query", zap.Int("sub_queries", len(queries)))

	// Phase 2: search all sub-queries, dedup, filter, cap.
	candidates := r.searchAll(ctx, queries)
	if err := barrier(ctx); err != nil {
		return nil, err
	}
	logger.Info("collected candidates", zap.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		return &Result{}, nil
	}

	// Phase 3: score relevance, drop below threshold.
	candidates, err = r.scoreRelevance(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if err := barrier(ctx); err != nil {
		return nil, err
	}
	logger.Info("relevance filtered", zap.Int("kept", len(candidates)))
	if len(candidates) == 0 {
		return &Result{}, nil
	}

	// Phase 4: fetch surviving candidates.
	candidates = r.fetchAll(ctx, candidates)
	if err := barrier(ctx); err != nil {
		return nil, err
	}
	logger.Info("fetched documents", zap.Int("fetched", len(candidates)))

	// Phase 5: summarize each fetched document.
	candidates, err = r.summarizeAll(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if err := barrier(ctx); err != nil {
		return nil, err
	}
	logger.Info("summarized documents", zap.Int("summaries", len(candidates)))

	sortCandidates(candidates)

	// Phase 6: merge summaries into the final answer.
	if len(candidates) == 0 {
		return &Result{}, nil
	}
	answer, warning, err := r.merge(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if err := barrier(ctx); err != nil {
		return nil, err
	}

	result := &Result{
		Documents:   documents(candidates),
		FinalAnswer: answer,
		Warning:     warning,
	}
	logger.Info("run complete", zap.Int("documents", len(result.Documents)))
	return result, nil
}

// barrier is the phase boundary check: a cancelled run stops here.
func barrier(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRunCancelled, err)
	}
	return nil
}

// run carries the per-run immutable inputs through the phase methods.
type run struct {
	p      *Pipeline
	query  string
	system string
	logger *zap.Logger
}

// expand asks the LLM for better sub-queries. An unavailable LLM falls
// back to the raw query; output that never validates aborts the run.
func (r *run) expand(ctx context.Context) ([]string, error) {
	user, err := r.p.prompts.Render("better_queries_prompt", map[string]string{"query": r.query})
	if err != nil {
		return nil, err
	}

	var out struct {
		Queries []string `json:"queries"`
	}
	err = r.p.llm.CompleteStructured(ctx, r.system, user, queriesSchema, r.p.cfg.LLMTokens.BetterQueries, &out)
	switch {
	case errors.Is(err, llm.ErrBadOutput):
		return nil, &AbortError{Phase: "expand", Err: err}
	case err != nil:
		r.logger.Warn("query expansion unavailable, using original query", zap.Error(err))
		return []string{r.query}, nil
	}

	queries := make([]string, 0, len(out.Queries))
	for _, q := range out.Queries {
		q = strings.TrimSpace(q)
		if q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) > r.p.cfg.Search.NumBetterQueries {
		queries = queries[:r.p.cfg.Search.NumBetterQueries]
	}
	if len(queries) == 0 {
		return []string{r.query}, nil
	}
	return queries, nil
}

// searchAll fans out one search per sub-query, then deduplicates by
// canonical URL (first-seen wins, in sub-query order), applies the
// domain filter, and truncates to the total result cap. Sub-queries
// whose search fails contribute nothing.
func (r *run) searchAll(ctx context.Context, queries []string) []candidate {
	hitsByQuery := make([][]search.Hit, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			hits, err := r.p.search.Search(ctx, q, r.p.cfg.Search.MaxResultsPerQuery)
			if err != nil {
				r.logger.Warn("search failed for sub-query", zap.String("sub_query", q), zap.Error(err))
				return nil
			}
			hitsByQuery[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var candidates []candidate
	for i, hits := range hitsByQuery {
		for _, h := range hits {
			canonical, err := urlutil.Canonicalize(h.URL)
			if err != nil {
				r.logger.Debug("dropping unparseable URL", zap.String("url", h.URL), zap.Error(err))
				continue
			}
			if seen[canonical] {
				continue
			}
			seen[canonical] = true
			if !r.p.filter.Allowed(canonical) {
				r.logger.Debug("dropping disallowed URL", zap.String("url", canonical))
				continue
			}
			candidates = append(candidates, candidate{
				title:       h.Title,
				snippet:     h.Snippet,
				canonical:   canonical,
				betterQuery: queries[i],
				queryIndex:  i,
			})
		}
	}

	if len(candidates) > r.p.cfg.Search.TotalMaxResults {
		candidates = candidates[:r.p.cfg.Search.TotalMaxResults]
	}
	return candidates
}

// scoreRelevance assigns each candidate an LLM relevance score under the
// LLM concurrency cap. A failed call scores 0 so one stuck candidate
// cannot stall the run; candidates below the threshold are dropped.
func (r *run) scoreRelevance(ctx context.Context, candidates []candidate) ([]candidate, error) {
	var g errgroup.Group
	g.SetLimit(r.p.cfg.LLM.MaxConcurrent)

	for i := range candidates {
		c := &candidates[i]
		g.Go(func() error {
			user, err := r.p.prompts.Render("relevance_filtering_prompt", map[string]string{
				"query":   r.query,
				"content": c.title + "\n" + c.snippet,
			})
			if err != nil {
				return err
			}

			var out struct {
				Score int `json:"score"`
			}
			if err := r.p.llm.CompleteStructured(ctx, r.system, user, scoreSchema, r.p.cfg.LLMTokens.RelevanceCheck, &out); err != nil {
				r.logger.Warn("relevance scoring failed", zap.String("url", c.canonical), zap.Error(err))
				c.relevance = 0
				return nil
			}
			c.relevance = out.Score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.relevance >= r.p.cfg.Filtering.MinRelevanceScore {
			kept = append(kept, c)
		} else {
			r.logger.Debug("dropping low-relevance candidate",
				zap.String("url", c.canonical), zap.Int("relevance", c.relevance))
		}
	}
	return kept, nil
}

// fetchAll submits all candidates to the fetcher concurrently; the
// fetcher's own gates enforce politeness. Failed or empty fetches drop
// the candidate.
func (r *run) fetchAll(ctx context.Context, candidates []candidate) []candidate {
	var g errgroup.Group
	for i := range candidates {
		c := &candidates[i]
		g.Go(func() error {
			doc, err := r.p.fetcher.Fetch(ctx, c.canonical)
			if err != nil {
				r.logger.Warn("dropping document after fetch failure",
					zap.String("url", c.canonical), zap.Error(err))
				return nil
			}
			if doc.Text == "" {
				r.logger.Warn("dropping document with empty content", zap.String("url", c.canonical))
				return nil
			}
			c.doc = doc
			return nil
		})
	}
	_ = g.Wait()

	kept := candidates[:0]
	for _, c := range candidates {
		if c.doc != nil {
			kept = append(kept, c)
		}
	}
	return kept
}

// summarizeAll produces a per-document summary under the LLM concurrency
// cap. A failed or empty summary drops the document.
func (r *run) summarizeAll(ctx context.Context, candidates []candidate) ([]candidate, error) {
	var g errgroup.Group
	g.SetLimit(r.p.cfg.LLM.MaxConcurrent)

	for i := range candidates {
		c := &candidates[i]
		g.Go(func() error {
			user, err := r.p.prompts.Render("summarize_text_prompt", map[string]string{
				"query":   r.query,
				"content": c.doc.Text,
			})
			if err != nil {
				return err
			}

			summary, err := r.p.llm.CompleteText(ctx, r.system, user, r.p.cfg.LLMTokens.SummarizeContent)
			if err != nil {
				r.logger.Warn("dropping document after summarization failure",
					zap.String("url", c.canonical), zap.Error(err))
				return nil
			}
			c.summary = strings.TrimSpace(summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.summary != "" {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// merge produces the final answer from the per-document summaries. If
// the merge call fails after retries the deterministic concatenation is
// returned instead, with a warning.
func (r *run) merge(ctx context.Context, candidates []candidate) (answer, warning string, err error) {
	user, err := r.p.prompts.Render("merge_summaries_prompt", map[string]string{
		"query":     r.query,
		"summaries": summaryBlock(candidates),
	})
	if err != nil {
		return "", "", err
	}

	answer, llmErr := r.p.llm.CompleteText(ctx, r.system, user, r.p.cfg.LLMTokens.MergeSummaries)
	if llmErr != nil || strings.TrimSpace(answer) == "" {
		r.logger.Warn("merge failed, falling back to concatenated summaries", zap.Error(llmErr))
		return fallbackAnswer(candidates), "final answer merge failed; returning concatenated summaries", nil
	}
	return strings.TrimSpace(answer), "", nil
}

// summaryBlock renders the summaries with provenance markers for the
// merge prompt.
func summaryBlock(candidates []candidate) string {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "== Source %d ==\nURL: %s\nSummary: %s\n\n", i+1, c.canonical, c.summary)
	}
	return strings.TrimSpace(sb.String())
}

// fallbackAnswer is the deterministic merge substitute: the summaries
// concatenated under per-source headers.
func fallbackAnswer(candidates []candidate) string {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "== Source %d ==\n%s\n\n", i+1, c.summary)
	}
	return strings.TrimSpace(sb.String())
}

// sortCandidates orders the final result: relevance descending, then
// first-seen sub-query index ascending, then canonical URL. The sort is
// stable.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.relevance != b.relevance {
			return a.relevance > b.relevance
		}
		if a.queryIndex != b.queryIndex {
			return a.queryIndex < b.queryIndex
		}
		return a.canonical < b.canonical
	})
}

// documents converts the surviving candidates into output documents.
func documents(candidates []candidate) []Document {
	docs := make([]Document, 0, len(candidates))
	for _, c := range candidates {
		docs = append(docs, Document{
			Title:       c.title,
			URL:         c.canonical,
			Snippet:     c.snippet,
			Relevance:   c.relevance,
			Summary:     c.summary,
			Source:      string(c.doc.Source),
			BetterQuery: c.betterQuery,
		})
	}
	return docs
}
