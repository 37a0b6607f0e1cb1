package pipeline

import (
	"errors"
	"fmt"

	"github.com/jonathan/websearch-agent/internal/fetch"
)

// Document is one source in the final result, with its per-source
// summary. Field names are part of the serialized contract.
type Document struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	Relevance   int    `json:"relevance"`
	Summary     string `json:"summary"`
	Source      string `json:"source"`
	BetterQuery string `json:"better_query"`
}

// Result is the pipeline output: ranked source documents and the
// consolidated answer grounded in their summaries.
type Result struct {
	Documents   []Document `json:"documents"`
	FinalAnswer string     `json:"final_answer"`
	Warning     string     `json:"warning,omitempty"`
}

// candidate is the run-scoped state of one deduplicated search hit as it
// moves through the phases.
type candidate struct {
	title       string
	snippet     string
	canonical   string
	betterQuery string
	queryIndex  int // first-seen sub-query index
	relevance   int
	doc         *fetch.Doc
	summary     string
}

// ErrEmptyQuery rejects a blank input query.
var ErrEmptyQuery = errors.New("query must not be empty")

// ErrRunCancelled is returned when the run's context is cancelled; any
// partial results are discarded.
var ErrRunCancelled = errors.New("run cancelled")

// AbortError reports a structural failure of a phase the pipeline cannot
// skip or degrade.
type AbortError struct {
	Phase string
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("pipeline aborted in %s phase: %v", e.Phase, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}
