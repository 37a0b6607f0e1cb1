// Package llm wraps a chat-completion provider behind a two-operation
// client: free-form text completion and schema-constrained structured
// completion. Transient provider failures are retried with exponential
// backoff; terminal failures surface as ErrUnavailable or ErrBadOutput,
// never as silently substituted defaults.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the provider could not produce a response:
// transport failures, 5xx, and rate limits after retries, or a terminal
// provider rejection.
var ErrUnavailable = errors.New("llm unavailable")

// ErrBadOutput indicates the provider responded but the output did not
// match what was asked for (schema mismatch, unparseable JSON, empty
// response) even after retries.
var ErrBadOutput = errors.New("llm returned invalid output")

// Client is the provider-neutral contract the pipeline depends on. Both
// calls honor context cancellation and their own per-call budget.
type Client interface {
	// CompleteText returns a free-form completion for the system and user
	// prompts, capped at maxTokens output tokens.
	CompleteText(ctx context.Context, system, user string, maxTokens int) (string, error)

	// CompleteStructured requests a completion constrained to the given
	// JSON Schema (a JSON document) and unmarshals the validated result
	// into out.
	CompleteStructured(ctx context.Context, system, user, schema string, maxTokens int, out any) error

	// Close releases provider resources.
	Close() error
}
