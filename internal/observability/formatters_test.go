package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/websearch-agent/internal/pipeline"
)

func TestPrintResult_IncludesDocumentsAndAnswer(t *testing.T) {
	var sb strings.Builder
	p := NewPrinter(&sb)

	p.PrintResult("test query", &pipeline.Result{
		Documents: []pipeline.Document{
			{Title: "First Source", URL: "https://a.test/1", Relevance: 5, Summary: "summary text", Source: "network"},
		},
		FinalAnswer: "the consolidated answer",
	})

	out := sb.String()
	assert.Contains(t, out, "test query")
	assert.Contains(t, out, "First Source")
	assert.Contains(t, out, "https://a.test/1")
	assert.Contains(t, out, "the consolidated answer")
}

func TestPrintResult_EmptyResult(t *testing.T) {
	var sb strings.Builder
	p := NewPrinter(&sb)

	p.PrintResult("q", &pipeline.Result{})
	assert.Contains(t, sb.String(), "No sources found.")
}

func TestPrintResult_WarningShown(t *testing.T) {
	var sb strings.Builder
	p := NewPrinter(&sb)

	p.PrintResult("q", &pipeline.Result{
		Documents:   []pipeline.Document{{Title: "T", URL: "https://a.test/1", Summary: "s"}},
		FinalAnswer: "fallback",
		Warning:     "final answer merge failed",
	})
	assert.Contains(t, sb.String(), "merge failed")
}

func TestPrintResult_NilIsNoOp(t *testing.T) {
	var sb strings.Builder
	NewPrinter(&sb).PrintResult("q", nil)
	assert.Empty(t, sb.String())
}
