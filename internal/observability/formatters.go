// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/websearch-agent/internal/pipeline"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 78
	// snippetPreviewLen caps how much of a summary is shown per source
	snippetPreviewLen = 200
)

// Printer handles formatted output for the search command
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		for len(line) > boxWidth-4 {
			fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line[:boxWidth-4])
			line = line[boxWidth-4:]
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintResult outputs a human-readable rendering of a pipeline result:
// one block per source document, then the consolidated answer.
func (p *Printer) PrintResult(query string, result *pipeline.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	if len(result.Documents) == 0 {
		sb.WriteString("No sources found.\n")
	}
	for i, d := range result.Documents {
		sb.WriteString(fmt.Sprintf("%d. [%d/5] %s\n", i+1, d.Relevance, d.Title))
		sb.WriteString(fmt.Sprintf("   %s (%s)\n", d.URL, d.Source))
		summary := d.Summary
		if len(summary) > snippetPreviewLen {
			summary = summary[:snippetPreviewLen] + "..."
		}
		sb.WriteString("   " + strings.ReplaceAll(summary, "\n", " ") + "\n")
	}
	p.printBox(fmt.Sprintf("Sources for: %s", query), strings.TrimRight(sb.String(), "\n"))

	answer := result.FinalAnswer
	if result.Warning != "" {
		answer = "(" + result.Warning + ")\n\n" + answer
	}
	p.printBox("Answer", answer)
}
