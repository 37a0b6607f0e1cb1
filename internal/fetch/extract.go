package fetch

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector matches elements removed before extraction: chrome,
// scripts, ads, and other boilerplate that pollutes page text.
const noiseSelector = "nav, footer, header, aside, script, style, noscript, form, iframe, .ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup"

// contentSelectors are tried in order to locate the main content block;
// extraction falls back to <body> when none match.
var contentSelectors = []string{
	"main",
	"article",
	"[role='main']",
	".content",
	"#content",
	".main-content",
	"#main-content",
}

// ExtractMainText parses HTML and returns the main body text with noise
// elements removed and whitespace normalized.
func ExtractMainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	var content *goquery.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	if content == nil {
		content = doc.Find("body")
	}

	return normalizeWhitespace(content.Text()), nil
}

// normalizeWhitespace trims each line and drops blank ones.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// TruncateText caps text at max characters (runes, not bytes). When the
// cap cuts mid-text, the result is trimmed back to the last sentence end
// if one exists past the halfway point.
func TruncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	truncated := string(runes[:max])
	if idx := strings.LastIndex(truncated, "."); idx >= 0 && utf8.RuneCountInString(truncated[:idx]) > max/2 {
		truncated = truncated[:idx+1]
	}
	return truncated
}
