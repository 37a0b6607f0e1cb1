package llm

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// CleanJSONBlock strips a markdown code fence from around a JSON
// response. Models wrap JSON in ```json ... ``` even when told not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// Drop a language identifier on the opening fence line.
	if idx := strings.Index(text, "\n"); idx >= 0 && !strings.ContainsAny(text[:idx], "{[") {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// ValidateAgainstSchema checks a JSON document against a JSON Schema.
// Either an unparseable document or a schema violation is an error.
func ValidateAgainstSchema(schema, document string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(document),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("schema violation: %s", strings.Join(details, "; "))
	}
	return nil
}
