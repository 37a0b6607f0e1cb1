// Package prompts loads named LLM prompt templates from YAML and renders
// them with placeholder substitution. A default template set is embedded
// at compile time; an external file can replace it.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// ErrMissing is returned when a requested prompt name is not defined.
var ErrMissing = errors.New("prompt not found")

// ErrPlaceholderMissing is returned when a template placeholder has no
// binding in the provided variables.
var ErrPlaceholderMissing = errors.New("prompt placeholder missing")

// placeholderRe matches {name} placeholders in templates.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Store holds the loaded name → template mapping.
type Store struct {
	prompts map[string]string
}

// Load reads templates from the YAML file at path, or the embedded
// defaults when path is empty.
func Load(path string) (*Store, error) {
	data := defaultPrompts
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompts file %s: %w", path, err)
		}
	}
	return parse(data)
}

func parse(data []byte) (*Store, error) {
	prompts := make(map[string]string)
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("failed to parse prompts: no templates defined")
	}
	return &Store{prompts: prompts}, nil
}

// Render substitutes {name} placeholders in the named template with the
// given variables. Substitution is a single pass over the template, so
// literal braces inside variable values are preserved verbatim. Rendering
// with identical vars is deterministic.
func (s *Store) Render(name string, vars map[string]string) (string, error) {
	tmpl, ok := s.prompts[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissing, name)
	}

	var sb strings.Builder
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(tmpl, -1) {
		sb.WriteString(tmpl[last:m[0]])
		key := tmpl[m[2]:m[3]]
		val, bound := vars[key]
		if !bound {
			return "", fmt.Errorf("%w: %q in prompt %q", ErrPlaceholderMissing, key, name)
		}
		sb.WriteString(val)
		last = m[1]
	}
	sb.WriteString(tmpl[last:])

	return sb.String(), nil
}

// Names returns the defined prompt names.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.prompts))
	for name := range s.prompts {
		names = append(names, name)
	}
	return names
}
