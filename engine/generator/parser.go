package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/core"
)

const generatorAuthor = "conmon-generator"

// parseResponse turns raw LLM output into a validated Check. The
// response is untrusted: fences are stripped, the checks header is
// repaired when missing, exactly one entry is required, and the
// resulting check must pass structural validation before anything
// touches a store.
func parseResponse(raw string) (*check.Check, error) {
	text := stripFences(raw)
	if !hasChecksHeader(text) {
		text = "checks:\n" + indentBlock(text)
	}
	var doc struct {
		Checks []map[string]any `yaml:"checks"`
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("response is not valid YAML: %w", err)
	}
	if len(doc.Checks) != 1 {
		return nil, fmt.Errorf("expected exactly one check entry, got %d", len(doc.Checks))
	}
	entry := doc.Checks[0]
	for _, required := range []string{"name", "metadata"} {
		if _, ok := entry[required]; !ok {
			return nil, fmt.Errorf("check entry missing required key %q", required)
		}
	}
	c, err := check.FromRow(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to build check from response: %w", err)
	}
	now := time.Now().UTC()
	c.ID = core.MustNewID().String()
	c.CreatedBy = generatorAuthor
	c.UpdatedBy = generatorAuthor
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("generated check failed validation: %w", err)
	}
	return c, nil
}

// stripFences removes optional markdown code fences around the YAML.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = append(lines[:i], lines[i+1:]...)
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func hasChecksHeader(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return strings.HasPrefix(line, "checks:")
	}
	return false
}

// indentBlock shifts a bare check entry under a repaired header,
// adding the list dash when the entry is a plain mapping.
func indentBlock(text string) string {
	lines := strings.Split(text, "\n")
	isList := false
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			isList = strings.HasPrefix(trimmed, "-")
			break
		}
	}
	first := true
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case isList:
			lines[i] = "  " + line
		case first:
			lines[i] = "  - " + line
			first = false
		default:
			lines[i] = "    " + line
		}
	}
	return strings.Join(lines, "\n")
}
