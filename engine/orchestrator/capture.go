package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/generator"
)

// fileCapture persists the exact prompt and response of every
// generation attempt under a path derived from the task.
type fileCapture struct {
	dir string
}

func newFileCapture(baseDir string, task Task) *fileCapture {
	return &fileCapture{
		dir: filepath.Join(
			baseDir,
			sanitize(task.ControlName),
			sanitize(task.Provider),
			sanitize(task.ResourceType),
		),
	}
}

func (c *fileCapture) Capture(_ context.Context, attempt int, prompt, response string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create capture dir: %w", err)
	}
	promptPath := filepath.Join(c.dir, fmt.Sprintf("attempt-%d.prompt.txt", attempt))
	if err := os.WriteFile(promptPath, []byte(prompt), 0o644); err != nil {
		return fmt.Errorf("failed to write prompt capture: %w", err)
	}
	responsePath := filepath.Join(c.dir, fmt.Sprintf("attempt-%d.response.txt", attempt))
	if err := os.WriteFile(responsePath, []byte(response), 0o644); err != nil {
		return fmt.Errorf("failed to write response capture: %w", err)
	}
	return nil
}

// errorCapture is the structured record persisted when a task fails
// to produce a valid check.
type errorCapture struct {
	ControlID     int      `json:"control_id"`
	ControlName   string   `json:"control_name"`
	Provider      string   `json:"provider"`
	ResourceType  string   `json:"resource_type"`
	ErrorType     string   `json:"error_type"`
	SampleErrors  []string `json:"sample_errors,omitempty"`
	PassedCount   int      `json:"passed_count"`
	FailedCount   int      `json:"failed_count"`
	ErrorCount    int      `json:"error_count"`
	FinalAttempts int      `json:"final_attempts"`
}

func writeErrorCapture(baseDir string, task Task, cause error, results []*check.Result, attempts int) error {
	capture := errorCapture{
		ControlID:     task.ControlID,
		ControlName:   task.ControlName,
		Provider:      task.Provider,
		ResourceType:  task.ResourceType,
		ErrorType:     classifyError(cause, results),
		FinalAttempts: attempts,
	}
	seen := map[string]bool{}
	for _, r := range results {
		switch {
		case r.Passed == nil:
			capture.ErrorCount++
		case *r.Passed:
			capture.PassedCount++
		default:
			capture.FailedCount++
		}
		if r.Error != "" && !seen[r.Error] && len(capture.SampleErrors) < 5 {
			seen[r.Error] = true
			capture.SampleErrors = append(capture.SampleErrors, r.Error)
		}
	}
	dir := filepath.Join(baseDir, "errors")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create error capture dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.json",
		sanitize(task.ControlName), sanitize(task.Provider), sanitize(task.ResourceType))
	data, err := json.MarshalIndent(capture, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode error capture: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write error capture: %w", err)
	}
	return nil
}

func outcomeResults(outcome *generator.Outcome) []*check.Result {
	if outcome == nil {
		return nil
	}
	return outcome.AllResults
}

func classifyError(cause error, results []*check.Result) string {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	switch {
	case strings.Contains(msg, "llm request failed"):
		return "llm_unreachable"
	case strings.Contains(msg, "not valid YAML"), strings.Contains(msg, "check entry"):
		return "unparseable_response"
	case len(results) == 0:
		return "no_results"
	default:
		return "all_execution_failures"
	}
}

func sanitize(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_", ".", "_")
	out := replacer.Replace(strings.TrimSpace(s))
	if out == "" {
		return "unknown"
	}
	return out
}
