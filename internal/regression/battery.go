// Package regression runs YAML-defined locator batteries: each task is one
// command plus the outcome it must produce against a known tree. Batteries
// catch locator drift when a page or fixture changes.
package regression

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"axquery/internal/command"
	"axquery/internal/logging"
	"axquery/internal/protocol"
)

// Battery is a collection of regression tasks.
type Battery struct {
	Version       int    `yaml:"version"`
	StopOnFailure bool   `yaml:"stop_on_failure"`
	Tasks         []Task `yaml:"tasks"`
}

// Task is a single regression task. Command uses the JSON request shape.
type Task struct {
	ID      string         `yaml:"id"`
	Command map[string]any `yaml:"command"`
	Expect  Expect         `yaml:"expect"`
}

// Expect lists the checks applied to a task's result. Unset fields are not
// checked; Success defaults to true.
type Expect struct {
	Success   *bool  `yaml:"success,omitempty"`
	Code      string `yaml:"code,omitempty"`
	Role      string `yaml:"role,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Count     *int   `yaml:"count,omitempty"`
	Truncated *bool  `yaml:"truncated,omitempty"`
	Contains  string `yaml:"contains,omitempty"`
}

// Result captures execution outcome for a task.
type Result struct {
	TaskID     string
	Success    bool
	Failures   []string
	Error      string
	DurationMs int64
}

// LoadBattery reads a YAML battery file from disk.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	for i, t := range b.Tasks {
		if t.ID == "" {
			b.Tasks[i].ID = fmt.Sprintf("task-%d", i+1)
		}
	}
	return &b, nil
}

// RunBattery executes all tasks in order on the calling goroutine.
func RunBattery(ctx context.Context, b *Battery, exec *command.Executor) []Result {
	if b == nil || len(b.Tasks) == 0 {
		return nil
	}

	results := make([]Result, 0, len(b.Tasks))
	for _, task := range b.Tasks {
		start := time.Now()
		res := Result{TaskID: task.ID}

		cmd, err := decodeTask(task)
		if err != nil {
			res.Error = err.Error()
		} else {
			cmd.ID = task.ID
			res.Failures = Check(task.Expect, protocol.FromResult(exec.Execute(ctx, cmd)))
			res.Success = len(res.Failures) == 0
		}

		res.DurationMs = time.Since(start).Milliseconds()
		results = append(results, res)

		if !res.Success && b.StopOnFailure {
			break
		}
	}

	passed := 0
	for _, r := range results {
		if r.Success {
			passed++
		}
	}
	logging.Get(logging.CategoryBatch).StructuredLog("info", "battery finished", map[string]interface{}{
		"tasks":  len(b.Tasks),
		"ran":    len(results),
		"passed": passed,
	})
	return results
}

// decodeTask converts the YAML command through JSON so batteries accept
// exactly what exec and serve accept.
func decodeTask(t Task) (command.Command, error) {
	if len(t.Command) == 0 {
		return command.Command{}, fmt.Errorf("task %s has no command", t.ID)
	}
	data, err := json.Marshal(t.Command)
	if err != nil {
		return command.Command{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	cmd, err := protocol.DecodeBytes(data)
	if err != nil {
		return command.Command{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	return cmd, nil
}

// Check compares a response with the expectation and returns one message per
// mismatch.
func Check(e Expect, resp protocol.Response) []string {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	wantSuccess := e.Code == ""
	if e.Success != nil {
		wantSuccess = *e.Success
	}
	if resp.Success != wantSuccess {
		detail := ""
		if resp.Error != nil {
			detail = fmt.Sprintf(" (%s: %s)", resp.Error.Code, resp.Error.Message)
		}
		fail("success = %v, want %v%s", resp.Success, wantSuccess, detail)
	}

	if e.Code != "" {
		got := ""
		if resp.Error != nil {
			got = resp.Error.Code
		}
		if got != e.Code {
			fail("code = %q, want %q", got, e.Code)
		}
	}

	if e.Role != "" || e.Name != "" {
		switch {
		case resp.Node == nil:
			fail("no node in result")
		default:
			if e.Role != "" && resp.Node.Role != e.Role {
				fail("role = %q, want %q", resp.Node.Role, e.Role)
			}
			if e.Name != "" && resp.Node.ComputedName != e.Name {
				fail("name = %q, want %q", resp.Node.ComputedName, e.Name)
			}
		}
	}

	if e.Count != nil {
		got := len(resp.Records)
		if len(resp.Facts) > got {
			got = len(resp.Facts)
		}
		if got != *e.Count {
			fail("count = %d, want %d", got, *e.Count)
		}
	}
	if e.Truncated != nil && resp.Truncated != *e.Truncated {
		fail("truncated = %v, want %v", resp.Truncated, *e.Truncated)
	}
	if e.Contains != "" && !strings.Contains(resp.Text, e.Contains) {
		fail("text does not contain %q", e.Contains)
	}
	return failures
}

// Passed reports whether every result succeeded.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

// DefaultBatteryPath returns the canonical battery path under a state directory.
func DefaultBatteryPath(stateDir string) string {
	return filepath.Join(stateDir, "regression", "battery.yaml")
}
