package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"axquery/internal/regression"
)

var checkCmd = &cobra.Command{
	Use:   "check [battery.yaml]",
	Short: "Run a regression battery of locator expectations",
	Long: `Runs each task's command against the selected tree and compares the
result with its expectation. Defaults to <state_dir>/regression/battery.yaml.

Example battery:
  version: 1
  tasks:
    - id: submit-button
      command:
        command: find
        locator: {criteria: [{attribute: role, value: button}]}
      expect: {name: Submit}`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9ECE6A"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7768E"))
)

func runCheck(cmd *cobra.Command, args []string) error {
	path := regression.DefaultBatteryPath(cfg.Logging.Dir())
	if len(args) == 1 {
		path = args[0]
	}
	b, err := regression.LoadBattery(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	src, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	results := regression.RunBattery(ctx, b, newExecutor(src, nil))

	out := cmd.OutOrStdout()
	styled := isTerminal(out)
	passed := 0
	for _, r := range results {
		label := "PASS"
		if !r.Success {
			label = "FAIL"
		}
		if styled && r.Success {
			label = passStyle.Render(label)
		} else if styled {
			label = failStyle.Render(label)
		}
		fmt.Fprintf(out, "%s %s (%dms)\n", label, r.TaskID, r.DurationMs)
		if r.Error != "" {
			fmt.Fprintf(out, "    %s\n", r.Error)
		}
		for _, f := range r.Failures {
			fmt.Fprintf(out, "    %s\n", f)
		}
		if r.Success {
			passed++
		}
	}

	summary := fmt.Sprintf("%d/%d passed", passed, len(results))
	if skipped := len(b.Tasks) - len(results); skipped > 0 {
		summary += fmt.Sprintf(", %d skipped", skipped)
	}
	fmt.Fprintln(out, renderNote(summary, styled))
	logger.Debug("battery finished", zap.String("path", path), zap.String("summary", summary))

	if !regression.Passed(results) {
		return errCommandFailed
	}
	return nil
}
