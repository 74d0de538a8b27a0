package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"axquery/internal/command"
	"axquery/internal/protocol"
)

var execCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: "Execute a JSON command read from a file or stdin",
	Long: `Reads one JSON command (possibly a batch) and prints the JSON response.
Reads stdin when no file or "-" is given.

Example:
  echo '{"command":"find","locator":{"criteria":[{"attribute":"role","value":"button"}]}}' \
    | axq exec --fixture page.html`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	c, err := protocol.Decode(in)
	if err != nil {
		_ = protocol.Encode(cmd.OutOrStdout(), protocol.ErrorResponse("", err))
		return errCommandFailed
	}
	return execute(cmd.Context(), cmd.OutOrStdout(), c)
}

// execute runs one command against the selected tree and prints the response.
func execute(ctx context.Context, out io.Writer, c command.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	src, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	res := newExecutor(src, nil).Execute(ctx, c)
	logger.Debug("command finished",
		zap.String("id", c.ID),
		zap.String("kind", string(c.Kind)),
		zap.Bool("success", res.Success))

	if err := protocol.Encode(out, protocol.FromResult(res)); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if !res.Success {
		return errCommandFailed
	}
	return nil
}
