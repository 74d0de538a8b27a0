package command

import (
	"context"
	"fmt"
	"time"

	"axquery/internal/logging"
)

func (e *Executor) executeBatch(ctx context.Context, cmd Command) Result {
	start := time.Now()
	res := Result{ID: cmd.ID, Kind: KindBatch}

	if len(cmd.Commands) == 0 {
		res.Error = &Error{Code: CodeInvalidCommand, Message: "batch has no commands"}
		e.metrics.Command(string(KindBatch), string(CodeInvalidCommand), time.Since(start))
		return res
	}

	res.Batch, res.Success = e.Batch(ctx, cmd.Commands)
	dur := time.Since(start)

	outcome := "ok"
	if !res.Success {
		outcome = "partial"
	}
	e.metrics.Command(string(KindBatch), outcome, dur)
	e.metrics.Batch(len(cmd.Commands))
	logging.AuditWithRequest(cmd.ID).BatchOutcome(len(cmd.Commands), dur.Milliseconds(), res.Success)
	return res
}

// Batch runs cmds sequentially and returns one result per command, in input
// order. A failing or panicking item never prevents later items from running.
// The bool is true only when every item succeeded.
func (e *Executor) Batch(ctx context.Context, cmds []Command) ([]Result, bool) {
	timer := logging.StartTimer(logging.CategoryBatch, fmt.Sprintf("batch of %d", len(cmds)))
	defer timer.Stop()

	results := make([]Result, len(cmds))
	ok := true
	failed := 0
	for i := range cmds {
		results[i] = e.batchItem(ctx, i, cmds[i])
		if !results[i].Success {
			ok = false
			failed++
		}
	}
	logging.Batch("batch finished: %d items, %d failed", len(cmds), failed)
	return results, ok
}

func (e *Executor) batchItem(ctx context.Context, i int, cmd Command) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: item %d panicked: %v", ErrBatchItem, i, r)
			logging.BatchWarn("%v", err)
			res = Result{ID: cmd.ID, Kind: cmd.Kind, Error: toError(err)}
		}
	}()

	if cmd.Kind == KindBatch {
		err := fmt.Errorf("%w: item %d: %w: batches cannot nest", ErrBatchItem, i, ErrInvalidCommand)
		logging.BatchWarn("%v", err)
		return Result{ID: cmd.ID, Kind: cmd.Kind, Error: toError(err)}
	}

	res = e.executeOne(ctx, cmd)
	if !res.Success {
		logging.BatchWarn("item %d (%s) failed: %s", i, cmd.Kind, res.Error.Message)
	}
	return res
}
