package command

import (
	"context"
	"errors"
	"fmt"

	"axquery/internal/axnode"
	"axquery/internal/traverse"
)

var (
	// ErrInvalidCommand is returned when required fields are missing or
	// contradictory.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrUnsupportedCommand is returned for unknown command kinds.
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrBatchItem wraps any failure of a single batch item, including
	// recovered panics.
	ErrBatchItem = errors.New("batch item failed")

	// ErrActionFailed wraps errors returned while performing an action or
	// writing an attribute.
	ErrActionFailed = errors.New("action failed")

	// ErrNoRoot is returned when the root provider has no tree to offer.
	ErrNoRoot = errors.New("no accessibility tree available")
)

// Code is the stable, machine-readable error identifier in results.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeTimeout            Code = "timeout"
	CodeInvalidLocator     Code = "invalid_locator"
	CodeInvalidCommand     Code = "invalid_command"
	CodeUnsupportedCommand Code = "unsupported_command"
	CodeActionFailed       Code = "action_failed"
	CodeReadOnly           Code = "read_only"
	CodeInternal           Code = "internal"
)

// Error is the structured failure carried by a Result.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Classify maps an error to its result code.
func Classify(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, traverse.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, traverse.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, traverse.ErrInvalidLocator):
		return CodeInvalidLocator
	case errors.Is(err, ErrInvalidCommand):
		return CodeInvalidCommand
	case errors.Is(err, ErrUnsupportedCommand):
		return CodeUnsupportedCommand
	case errors.Is(err, axnode.ErrReadOnly):
		return CodeReadOnly
	case errors.Is(err, ErrActionFailed), errors.Is(err, axnode.ErrActionUnsupported):
		return CodeActionFailed
	default:
		return CodeInternal
	}
}

func toError(err error) *Error {
	return &Error{Code: Classify(err), Message: err.Error()}
}
