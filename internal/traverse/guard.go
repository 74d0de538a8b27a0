package traverse

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when a walk or action exceeds its budget.
	ErrTimeout = errors.New("traversal budget exceeded")

	// ErrNotFound is returned when a locator matched nothing within the budget.
	ErrNotFound = errors.New("no matching element")
)

// Guard is cooperative cancellation for one traversal: a context deadline plus
// an optional cap on visited nodes. It is checked at node boundaries only; an
// attribute read already in flight is never interrupted.
type Guard struct {
	ctx      context.Context
	maxSteps int
	err      error
}

// NewGuard bounds a walk by ctx and, when maxSteps > 0, by visited node count.
func NewGuard(ctx context.Context, maxSteps int) *Guard {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Guard{ctx: ctx, maxSteps: maxSteps}
}

// Check returns a sticky ErrTimeout once the context is done.
func (g *Guard) Check() error {
	if g == nil {
		return nil
	}
	if g.err != nil {
		return g.err
	}
	if err := g.ctx.Err(); err != nil {
		g.err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return g.err
}

// Admit is Check plus the step budget; it runs before each new visit.
func (g *Guard) Admit(st *State) error {
	if err := g.Check(); err != nil || g == nil {
		return err
	}
	if g.maxSteps > 0 && st != nil && st.ElementsVisited >= g.maxSteps {
		g.err = fmt.Errorf("%w: step budget of %d elements spent", ErrTimeout, g.maxSteps)
	}
	return g.err
}

// Err returns the error recorded by the last failing Check.
func (g *Guard) Err() error {
	if g == nil {
		return nil
	}
	return g.err
}

// Context returns the guarded context, used to bound actions.
func (g *Guard) Context() context.Context {
	if g == nil {
		return context.Background()
	}
	return g.ctx
}

// WithBudget derives a context bounded by timeout. A non-positive timeout only
// adds cancellation.
func WithBudget(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
