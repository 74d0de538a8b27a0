package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"axquery/internal/axnode"
	"axquery/internal/facts"
	"axquery/internal/locator"
	"axquery/internal/logging"
	"axquery/internal/metrics"
	"axquery/internal/traverse"
)

// RootProvider hands out the current root of the tree commands run against.
type RootProvider interface {
	Root(ctx context.Context) (axnode.Node, error)
}

// RootFunc adapts a function to RootProvider.
type RootFunc func(ctx context.Context) (axnode.Node, error)

func (f RootFunc) Root(ctx context.Context) (axnode.Node, error) {
	return f(ctx)
}

// StaticRoot always returns n.
func StaticRoot(n axnode.Node) RootProvider {
	return RootFunc(func(context.Context) (axnode.Node, error) {
		return n, nil
	})
}

// Executor runs commands. It is not safe for concurrent use: every node access
// must happen on the goroutine that owns the tree.
type Executor struct {
	roots    RootProvider
	defaults Defaults
	metrics  *metrics.Recorder
	ev       *traverse.Evaluator
	trav     *traverse.Traverser
}

// Option configures an Executor.
type Option func(*Executor)

// WithDefaults replaces DefaultLimits.
func WithDefaults(d Defaults) Option {
	return func(e *Executor) { e.defaults = d }
}

// WithMetrics records command and traversal counters.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Executor) { e.metrics = r }
}

// NewExecutor returns an executor reading trees from roots.
func NewExecutor(roots RootProvider, opts ...Option) *Executor {
	e := &Executor{
		roots:    roots,
		defaults: DefaultLimits(),
		ev:       traverse.NewEvaluator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.trav = traverse.NewTraverser(nil)
	return e
}

// Execute runs one command, a batch included, and never panics.
func (e *Executor) Execute(ctx context.Context, cmd Command) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryCommand).Error("command %s (%s) panicked: %v", cmd.ID, cmd.Kind, r)
			res = Result{ID: cmd.ID, Kind: cmd.Kind, Error: &Error{Code: CodeInternal, Message: fmt.Sprintf("panic: %v", r)}}
		}
	}()
	if cmd.Kind == KindBatch {
		return e.executeBatch(ctx, cmd)
	}
	return e.executeOne(ctx, cmd)
}

func (e *Executor) executeOne(ctx context.Context, cmd Command) Result {
	start := time.Now()
	rl := logging.WithRequestID(logging.CategoryCommand, cmd.ID).WithField("kind", cmd.Kind)

	res, err := e.run(ctx, cmd)
	res.ID, res.Kind = cmd.ID, cmd.Kind
	dur := time.Since(start)

	outcome, errMsg := "ok", ""
	if err != nil {
		res.Error = toError(err)
		outcome, errMsg = string(res.Error.Code), err.Error()
		rl.Warn("failed after %v: %v", dur, err)
	} else {
		res.Success = true
		rl.Debug("completed in %v", dur)
	}
	e.metrics.Command(string(cmd.Kind), outcome, dur)
	logging.AuditWithRequest(cmd.ID).CommandOutcome(string(cmd.Kind), dur.Milliseconds(), res.Success, errMsg)
	return res
}

func (e *Executor) run(ctx context.Context, cmd Command) (Result, error) {
	var res Result
	if err := e.validate(cmd); err != nil {
		return res, err
	}

	ctx, cancel := traverse.WithBudget(ctx, e.timeout(cmd))
	defer cancel()

	root, err := e.roots.Root(ctx)
	if err != nil {
		return res, err
	}
	if root == nil {
		return res, ErrNoRoot
	}

	stats := &traverse.Stats{}
	res.Stats = stats
	start := time.Now()
	defer func() { stats.DurationMs = time.Since(start).Milliseconds() }()

	switch cmd.Kind {
	case KindFind, KindQuery:
		t, err := e.locate(ctx, cmd, root, "", &res)
		if err != nil {
			return res, err
		}
		res.Node = t.rec
		return res, nil

	case KindAct:
		t, err := e.locate(ctx, cmd, root, cmd.Action, &res)
		if err != nil {
			return res, err
		}
		if err := e.perform(ctx, cmd, t.node); err != nil {
			return res, err
		}
		res.Node = t.rec
		return res, nil

	case KindSet:
		t, err := e.locate(ctx, cmd, root, "", &res)
		if err != nil {
			return res, err
		}
		if err := e.write(ctx, cmd, t.node); err != nil {
			return res, err
		}
		after := traverse.NewRecord(t.node, t.rec.Path, t.rec.Depth, e.recordAttributes(cmd))
		res.Node = &after
		return res, nil

	case KindCollect:
		t, err := e.scope(ctx, cmd, root, &res)
		if err != nil {
			return res, err
		}
		return res, e.collect(ctx, cmd, t, &res)

	case KindDescribe:
		t, err := e.scope(ctx, cmd, root, &res)
		if err != nil {
			return res, err
		}
		v := traverse.NewDescribeVisitor(cmd.Attributes, e.maxNodes(cmd))
		out := e.walk(ctx, cmd, t, v, stats)
		res.Text, res.Truncated = v.Text(), v.Truncated
		return res, outcomeErr(out)

	case KindExtractText:
		t, err := e.scope(ctx, cmd, root, &res)
		if err != nil {
			return res, err
		}
		v := &traverse.TextVisitor{}
		out := e.walk(ctx, cmd, t, v, stats)
		res.Text = v.Text()
		return res, outcomeErr(out)

	default:
		return res, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Kind)
	}
}

func (e *Executor) validate(cmd Command) error {
	if cmd.DecodeErr != nil {
		return cmd.DecodeErr
	}
	if !cmd.Kind.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Kind)
	}
	if len(cmd.Commands) > 0 && cmd.Kind != KindBatch {
		return fmt.Errorf("%w: only batch takes sub-commands", ErrInvalidCommand)
	}
	if (cmd.MaxDepth != nil && *cmd.MaxDepth < 0) || cmd.MaxNodes < 0 || cmd.Timeout < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidCommand)
	}
	switch cmd.Output {
	case "", ShapeRecords, ShapeText, ShapeFacts:
	default:
		return fmt.Errorf("%w: unknown output %q", ErrInvalidCommand, cmd.Output)
	}

	switch cmd.Kind {
	case KindFind, KindQuery, KindAct, KindSet:
		if err := cmd.Locator.ValidateForSearch(); err != nil {
			return err
		}
	default:
		if err := cmd.Locator.Validate(); err != nil {
			return err
		}
	}

	switch cmd.Kind {
	case KindQuery:
		if len(cmd.Attributes) == 0 {
			return fmt.Errorf("%w: query needs attributes", ErrInvalidCommand)
		}
	case KindAct:
		if cmd.Action == "" {
			return fmt.Errorf("%w: act needs an action", ErrInvalidCommand)
		}
	case KindSet:
		if cmd.Attribute == "" {
			return fmt.Errorf("%w: set needs an attribute", ErrInvalidCommand)
		}
	}
	return nil
}

// target is a node together with the nodes above it, root first.
type target struct {
	node      axnode.Node
	ancestors []axnode.Node
	rec       *traverse.Record
}

func targetOf(chain []axnode.Node) target {
	last := len(chain) - 1
	return target{node: chain[last], ancestors: chain[:last]}
}

// walk runs one traversal from t and folds its counters into stats. Paths and
// depths reported by the visitor are measured from the tree root.
func (e *Executor) walk(ctx context.Context, cmd Command, t target, v traverse.Visitor, stats *traverse.Stats) traverse.Outcome {
	st := traverse.NewState(e.maxDepth(cmd), e.strict(cmd))
	st.Guard = traverse.NewGuard(ctx, e.defaults.MaxVisits)
	st.Seed(t.ancestors)

	out := e.trav.Walk(t.node, v, st)

	stats.Visited += st.ElementsVisited
	stats.Pruned += st.BranchesPruned
	e.metrics.Traversal(st.ElementsVisited, st.BranchesPruned)
	logging.TraversalDebug("walk from %s: %s, visited=%d pruned=%d in %v",
		t.node.Describe(), out.Status, st.ElementsVisited, st.BranchesPruned, st.Elapsed())
	if out.Status == traverse.TimedOut {
		logging.AuditWithRequest(cmd.ID).TraversalTimeout(t.node.Describe(), st.Elapsed().Milliseconds())
	}
	return out
}

func outcomeErr(out traverse.Outcome) error {
	if out.Status == traverse.TimedOut {
		return out.Err
	}
	return nil
}

// locate resolves the root path hint, then searches below it.
func (e *Executor) locate(ctx context.Context, cmd Command, root axnode.Node, action string, res *Result) (target, error) {
	chain, err := resolvePath(ctx, root, cmd.Locator.RootPathHint)
	if err != nil {
		return target{}, err
	}
	v, err := traverse.NewSearchVisitor(e.ev, cmd.Locator, action)
	if err != nil {
		return target{}, err
	}

	out := e.walk(ctx, cmd, targetOf(chain), v, res.Stats)
	switch out.Status {
	case traverse.FoundNode:
		t := targetOf(v.FoundChain)
		rec := traverse.NewRecord(out.Node, v.FoundPath, v.FoundDepth, e.recordAttributes(cmd))
		t.rec = &rec
		return t, nil
	case traverse.TimedOut:
		return target{}, out.Err
	}

	res.NearMisses = v.NearMisses
	if v.Partials() > 0 {
		if action == "" {
			action = cmd.Locator.RequireAction
		}
		return target{}, fmt.Errorf("%w: %s (%d candidates lack action %q)",
			traverse.ErrNotFound, cmd.Locator, v.Partials(), action)
	}
	return target{}, fmt.Errorf("%w: %s", traverse.ErrNotFound, cmd.Locator)
}

// scope picks the start node of a subtree command: the located node when the
// locator has criteria, the path-hint target otherwise, else the root.
func (e *Executor) scope(ctx context.Context, cmd Command, root axnode.Node, res *Result) (target, error) {
	loc := cmd.Locator
	if loc == nil {
		return target{node: root}, nil
	}
	if loc.IsEmpty() && loc.Descendant == nil {
		chain, err := resolvePath(ctx, root, loc.RootPathHint)
		if err != nil {
			return target{}, err
		}
		return targetOf(chain), nil
	}
	return e.locate(ctx, cmd, root, "", res)
}

// resolvePath follows "attribute:value" segments child by child, taking the
// first structural child whose attribute equals the value exactly. It returns
// every node it stepped through, root first and target last.
func resolvePath(ctx context.Context, root axnode.Node, hint []locator.PathSegment) ([]axnode.Node, error) {
	chain := make([]axnode.Node, 1, len(hint)+1)
	chain[0] = root
	cur := root
	for i, seg := range hint {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", traverse.ErrTimeout, err)
		}
		children, err := cur.Children()
		if err != nil {
			return nil, fmt.Errorf("%w: root path segment %d (%s): %v", traverse.ErrNotFound, i, seg, err)
		}
		var next axnode.Node
		for _, c := range children {
			if c == nil {
				continue
			}
			if v, err := c.Attribute(seg.Attribute); err == nil && v == seg.Value {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: root path segment %d (%s) unresolved under %s",
				traverse.ErrNotFound, i, seg, cur.Describe())
		}
		cur = next
		chain = append(chain, cur)
	}
	return chain, nil
}

func (e *Executor) collect(ctx context.Context, cmd Command, from target, res *Result) error {
	v, err := traverse.NewCollectVisitor(e.ev, traverse.CollectOptions{
		Attributes: cmd.Attributes,
		Filter:     cmd.Filter,
		Scope:      cmd.FilterScope,
		MaxNodes:   e.maxNodes(cmd),
	})
	if err != nil {
		return err
	}
	out := e.walk(ctx, cmd, from, v, res.Stats)
	res.Truncated = v.Truncated

	switch e.output(cmd) {
	case ShapeText:
		lines := make([]string, len(v.Records))
		for i, r := range v.Records {
			lines[i] = strings.Join(r.Path, facts.PathSeparator)
		}
		res.Text = strings.Join(lines, "\n")
	case ShapeFacts:
		store, err := facts.FromRecords(v.Records)
		if err != nil {
			return err
		}
		res.Facts = store.Lines()
	default:
		res.Records = v.Records
	}
	return outcomeErr(out)
}

func (e *Executor) perform(ctx context.Context, cmd Command, n axnode.Node) error {
	m, ok := n.(axnode.Mutable)
	if !ok {
		return fmt.Errorf("%w: %s", axnode.ErrReadOnly, n.Describe())
	}
	err := m.PerformAction(ctx, cmd.Action)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	logging.AuditWithRequest(cmd.ID).ActionPerform(n.Describe(), cmd.Action, err == nil, errMsg)
	if err != nil {
		return fmt.Errorf("%w: %s on %s: %w", ErrActionFailed, cmd.Action, n.Describe(), err)
	}
	logging.Command("performed %s on %s", cmd.Action, n.Describe())
	return nil
}

func (e *Executor) write(ctx context.Context, cmd Command, n axnode.Node) error {
	m, ok := n.(axnode.Mutable)
	if !ok {
		return fmt.Errorf("%w: %s", axnode.ErrReadOnly, n.Describe())
	}
	err := m.SetAttribute(ctx, cmd.Attribute, cmd.Value)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	logging.AuditWithRequest(cmd.ID).AttributeWrite(n.Describe(), cmd.Attribute, err == nil, errMsg)
	if err != nil {
		return fmt.Errorf("%w: set %s on %s: %w", ErrActionFailed, cmd.Attribute, n.Describe(), err)
	}
	return nil
}

// recordAttributes adds the written attribute so set results echo it.
func (e *Executor) recordAttributes(cmd Command) []string {
	if cmd.Kind != KindSet {
		return cmd.Attributes
	}
	for _, a := range cmd.Attributes {
		if a == cmd.Attribute {
			return cmd.Attributes
		}
	}
	return append(append([]string(nil), cmd.Attributes...), cmd.Attribute)
}

func (e *Executor) maxDepth(cmd Command) int {
	if cmd.MaxDepth != nil {
		return *cmd.MaxDepth
	}
	return e.defaults.MaxDepth
}

func (e *Executor) maxNodes(cmd Command) int {
	if cmd.MaxNodes > 0 {
		return cmd.MaxNodes
	}
	return e.defaults.MaxNodes
}

func (e *Executor) timeout(cmd Command) time.Duration {
	if cmd.Timeout > 0 {
		return cmd.Timeout
	}
	return e.defaults.Timeout
}

func (e *Executor) output(cmd Command) Shape {
	if cmd.Output != "" {
		return cmd.Output
	}
	return e.defaults.Output
}

func (e *Executor) strict(cmd Command) bool {
	if cmd.StrictChildren != nil {
		return *cmd.StrictChildren
	}
	return e.defaults.StrictChildren
}
