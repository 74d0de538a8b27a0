package traverse

import (
	"time"

	"axquery/internal/axnode"
	"axquery/internal/logging"
)

// Status is how a walk ended.
type Status int

const (
	// Completed means the reachable subtree was exhausted.
	Completed Status = iota
	// Stopped means a visitor returned Stop.
	Stopped
	// FoundNode means a visitor returned Found.
	FoundNode
	// TimedOut means the Guard aborted the walk.
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Stopped:
		return "stopped"
	case FoundNode:
		return "found"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome reports the end of a walk.
type Outcome struct {
	Status Status
	Node   axnode.Node // set when Status == FoundNode
	Err    error       // set when Status == TimedOut
}

// PruneHook observes a pruned branch. It is used for metrics.
type PruneHook func(depth int)

// Traverser runs pre-order depth-first walks.
type Traverser struct {
	onPrune PruneHook
}

// NewTraverser returns a traverser. onPrune may be nil.
func NewTraverser(onPrune PruneHook) *Traverser {
	return &Traverser{onPrune: onPrune}
}

// Walk visits from and its descendants in pre-order, bounded by st.MaxDepth and
// st.Guard. A node exactly at MaxDepth is visited but not expanded.
func (t *Traverser) Walk(from axnode.Node, v Visitor, st *State) Outcome {
	if st.visited == nil {
		st.visited = NewVisitedSet()
	}
	if st.StartTime.IsZero() {
		st.StartTime = time.Now()
	}

	found, status := t.visit(from, 0, v, st)
	out := Outcome{Status: status, Node: found}
	if status == TimedOut {
		out.Err = st.Guard.Err()
		logging.TraversalWarn("walk aborted after %d visits (%s): %v",
			st.ElementsVisited, st.Elapsed(), out.Err)
	}
	return out
}

func (t *Traverser) visit(n axnode.Node, depth int, v Visitor, st *State) (axnode.Node, Status) {
	if n == nil {
		return nil, Completed
	}
	if depth > st.MaxDepth {
		t.prune(depth, st)
		return nil, Completed
	}
	id := n.ID()
	if !st.visited.Add(id) {
		logging.TraversalDebug("cycle: %s already visited", n.Describe())
		return nil, Completed
	}
	if err := st.Guard.Admit(st); err != nil {
		return nil, TimedOut
	}

	st.ElementsVisited++
	st.CurrentDepth = depth
	st.path = append(st.path, n)
	defer func() { st.path = st.path[:len(st.path)-1] }()
	countVisit(n, depth)

	switch v.Visit(n, depth, st) {
	case Stop:
		return nil, Stopped
	case Found:
		return n, FoundNode
	}

	if err := st.Guard.Check(); err != nil {
		return nil, TimedOut
	}

	children, err := childrenOf(n, st.StrictChildren)
	if err != nil {
		logging.TraversalDebug("treating %s as leaf: %v", n.Describe(), err)
		return nil, Completed
	}
	for _, c := range children {
		if found, status := t.visit(c, depth+1, v, st); status != Completed {
			return found, status
		}
	}
	return nil, Completed
}

func (t *Traverser) prune(depth int, st *State) {
	st.BranchesPruned++
	if t.onPrune != nil {
		t.onPrune(depth)
	}
}
