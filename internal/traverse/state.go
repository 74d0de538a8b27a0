// Package traverse implements the depth-bounded, cycle-safe walk over an
// accessibility tree, the three-valued locator evaluator, and the visitors that
// turn one walk into "find first", "collect all" or "describe subtree".
//
// A traversal is single-owner: its State and VisitedSet must never be shared
// with another in-flight walk. Node reads happen on the caller's goroutine.
package traverse

import (
	"time"

	"axquery/internal/axnode"
)

// Signal is a visitor's instruction to the traverser.
type Signal int

const (
	// Continue descends into the node's children.
	Continue Signal = iota
	// Stop aborts the entire traversal without a result.
	Stop
	// Found aborts the traversal and reports the visited node.
	Found
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case Found:
		return "found"
	default:
		return "unknown"
	}
}

// Visitor is called once per node in pre-order.
type Visitor interface {
	Visit(n axnode.Node, depth int, st *State) Signal
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(n axnode.Node, depth int, st *State) Signal

func (f VisitorFunc) Visit(n axnode.Node, depth int, st *State) Signal {
	return f(n, depth, st)
}

// VisitedSet is an identity-keyed set used for cycle detection.
// IDs must be comparable.
type VisitedSet struct {
	ids map[any]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{ids: make(map[any]struct{})}
}

// Contains reports whether id has been inserted.
func (v *VisitedSet) Contains(id any) bool {
	if v == nil {
		return false
	}
	_, ok := v.ids[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (v *VisitedSet) Add(id any) bool {
	if _, ok := v.ids[id]; ok {
		return false
	}
	v.ids[id] = struct{}{}
	return true
}

// Len returns the number of identities seen.
func (v *VisitedSet) Len() int {
	if v == nil {
		return 0
	}
	return len(v.ids)
}

// State is the bookkeeping of one traversal.
type State struct {
	MaxDepth        int
	CurrentDepth    int
	StrictChildren  bool
	StartTime       time.Time
	ElementsVisited int
	BranchesPruned  int

	// BaseDepth is how far the walk's start node sits below the tree root.
	BaseDepth int

	// Guard bounds the walk; nil means unbounded.
	Guard *Guard

	visited *VisitedSet
	path    []axnode.Node
}

// NewState prepares a traversal budget. Negative depths are clamped to zero.
func NewState(maxDepth int, strictChildren bool) *State {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &State{
		MaxDepth:       maxDepth,
		StrictChildren: strictChildren,
		visited:        NewVisitedSet(),
	}
}

// Visited exposes the traversal's cycle set.
func (s *State) Visited() *VisitedSet {
	return s.visited
}

// Seed records the ancestors of the walk's start node, root first. Path and
// reported depths are then measured from the tree root, and a child that links
// back to an ancestor is treated as a cycle.
func (s *State) Seed(ancestors []axnode.Node) {
	if s.visited == nil {
		s.visited = NewVisitedSet()
	}
	s.path = append([]axnode.Node(nil), ancestors...)
	s.BaseDepth = len(ancestors)
	for _, a := range ancestors {
		s.visited.Add(a.ID())
	}
}

// Path returns the nodes from the tree root (the walk's start node when the
// state was not seeded) down to the node currently being visited, inclusive.
func (s *State) Path() []axnode.Node {
	out := make([]axnode.Node, len(s.path))
	copy(out, s.path)
	return out
}

// Elapsed returns time since the walk started.
func (s *State) Elapsed() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return time.Since(s.StartTime)
}

// Stats is a snapshot of traversal counters for result reporting.
type Stats struct {
	Visited    int   `json:"visited"`
	Pruned     int   `json:"pruned"`
	DurationMs int64 `json:"duration_ms"`
}

// Stats snapshots the counters.
func (s *State) Stats() Stats {
	return Stats{
		Visited:    s.ElementsVisited,
		Pruned:     s.BranchesPruned,
		DurationMs: s.Elapsed().Milliseconds(),
	}
}

// childrenOf enumerates children according to the strictness flag. Failure to
// enumerate is reported to the caller, which treats the node as a leaf.
func childrenOf(n axnode.Node, strict bool) ([]axnode.Node, error) {
	if !strict {
		if loose, ok := n.(axnode.LooseChildren); ok {
			return loose.LooseChildren()
		}
	}
	return n.Children()
}
