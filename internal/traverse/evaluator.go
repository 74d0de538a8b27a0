package traverse

import (
	"strings"

	"axquery/internal/axnode"
	"axquery/internal/locator"
	"axquery/internal/logging"
)

// ErrInvalidLocator is the locator package's validation error, re-exported so
// callers of the engine can classify failures from one place.
var ErrInvalidLocator = locator.ErrInvalid

// MatchStatus is the three-valued verdict of evaluating a locator on one node.
type MatchStatus int

const (
	NoMatch MatchStatus = iota
	// PartialMatchActionMissing means every criterion held but the node does
	// not support the required action.
	PartialMatchActionMissing
	FullMatch
)

func (s MatchStatus) String() string {
	switch s {
	case FullMatch:
		return "full_match"
	case PartialMatchActionMissing:
		return "partial_match_action_missing"
	default:
		return "no_match"
	}
}

// Evaluator decides whether a node satisfies a locator. It never mutates nodes
// and never panics on unreadable ones.
type Evaluator struct{}

// NewEvaluator returns an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate applies loc to n. requiredAction overrides loc.RequireAction when
// non-empty. depth and st bound the descendant check: it explores at most
// st.MaxDepth-depth levels below n and skips nodes already in st's VisitedSet.
func (e *Evaluator) Evaluate(n axnode.Node, loc *locator.Locator, requiredAction string, depth int, st *State) MatchStatus {
	if n == nil || loc == nil {
		return NoMatch
	}
	if !e.criteriaHold(n, loc) {
		return NoMatch
	}
	if loc.ComputedNameContains != "" &&
		!strings.Contains(axnode.ComputedName(n), loc.ComputedNameContains) {
		return NoMatch
	}

	action := requiredAction
	if action == "" {
		action = loc.RequireAction
	}
	// The action is checked before the descendant walk: a near-miss is reported
	// on criteria alone and skips the nested search.
	if action != "" && !n.SupportsAction(action) {
		logging.MatchDebug("partial match on %s: action %q not supported", n.Describe(), action)
		return PartialMatchActionMissing
	}
	if loc.Descendant != nil && !e.hasDescendant(n, loc.Descendant, depth, st) {
		return NoMatch
	}
	return FullMatch
}

// criteriaHold combines criterion results. An empty criteria list holds
// trivially; search call sites reject such locators before evaluating.
func (e *Evaluator) criteriaHold(n axnode.Node, loc *locator.Locator) bool {
	if len(loc.Criteria) == 0 {
		return true
	}
	for _, c := range loc.Criteria {
		ok := e.criterionHolds(n, c)
		if loc.MatchAll && !ok {
			return false
		}
		if !loc.MatchAll && ok {
			return true
		}
	}
	return loc.MatchAll
}

func (e *Evaluator) criterionHolds(n axnode.Node, c locator.Criterion) bool {
	if err := c.CompileError(); err != nil {
		logging.MatchDebug("criterion %s never matches: %v", c, err)
		return false
	}
	actual, err := n.Attribute(c.Attribute())
	if err != nil {
		return false
	}
	return c.Matches(actual)
}

// hasDescendant runs a bounded DFS below n with its own visited set.
func (e *Evaluator) hasDescendant(n axnode.Node, want *locator.Locator, depth int, st *State) bool {
	maxDepth := depth + 1
	strict := true
	var outer *VisitedSet
	var guard *Guard
	if st != nil {
		maxDepth = st.MaxDepth
		strict = st.StrictChildren
		outer = st.visited
		guard = st.Guard
	}

	local := NewVisitedSet()
	local.Add(n.ID())

	var search func(node axnode.Node, d int) bool
	search = func(node axnode.Node, d int) bool {
		if d >= maxDepth {
			return false
		}
		if guard.Check() != nil {
			return false
		}
		children, err := childrenOf(node, strict)
		if err != nil {
			return false
		}
		for _, c := range children {
			if c == nil {
				continue
			}
			id := c.ID()
			if outer.Contains(id) || !local.Add(id) {
				continue
			}
			if e.Evaluate(c, want, "", d+1, st) == FullMatch {
				return true
			}
			if search(c, d+1) {
				return true
			}
		}
		return false
	}
	return search(n, depth)
}
