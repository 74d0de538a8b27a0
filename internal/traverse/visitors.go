package traverse

import (
	"fmt"
	"sort"
	"strings"

	"axquery/internal/axnode"
	"axquery/internal/locator"
)

// maxNearMisses bounds the diagnostic trail kept by SearchVisitor.
const maxNearMisses = 8

// SearchVisitor finds the first node, in pre-order, that fully matches a
// locator.
type SearchVisitor struct {
	ev             *Evaluator
	loc            *locator.Locator
	requiredAction string

	// NearMisses lists nodes that matched every criterion but lacked the
	// required action, oldest first.
	NearMisses []string
	partials   int

	// FoundPath and FoundDepth locate the match from the tree root.
	// FoundChain holds the same path as nodes.
	FoundPath  []string
	FoundDepth int
	FoundChain []axnode.Node
}

// NewSearchVisitor validates loc for a search context: an empty locator is
// ErrInvalidLocator here, since it would match the start node unconditionally.
func NewSearchVisitor(ev *Evaluator, loc *locator.Locator, requiredAction string) (*SearchVisitor, error) {
	if err := loc.ValidateForSearch(); err != nil {
		return nil, err
	}
	if ev == nil {
		ev = NewEvaluator()
	}
	return &SearchVisitor{ev: ev, loc: loc, requiredAction: requiredAction}, nil
}

func (s *SearchVisitor) Visit(n axnode.Node, depth int, st *State) Signal {
	switch s.ev.Evaluate(n, s.loc, s.requiredAction, depth, st) {
	case FullMatch:
		s.FoundChain = st.Path()
		s.FoundPath = briefPath(s.FoundChain)
		s.FoundDepth = st.BaseDepth + depth
		return Found
	case PartialMatchActionMissing:
		s.partials++
		if len(s.NearMisses) < maxNearMisses {
			s.NearMisses = append(s.NearMisses, axnode.Brief(n))
		}
	}
	return Continue
}

// Partials is the number of PartialMatchActionMissing verdicts seen.
func (s *SearchVisitor) Partials() int {
	return s.partials
}

// FilterScope decides which nodes a collection filter gates.
type FilterScope int

const (
	// FilterEveryNode applies the filter to every visited node.
	FilterEveryNode FilterScope = iota
	// FilterRootOnly applies the filter to the collection start node only;
	// descendants are always included.
	FilterRootOnly
)

// ParseFilterScope maps the wire names "every_node" and "root_only".
func ParseFilterScope(s string) (FilterScope, error) {
	switch s {
	case "", "every_node":
		return FilterEveryNode, nil
	case "root_only":
		return FilterRootOnly, nil
	default:
		return 0, fmt.Errorf("unknown filter scope %q", s)
	}
}

func (f FilterScope) String() string {
	if f == FilterRootOnly {
		return "root_only"
	}
	return "every_node"
}

// Record is one collected node.
type Record struct {
	Path         []string          `json:"path"`
	Depth        int               `json:"depth"`
	Role         string            `json:"role"`
	ComputedName string            `json:"computed_name"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Actions      []string          `json:"actions,omitempty"`
}

// CollectOptions configures a CollectVisitor.
type CollectOptions struct {
	Attributes []string
	Filter     *locator.Locator
	Scope      FilterScope
	MaxNodes   int
}

// CollectVisitor gathers a record for every included node, up to MaxNodes.
// The filter gates inclusion only; traversal always continues past excluded
// nodes.
type CollectVisitor struct {
	ev   *Evaluator
	opts CollectOptions

	Records   []Record
	Truncated bool
}

// knownActions are probed for each record's action list.
var knownActions = []string{
	axnode.ActionPress,
	axnode.ActionFocus,
	axnode.ActionScrollIntoView,
	axnode.ActionSetValue,
}

// NewCollectVisitor accepts an empty or nil filter, which matches every node.
func NewCollectVisitor(ev *Evaluator, opts CollectOptions) (*CollectVisitor, error) {
	if opts.Filter != nil {
		if err := opts.Filter.Validate(); err != nil {
			return nil, err
		}
	}
	if ev == nil {
		ev = NewEvaluator()
	}
	return &CollectVisitor{ev: ev, opts: opts}, nil
}

func (c *CollectVisitor) Visit(n axnode.Node, depth int, st *State) Signal {
	if !c.included(n, depth, st) {
		return Continue
	}
	if c.opts.MaxNodes > 0 && len(c.Records) >= c.opts.MaxNodes {
		c.Truncated = true
		return Stop
	}
	c.Records = append(c.Records, c.record(n, depth, st))
	return Continue
}

func (c *CollectVisitor) included(n axnode.Node, depth int, st *State) bool {
	f := c.opts.Filter
	if f == nil || (f.IsEmpty() && f.Descendant == nil && f.RequireAction == "") {
		return true
	}
	if c.opts.Scope == FilterRootOnly && depth > 0 {
		return true
	}
	return c.ev.Evaluate(n, f, "", depth, st) == FullMatch
}

func (c *CollectVisitor) record(n axnode.Node, depth int, st *State) Record {
	return NewRecord(n, briefPath(st.Path()), st.BaseDepth+depth, c.opts.Attributes)
}

// NewRecord reads the role, computed name, the requested attributes (missing
// ones are omitted) and the supported well-known actions of n.
func NewRecord(n axnode.Node, path []string, depth int, attributes []string) Record {
	r := Record{
		Path:         path,
		Depth:        depth,
		Role:         axnode.Role(n),
		ComputedName: axnode.ComputedName(n),
	}
	if len(attributes) > 0 {
		r.Attributes = make(map[string]string, len(attributes))
		for _, a := range attributes {
			if v, err := n.Attribute(a); err == nil {
				r.Attributes[a] = v
			}
		}
	}
	for _, a := range knownActions {
		if n.SupportsAction(a) {
			r.Actions = append(r.Actions, a)
		}
	}
	return r
}

func briefPath(nodes []axnode.Node) []string {
	out := make([]string, len(nodes))
	for i, p := range nodes {
		out[i] = axnode.Brief(p)
	}
	return out
}

// DescribeVisitor renders a subtree as indented text, one line per node.
type DescribeVisitor struct {
	attributes []string
	maxNodes   int
	b          strings.Builder
	lines      int

	Truncated bool
}

// NewDescribeVisitor prints the named attributes after each node's brief.
// maxNodes <= 0 means unlimited.
func NewDescribeVisitor(attributes []string, maxNodes int) *DescribeVisitor {
	attrs := append([]string(nil), attributes...)
	sort.Strings(attrs)
	return &DescribeVisitor{attributes: attrs, maxNodes: maxNodes}
}

func (d *DescribeVisitor) Visit(n axnode.Node, depth int, _ *State) Signal {
	if d.maxNodes > 0 && d.lines >= d.maxNodes {
		d.Truncated = true
		return Stop
	}
	d.b.WriteString(strings.Repeat("  ", depth))
	d.b.WriteString(axnode.Brief(n))
	for _, a := range d.attributes {
		if v, err := n.Attribute(a); err == nil && v != "" {
			fmt.Fprintf(&d.b, " %s=%q", a, v)
		}
	}
	var acts []string
	for _, a := range knownActions {
		if n.SupportsAction(a) {
			acts = append(acts, a)
		}
	}
	if len(acts) > 0 {
		d.b.WriteString(" [" + strings.Join(acts, ",") + "]")
	}
	d.b.WriteByte('\n')
	d.lines++
	return Continue
}

// Text returns the rendered outline.
func (d *DescribeVisitor) Text() string {
	return d.b.String()
}

// Lines returns the number of nodes rendered.
func (d *DescribeVisitor) Lines() int {
	return d.lines
}

// TextVisitor concatenates the visible text of a subtree: the first non-blank
// of value, name and title per node, skipping consecutive duplicates.
type TextVisitor struct {
	parts []string
}

var textAttributes = []string{axnode.AttrValue, axnode.AttrName, axnode.AttrTitle}

func (t *TextVisitor) Visit(n axnode.Node, _ int, _ *State) Signal {
	for _, a := range textAttributes {
		v, err := n.Attribute(a)
		if err != nil {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if len(t.parts) == 0 || t.parts[len(t.parts)-1] != v {
			t.parts = append(t.parts, v)
		}
		break
	}
	return Continue
}

// Text joins the collected fragments with newlines.
func (t *TextVisitor) Text() string {
	return strings.Join(t.parts, "\n")
}
