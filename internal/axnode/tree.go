package axnode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrFixture is returned when a fixture document is malformed.
var ErrFixture = errors.New("invalid fixture")

// Spec is the declarative form of one fixture node. A Spec with only Ref set is a
// back-reference to an already declared node and creates a structural cycle.
type Spec struct {
	ID                 string            `yaml:"id,omitempty" json:"id,omitempty"`
	Ref                string            `yaml:"ref,omitempty" json:"ref,omitempty"`
	Role               string            `yaml:"role,omitempty" json:"role,omitempty"`
	Attributes         map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Actions            []string          `yaml:"actions,omitempty" json:"actions,omitempty"`
	Children           []*Spec           `yaml:"children,omitempty" json:"children,omitempty"`
	Links              []string          `yaml:"links,omitempty" json:"links,omitempty"`
	Unreadable         bool              `yaml:"unreadable,omitempty" json:"unreadable,omitempty"`
	ChildrenUnreadable bool              `yaml:"children_unreadable,omitempty" json:"children_unreadable,omitempty"`
}

// PerformedAction records one action executed against a fixture element.
type PerformedAction struct {
	NodeID string
	Action string
}

// Tree is an in-memory accessibility tree built from Specs.
type Tree struct {
	root      *Element
	byID      map[string]*Element
	performed []PerformedAction
}

// Element is a node of a Tree. Identity is the element pointer.
type Element struct {
	tree               *Tree
	id                 string
	attrs              map[string]string
	actions            map[string]bool
	children           []*Element
	links              []*Element
	unreadable         bool
	childrenUnreadable bool
}

var (
	_ Node          = (*Element)(nil)
	_ Mutable       = (*Element)(nil)
	_ LooseChildren = (*Element)(nil)
)

// NewTree builds a tree from a root spec, resolving refs and links.
func NewTree(root *Spec) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrFixture)
	}
	if root.Ref != "" {
		return nil, fmt.Errorf("%w: root cannot be a ref", ErrFixture)
	}

	t := &Tree{byID: make(map[string]*Element)}
	seq := 0
	pendingRefs := make(map[*Element][]string)
	pendingLinks := make(map[*Element][]string)

	var build func(s *Spec) (*Element, error)
	build = func(s *Spec) (*Element, error) {
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("n%d", seq)
		}
		seq++
		if _, dup := t.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrFixture, id)
		}

		el := &Element{
			tree:               t,
			id:                 id,
			attrs:              make(map[string]string, len(s.Attributes)+1),
			actions:            make(map[string]bool, len(s.Actions)),
			unreadable:         s.Unreadable,
			childrenUnreadable: s.ChildrenUnreadable,
		}
		for k, v := range s.Attributes {
			el.attrs[k] = v
		}
		if s.Role != "" {
			el.attrs[AttrRole] = s.Role
		}
		for _, a := range s.Actions {
			el.actions[a] = true
		}
		t.byID[id] = el

		for _, cs := range s.Children {
			if cs == nil {
				continue
			}
			if cs.Ref != "" {
				// Placeholder keeps the child position; resolved after the walk.
				el.children = append(el.children, nil)
				pendingRefs[el] = append(pendingRefs[el], cs.Ref)
				continue
			}
			child, err := build(cs)
			if err != nil {
				return nil, err
			}
			el.children = append(el.children, child)
		}
		if len(s.Links) > 0 {
			pendingLinks[el] = append([]string(nil), s.Links...)
		}
		return el, nil
	}

	rootEl, err := build(root)
	if err != nil {
		return nil, err
	}
	t.root = rootEl

	for el, refs := range pendingRefs {
		i := 0
		for pos, c := range el.children {
			if c != nil {
				continue
			}
			target, ok := t.byID[refs[i]]
			if !ok {
				return nil, fmt.Errorf("%w: %s references unknown node %q", ErrFixture, el.id, refs[i])
			}
			el.children[pos] = target
			i++
		}
	}
	for el, links := range pendingLinks {
		for _, id := range links {
			target, ok := t.byID[id]
			if !ok {
				return nil, fmt.Errorf("%w: %s links unknown node %q", ErrFixture, el.id, id)
			}
			el.links = append(el.links, target)
		}
	}
	return t, nil
}

// Parse decodes a YAML or JSON fixture document.
func Parse(data []byte) (*Tree, error) {
	var root Spec
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFixture, err)
	}
	return NewTree(&root)
}

// LoadFile reads a fixture from disk.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Open loads a fixture by extension: .html and .htm files are parsed as HTML
// snapshots, anything else as YAML or JSON.
func Open(path string) (*Tree, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
		defer f.Close()
		return FromHTML(f)
	default:
		return LoadFile(path)
	}
}

// Root returns the root element.
func (t *Tree) Root() *Element {
	return t.root
}

// Lookup returns the element with the given fixture id.
func (t *Tree) Lookup(id string) (*Element, bool) {
	el, ok := t.byID[id]
	return el, ok
}

// Len returns the number of distinct elements.
func (t *Tree) Len() int {
	return len(t.byID)
}

// IDs returns all element ids in sorted order.
func (t *Tree) IDs() []string {
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Performed returns the actions executed so far, oldest first.
func (t *Tree) Performed() []PerformedAction {
	out := make([]PerformedAction, len(t.performed))
	copy(out, t.performed)
	return out
}

// FixtureID returns the id the element was declared with.
func (e *Element) FixtureID() string {
	return e.id
}

func (e *Element) Attribute(name string) (string, error) {
	if e.unreadable {
		return "", fmt.Errorf("%w: %s", ErrUnreadable, e.id)
	}
	v, ok := e.attrs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoAttribute, name)
	}
	return v, nil
}

func (e *Element) Children() ([]Node, error) {
	if e.childrenUnreadable {
		return nil, fmt.Errorf("%w: children of %s", ErrUnreadable, e.id)
	}
	out := make([]Node, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, c)
	}
	return out, nil
}

// LooseChildren returns the structural children followed by linked elements.
func (e *Element) LooseChildren() ([]Node, error) {
	out, err := e.Children()
	if err != nil {
		out = nil
	}
	for _, l := range e.links {
		out = append(out, l)
	}
	if len(out) == 0 && err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Element) ID() any {
	return e
}

func (e *Element) SupportsAction(action string) bool {
	if e.unreadable {
		return false
	}
	return e.actions[action]
}

func (e *Element) Describe() string {
	role := e.attrs[AttrRole]
	if role == "" {
		role = "node"
	}
	return fmt.Sprintf("%s#%s", role, e.id)
}

// SetAttribute writes an attribute value.
func (e *Element) SetAttribute(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.unreadable {
		return fmt.Errorf("%w: %s", ErrUnreadable, e.id)
	}
	e.attrs[name] = value
	return nil
}

// PerformAction records the action when the element advertises it. The
// setValue action has no payload here; use SetAttribute for values.
func (e *Element) PerformAction(ctx context.Context, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.SupportsAction(action) {
		return fmt.Errorf("%w: %s on %s", ErrActionUnsupported, action, e.id)
	}
	e.tree.performed = append(e.tree.performed, PerformedAction{NodeID: e.id, Action: action})
	return nil
}
