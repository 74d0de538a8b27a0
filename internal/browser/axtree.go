package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"axquery/internal/axnode"
	"axquery/internal/logging"
)

// relationProperties carry related nodes rather than scalar values. Their
// targets become loose children of the owning node.
var relationProperties = map[string]bool{
	"labelledby":       true,
	"describedby":      true,
	"owns":             true,
	"controls":         true,
	"flowto":           true,
	"details":          true,
	"errormessage":     true,
	"activedescendant": true,
}

var pressableRoles = map[string]bool{
	"button": true, "link": true, "checkbox": true, "radio": true, "switch": true,
	"menuitem": true, "menuitemcheckbox": true, "menuitemradio": true,
	"tab": true, "option": true, "treeitem": true, "combobox": true,
}

// AXTree is one snapshot of a page's accessibility tree, taken with
// Accessibility.getFullAXTree. Reads are served from the snapshot; actions and
// value writes go to the live page through the node's backend DOM id.
type AXTree struct {
	page      *rod.Page
	root      *AXNode
	byID      map[proto.AccessibilityAXNodeID]*AXNode
	byBackend map[proto.DOMBackendNodeID]*AXNode
}

// AXNode is a node of an AXTree. Identity is the CDP AX node id.
type AXNode struct {
	tree     *AXTree
	id       proto.AccessibilityAXNodeID
	backend  proto.DOMBackendNodeID
	attrs    map[string]string
	actions  map[string]bool
	childIDs []proto.AccessibilityAXNodeID
	related  []proto.DOMBackendNodeID
}

var (
	_ axnode.Node          = (*AXNode)(nil)
	_ axnode.Mutable       = (*AXNode)(nil)
	_ axnode.LooseChildren = (*AXNode)(nil)
)

// Snapshot captures the page's full accessibility tree.
func Snapshot(ctx context.Context, page *rod.Page) (*AXTree, error) {
	p := page.Context(ctx)
	if err := (proto.AccessibilityEnable{}).Call(p); err != nil {
		return nil, fmt.Errorf("enable accessibility domain: %w", err)
	}
	res, err := proto.AccessibilityGetFullAXTree{}.Call(p)
	if err != nil {
		return nil, fmt.Errorf("get full ax tree: %w", err)
	}
	tree, err := BuildTree(page, res.Nodes)
	if err != nil {
		return nil, err
	}
	logging.BrowserDebug("AX snapshot: %d nodes", len(tree.byID))
	return tree, nil
}

// BuildTree indexes raw CDP nodes. The root is the first node without a parent.
// A nil page yields a read-only tree.
func BuildTree(page *rod.Page, nodes []*proto.AccessibilityAXNode) (*AXTree, error) {
	t := &AXTree{
		page:      page,
		byID:      make(map[proto.AccessibilityAXNodeID]*AXNode, len(nodes)),
		byBackend: make(map[proto.DOMBackendNodeID]*AXNode, len(nodes)),
	}
	for _, raw := range nodes {
		if raw == nil {
			continue
		}
		n := newAXNode(t, raw)
		t.byID[n.id] = n
		if n.backend != 0 {
			t.byBackend[n.backend] = n
		}
		if t.root == nil && raw.ParentID == "" {
			t.root = n
		}
	}
	if t.root == nil {
		return nil, fmt.Errorf("accessibility tree has no root (%d nodes)", len(nodes))
	}
	return t, nil
}

func newAXNode(t *AXTree, raw *proto.AccessibilityAXNode) *AXNode {
	n := &AXNode{
		tree:     t,
		id:       raw.NodeID,
		backend:  raw.BackendDOMNodeID,
		attrs:    make(map[string]string),
		actions:  make(map[string]bool),
		childIDs: raw.ChildIDs,
	}
	if raw.Ignored {
		n.attrs["ignored"] = "true"
	}
	setValue(n.attrs, axnode.AttrRole, raw.Role)
	setValue(n.attrs, axnode.AttrName, raw.Name)
	setValue(n.attrs, axnode.AttrDescription, raw.Description)
	setValue(n.attrs, axnode.AttrValue, raw.Value)

	for _, p := range raw.Properties {
		if p == nil || p.Value == nil {
			continue
		}
		name := string(p.Name)
		if relationProperties[name] {
			for _, rel := range p.Value.RelatedNodes {
				if rel != nil && rel.BackendDOMNodeID != 0 {
					n.related = append(n.related, rel.BackendDOMNodeID)
				}
			}
			continue
		}
		setValue(n.attrs, name, p.Value)
	}
	n.attrs["enabled"] = strconv.FormatBool(n.attrs["disabled"] != "true")

	if raw.Ignored || n.backend == 0 {
		return n
	}
	role := n.attrs[axnode.AttrRole]
	enabled := n.attrs["enabled"] == "true"
	if enabled && pressableRoles[role] {
		n.actions[axnode.ActionPress] = true
	}
	if enabled && n.attrs["focusable"] == "true" {
		n.actions[axnode.ActionFocus] = true
	}
	if enabled && n.attrs["readonly"] != "true" {
		if e := n.attrs["editable"]; e != "" && e != "false" {
			n.actions[axnode.ActionSetValue] = true
		}
	}
	n.actions[axnode.ActionScrollIntoView] = true
	return n
}

func setValue(attrs map[string]string, name string, v *proto.AccessibilityAXValue) {
	if v == nil || v.Value.Nil() {
		return
	}
	attrs[name] = v.Value.Str()
}

// Root returns the tree root.
func (t *AXTree) Root() *AXNode {
	return t.root
}

// Len returns the number of nodes in the snapshot.
func (t *AXTree) Len() int {
	return len(t.byID)
}

// Attribute reads from the snapshot.
func (n *AXNode) Attribute(name string) (string, error) {
	v, ok := n.attrs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", axnode.ErrNoAttribute, name)
	}
	return v, nil
}

// Children returns the structural children. Ignored nodes are replaced by
// their own children so generic wrappers do not hide content.
func (n *AXNode) Children() ([]axnode.Node, error) {
	var out []axnode.Node
	seen := map[proto.AccessibilityAXNodeID]bool{n.id: true}
	var expand func(ids []proto.AccessibilityAXNodeID)
	expand = func(ids []proto.AccessibilityAXNodeID) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			c, ok := n.tree.byID[id]
			if !ok {
				continue
			}
			if c.attrs["ignored"] == "true" {
				expand(c.childIDs)
				continue
			}
			out = append(out, c)
		}
	}
	expand(n.childIDs)
	return out, nil
}

// LooseChildren appends relation targets (aria-owns, aria-controls and
// friends) to the structural children.
func (n *AXNode) LooseChildren() ([]axnode.Node, error) {
	out, _ := n.Children()
	for _, b := range n.related {
		if target, ok := n.tree.byBackend[b]; ok && target != n {
			out = append(out, target)
		}
	}
	return out, nil
}

func (n *AXNode) ID() any {
	return n.id
}

func (n *AXNode) SupportsAction(action string) bool {
	return n.actions[action]
}

func (n *AXNode) Describe() string {
	role := n.attrs[axnode.AttrRole]
	if role == "" {
		role = "node"
	}
	return fmt.Sprintf("%s#%s", role, n.id)
}

// element resolves the live DOM element behind the node.
func (n *AXNode) element(ctx context.Context) (*rod.Element, error) {
	if n.tree.page == nil {
		return nil, fmt.Errorf("%w: snapshot has no live page", axnode.ErrReadOnly)
	}
	if n.backend == 0 {
		return nil, fmt.Errorf("%w: %s has no DOM node", axnode.ErrReadOnly, n.Describe())
	}
	page := n.tree.page.Context(ctx)
	res, err := proto.DOMResolveNode{BackendNodeID: n.backend}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", n.Describe(), err)
	}
	return page.ElementFromObject(res.Object)
}

// PerformAction dispatches press, focus and scrollIntoView to the live page.
// setValue carries no payload here; writes go through SetAttribute.
func (n *AXNode) PerformAction(ctx context.Context, action string) error {
	if !n.SupportsAction(action) {
		return fmt.Errorf("%w: %s on %s", axnode.ErrActionUnsupported, action, n.Describe())
	}
	if action == axnode.ActionSetValue {
		return fmt.Errorf("%w: setValue needs a value", axnode.ErrActionUnsupported)
	}
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	logging.BrowserDebug("perform %s on %s", action, n.Describe())
	switch action {
	case axnode.ActionPress:
		return el.Click(proto.InputMouseButtonLeft, 1)
	case axnode.ActionFocus:
		return el.Focus()
	case axnode.ActionScrollIntoView:
		return el.ScrollIntoView()
	}
	return fmt.Errorf("%w: %s", axnode.ErrActionUnsupported, action)
}

// SetAttribute types a new value into an editable node. Only the value
// attribute is writable.
func (n *AXNode) SetAttribute(ctx context.Context, name, value string) error {
	if name != axnode.AttrValue {
		return fmt.Errorf("%w: %s is not writable", axnode.ErrReadOnly, name)
	}
	if !n.actions[axnode.ActionSetValue] {
		return fmt.Errorf("%w: %s is not editable", axnode.ErrReadOnly, n.Describe())
	}
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		logging.BrowserWarn("select text on %s: %v", n.Describe(), err)
	}
	if err := el.Input(value); err != nil {
		return err
	}
	n.attrs[axnode.AttrValue] = value
	return nil
}

// Summary counts nodes and the common interactive roles.
func (t *AXTree) Summary() string {
	roles := make(map[string]int)
	for _, n := range t.byID {
		if n.attrs["ignored"] != "true" {
			roles[n.attrs[axnode.AttrRole]]++
		}
	}
	var parts []string
	for _, r := range []string{"button", "link", "textbox", "heading"} {
		if c := roles[r]; c > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c, r))
		}
	}
	return fmt.Sprintf("%d nodes (%s)", len(t.byID), strings.Join(parts, ", "))
}
