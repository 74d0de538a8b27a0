package browser

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axquery/internal/axnode"
	"axquery/internal/command"
	"axquery/internal/locator"
)

// loginAXTree is trimmed Accessibility.getFullAXTree output for a login form.
const loginAXTree = `[
  {"nodeId": "1", "ignored": false, "backendDOMNodeId": 1,
   "role": {"type": "internalRole", "value": "RootWebArea"},
   "name": {"type": "computedString", "value": "Login"},
   "properties": [{"name": "focusable", "value": {"type": "booleanOrUndefined", "value": true}}],
   "childIds": ["2", "6"]},
  {"nodeId": "2", "ignored": true, "backendDOMNodeId": 2, "parentId": "1",
   "role": {"type": "role", "value": "none"},
   "childIds": ["3", "4", "5"]},
  {"nodeId": "3", "ignored": false, "backendDOMNodeId": 3, "parentId": "2",
   "role": {"type": "role", "value": "textbox"},
   "name": {"type": "computedString", "value": "User"},
   "value": {"type": "string", "value": "alice"},
   "properties": [
     {"name": "focusable", "value": {"type": "booleanOrUndefined", "value": true}},
     {"name": "editable", "value": {"type": "token", "value": "plaintext"}},
     {"name": "controls", "value": {"type": "idrefList", "relatedNodes": [{"backendDOMNodeId": 6}]}}
   ]},
  {"nodeId": "4", "ignored": false, "backendDOMNodeId": 4, "parentId": "2",
   "role": {"type": "role", "value": "button"},
   "name": {"type": "computedString", "value": "Sign in"},
   "properties": [{"name": "focusable", "value": {"type": "booleanOrUndefined", "value": true}}]},
  {"nodeId": "5", "ignored": false, "backendDOMNodeId": 5, "parentId": "2",
   "role": {"type": "role", "value": "button"},
   "name": {"type": "computedString", "value": "Off"},
   "properties": [{"name": "disabled", "value": {"type": "boolean", "value": true}}]},
  {"nodeId": "6", "ignored": false, "backendDOMNodeId": 6, "parentId": "1",
   "role": {"type": "role", "value": "listbox"},
   "name": {"type": "computedString", "value": "Suggestions"}}
]`

func loginTree(t *testing.T) *AXTree {
	t.Helper()
	var nodes []*proto.AccessibilityAXNode
	require.NoError(t, json.Unmarshal([]byte(loginAXTree), &nodes))
	tree, err := BuildTree(nil, nodes)
	require.NoError(t, err)
	return tree
}

func briefs(nodes []axnode.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = axnode.Brief(n)
	}
	return out
}

func TestBuildTree_SplicesIgnoredNodes(t *testing.T) {
	tree := loginTree(t)
	assert.Equal(t, 6, tree.Len())

	root := tree.Root()
	assert.Equal(t, `RootWebArea "Login"`, axnode.Brief(root))

	kids, err := root.Children()
	require.NoError(t, err)
	assert.Equal(t, []string{
		`textbox "User"`,
		`button "Sign in"`,
		`button "Off"`,
		`listbox "Suggestions"`,
	}, briefs(kids))
}

func TestBuildTree_AttributesAndActions(t *testing.T) {
	tree := loginTree(t)
	kids, err := tree.Root().Children()
	require.NoError(t, err)
	user, signIn, off := kids[0], kids[1], kids[2]

	v, err := user.Attribute(axnode.AttrValue)
	require.NoError(t, err)
	assert.Equal(t, "alice", v)
	assert.True(t, user.SupportsAction(axnode.ActionSetValue))
	assert.True(t, user.SupportsAction(axnode.ActionFocus))
	assert.False(t, user.SupportsAction(axnode.ActionPress))

	assert.True(t, signIn.SupportsAction(axnode.ActionPress))
	assert.Equal(t, "button#4", signIn.Describe())

	enabled, err := off.Attribute("enabled")
	require.NoError(t, err)
	assert.Equal(t, "false", enabled)
	assert.False(t, off.SupportsAction(axnode.ActionPress))
	assert.True(t, off.SupportsAction(axnode.ActionScrollIntoView))

	_, err = off.Attribute("colour")
	assert.ErrorIs(t, err, axnode.ErrNoAttribute)
}

func TestBuildTree_RelationsAreLooseChildren(t *testing.T) {
	tree := loginTree(t)
	kids, _ := tree.Root().Children()
	user := kids[0].(*AXNode)

	strict, err := user.Children()
	require.NoError(t, err)
	assert.Empty(t, strict)

	loose, err := user.LooseChildren()
	require.NoError(t, err)
	assert.Equal(t, []string{`listbox "Suggestions"`}, briefs(loose))

	_, err = user.Attribute("controls")
	assert.ErrorIs(t, err, axnode.ErrNoAttribute, "relations are not scalar attributes")
}

func TestBuildTree_NoRoot(t *testing.T) {
	_, err := BuildTree(nil, []*proto.AccessibilityAXNode{{NodeID: "9", ParentID: "1"}})
	assert.ErrorContains(t, err, "no root")
}

func TestAXNode_MutationWithoutPage(t *testing.T) {
	tree := loginTree(t)
	kids, _ := tree.Root().Children()
	user, signIn := kids[0].(*AXNode), kids[1].(*AXNode)
	ctx := context.Background()

	assert.ErrorIs(t, signIn.PerformAction(ctx, axnode.ActionPress), axnode.ErrReadOnly)
	assert.ErrorIs(t, signIn.PerformAction(ctx, axnode.ActionSetValue), axnode.ErrActionUnsupported)
	assert.ErrorIs(t, user.PerformAction(ctx, axnode.ActionSetValue), axnode.ErrActionUnsupported)
	assert.ErrorIs(t, user.SetAttribute(ctx, axnode.AttrTitle, "x"), axnode.ErrReadOnly)
	assert.ErrorIs(t, signIn.SetAttribute(ctx, axnode.AttrValue, "x"), axnode.ErrReadOnly)
}

func TestAXTree_Summary(t *testing.T) {
	assert.Equal(t, "6 nodes (2 button, 1 textbox)", loginTree(t).Summary())
}

func TestAXTree_ExecutorIntegration(t *testing.T) {
	tree := loginTree(t)
	ex := command.NewExecutor(command.StaticRoot(tree.Root()))
	ctx := context.Background()

	res := ex.Execute(ctx, command.Command{
		ID:      "f",
		Kind:    command.KindFind,
		Locator: locator.New(locator.Exact("role", "button"), locator.Exact("name", "Sign in")),
	})
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, "Sign in", res.Node.ComputedName)

	res = ex.Execute(ctx, command.Command{
		ID:      "a",
		Kind:    command.KindAct,
		Action:  axnode.ActionPress,
		Locator: locator.New(locator.Exact("name", "Sign in")),
	})
	require.False(t, res.Success)
	assert.Equal(t, command.CodeReadOnly, res.Error.Code)
}
