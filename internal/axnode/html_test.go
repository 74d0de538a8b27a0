package axnode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!DOCTYPE html>
<html>
<head><title> Login   Page </title><style>body{}</style></head>
<body>
<nav><a href="/home">Home</a><a>Anchor</a></nav>
<form aria-label="Login">
<input id="user" placeholder="User" value="">
<input type="checkbox" id="remember">
<button type="submit">Sign in</button>
<button disabled>Off</button>
<div role="tab button" tabindex="0">Tab</div>
</form>
<script>alert(1)</script>
</body>
</html>`

// flatten returns every node in pre-order.
func flatten(t *testing.T, n Node) []Node {
	t.Helper()
	out := []Node{n}
	kids, err := n.Children()
	require.NoError(t, err)
	for _, c := range kids {
		out = append(out, flatten(t, c)...)
	}
	return out
}

func byIdentifier(t *testing.T, nodes []Node, id string) Node {
	t.Helper()
	for _, n := range nodes {
		if v, err := n.Attribute(AttrIdentifier); err == nil && v == id {
			return n
		}
	}
	t.Fatalf("no node with identifier %q", id)
	return nil
}

func byName(t *testing.T, nodes []Node, role, name string) Node {
	t.Helper()
	for _, n := range nodes {
		if Role(n) == role && ComputedName(n) == name {
			return n
		}
	}
	t.Fatalf("no %s named %q", role, name)
	return nil
}

func TestFromHTML(t *testing.T) {
	tree, err := FromHTML(strings.NewReader(loginPage))
	require.NoError(t, err)
	root := tree.Root()

	assert.Equal(t, "document", Role(root))
	assert.Equal(t, "Login Page", ComputedName(root))

	nodes := flatten(t, root)
	for _, n := range nodes {
		assert.NotEqual(t, "alert(1)", ComputedName(n), "script text is dropped")
	}

	link := byName(t, nodes, "link", "Home")
	url, _ := link.Attribute("url")
	assert.Equal(t, "/home", url)
	assert.True(t, link.SupportsAction(ActionPress))
	assert.True(t, link.SupportsAction(ActionFocus))

	anchor := byName(t, nodes, "statictext", "Anchor")
	assert.False(t, anchor.SupportsAction(ActionPress))

	form := byName(t, nodes, "form", "Login")
	assert.False(t, form.SupportsAction(ActionFocus))
	assert.True(t, form.SupportsAction(ActionScrollIntoView))

	user := byIdentifier(t, nodes, "user")
	assert.Equal(t, "textbox", Role(user))
	assert.Equal(t, "User", ComputedName(user), "empty value falls through to placeholder")
	assert.True(t, user.SupportsAction(ActionSetValue))

	assert.Equal(t, "checkbox", Role(byIdentifier(t, nodes, "remember")))

	signIn := byName(t, nodes, "button", "Sign in")
	assert.True(t, signIn.SupportsAction(ActionPress))

	off := byName(t, nodes, "button", "Off")
	enabled, _ := off.Attribute("enabled")
	assert.Equal(t, "false", enabled)
	assert.False(t, off.SupportsAction(ActionPress))
	assert.True(t, off.SupportsAction(ActionScrollIntoView))

	tab := byName(t, nodes, "tab", "Tab")
	assert.True(t, tab.SupportsAction(ActionFocus))
}

func TestFromHTML_Mutable(t *testing.T) {
	tree, err := FromHTML(strings.NewReader(`<button>Go</button>`))
	require.NoError(t, err)
	kids, err := tree.Root().Children()
	require.NoError(t, err)
	require.Len(t, kids, 1)

	_, ok := kids[0].(Mutable)
	assert.True(t, ok)
	assert.Equal(t, `button "Go"`, Brief(kids[0]))
}
