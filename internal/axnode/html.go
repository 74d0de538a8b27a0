package axnode

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// implicitRoles maps HTML elements to their implicit ARIA roles.
var implicitRoles = map[atom.Atom]string{
	atom.A:        "link",
	atom.Article:  "article",
	atom.Aside:    "complementary",
	atom.Body:     "document",
	atom.Button:   "button",
	atom.Dialog:   "dialog",
	atom.Footer:   "contentinfo",
	atom.Form:     "form",
	atom.H1:       "heading",
	atom.H2:       "heading",
	atom.H3:       "heading",
	atom.H4:       "heading",
	atom.H5:       "heading",
	atom.H6:       "heading",
	atom.Header:   "banner",
	atom.Img:      "img",
	atom.Li:       "listitem",
	atom.Main:     "main",
	atom.Nav:      "navigation",
	atom.Ol:       "list",
	atom.Option:   "option",
	atom.P:        "paragraph",
	atom.Select:   "combobox",
	atom.Table:    "table",
	atom.Td:       "cell",
	atom.Textarea: "textbox",
	atom.Th:       "columnheader",
	atom.Tr:       "row",
	atom.Ul:       "list",
}

var inputRoles = map[string]string{
	"":         "textbox",
	"text":     "textbox",
	"email":    "textbox",
	"password": "textbox",
	"tel":      "textbox",
	"url":      "textbox",
	"search":   "searchbox",
	"number":   "spinbutton",
	"range":    "slider",
	"checkbox": "checkbox",
	"radio":    "radio",
	"button":   "button",
	"submit":   "button",
	"reset":    "button",
}

var pressableRoles = map[string]bool{
	"button": true, "link": true, "checkbox": true, "radio": true,
	"menuitem": true, "tab": true, "option": true, "switch": true,
}

var editableRoles = map[string]bool{
	"textbox": true, "searchbox": true, "combobox": true, "spinbutton": true,
}

// nameFromContent lists roles whose accessible name comes from their text content.
var nameFromContent = map[string]bool{
	"button": true, "link": true, "heading": true, "option": true,
	"cell": true, "columnheader": true, "listitem": true, "tab": true, "menuitem": true,
}

// FromHTML builds a read-mostly Tree from an HTML snapshot. Elements are mapped
// to implicit ARIA roles; elements without one become "generic". Text runs are
// kept as "statictext" leaves.
func FromHTML(r io.Reader) (*Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFixture, err)
	}

	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("h%d", seq)
	}

	root := &Spec{ID: nextID(), Role: "document", Attributes: map[string]string{}}
	var walk func(parent *Spec, n *html.Node)
	walk = func(parent *Spec, n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				text := collapseSpace(c.Data)
				if text == "" {
					continue
				}
				parent.Children = append(parent.Children, &Spec{
					ID:         nextID(),
					Role:       "statictext",
					Attributes: map[string]string{AttrName: text},
				})
			case html.ElementNode:
				switch c.DataAtom {
				case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template:
					continue
				case atom.Html, atom.Body:
					walk(parent, c)
					continue
				}
				spec := elementSpec(c, nextID())
				parent.Children = append(parent.Children, spec)
				walk(spec, c)
			}
		}
	}
	walk(root, doc)
	if title := documentTitle(doc); title != "" {
		root.Attributes[AttrTitle] = title
	}
	return NewTree(root)
}

func elementSpec(n *html.Node, id string) *Spec {
	role := roleOf(n)
	attrs := map[string]string{"tag": n.Data}
	if v := attr(n, "id"); v != "" {
		attrs[AttrIdentifier] = v
	}
	if v := attr(n, "aria-label"); v != "" {
		attrs[AttrLabel] = v
	}
	if v := attr(n, "title"); v != "" {
		attrs[AttrTitle] = v
	}
	if v := attr(n, "placeholder"); v != "" {
		attrs[AttrPlaceholder] = v
	}
	if v := attr(n, "alt"); v != "" && role == "img" {
		attrs[AttrName] = v
	}
	if v, ok := attrOK(n, "value"); ok {
		attrs[AttrValue] = v
	}
	if v := attr(n, "href"); v != "" {
		attrs["url"] = v
	}
	if _, ok := attrOK(n, "disabled"); ok {
		attrs["enabled"] = "false"
	} else {
		attrs["enabled"] = "true"
	}
	if nameFromContent[role] && attrs[AttrName] == "" {
		if text := collapseSpace(textContent(n)); text != "" {
			attrs[AttrName] = text
		}
	}

	var actions []string
	if attrs["enabled"] == "true" {
		if pressableRoles[role] {
			actions = append(actions, ActionPress)
		}
		if editableRoles[role] {
			actions = append(actions, ActionSetValue)
		}
		if pressableRoles[role] || editableRoles[role] || attr(n, "tabindex") != "" {
			actions = append(actions, ActionFocus)
		}
	}
	actions = append(actions, ActionScrollIntoView)

	return &Spec{ID: id, Role: role, Attributes: attrs, Actions: actions}
}

func roleOf(n *html.Node) string {
	if explicit := strings.TrimSpace(attr(n, "role")); explicit != "" {
		return strings.Fields(explicit)[0]
	}
	if n.DataAtom == atom.Input {
		if r, ok := inputRoles[strings.ToLower(attr(n, "type"))]; ok {
			return r
		}
		return "textbox"
	}
	if n.DataAtom == atom.A && attr(n, "href") == "" {
		return "generic"
	}
	if r, ok := implicitRoles[n.DataAtom]; ok {
		return r
	}
	return "generic"
}

func documentTitle(doc *html.Node) string {
	var title string
	var find func(n *html.Node)
	find = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			title = collapseSpace(textContent(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	return title
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
