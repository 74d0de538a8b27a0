// Package axnode defines the node handle contract consumed by the traversal engine
// and provides in-memory node sources (YAML/JSON fixtures and HTML snapshots).
//
// A Node is an opaque reference into an externally-owned accessibility tree. The
// engine never assumes the tree is acyclic or stable: it only reads attributes,
// enumerates children and compares identities.
package axnode

import (
	"context"
	"errors"
	"strings"
)

// Well-known attribute names. The engine itself does not interpret them; they are
// used for result records and computed display names.
const (
	AttrRole        = "role"
	AttrName        = "name"
	AttrTitle       = "title"
	AttrLabel       = "label"
	AttrValue       = "value"
	AttrDescription = "description"
	AttrPlaceholder = "placeholder"
	AttrIdentifier  = "identifier"
)

// Well-known actions.
const (
	ActionPress          = "press"
	ActionFocus          = "focus"
	ActionScrollIntoView = "scrollIntoView"
	ActionSetValue       = "setValue"
)

var (
	// ErrNoAttribute is returned when a node does not carry the requested attribute.
	ErrNoAttribute = errors.New("attribute not present")

	// ErrUnreadable is returned when a node's attributes or children cannot be read.
	ErrUnreadable = errors.New("node unreadable")

	// ErrReadOnly is returned when a node source does not support mutation.
	ErrReadOnly = errors.New("node is read-only")

	// ErrActionUnsupported is returned when PerformAction names an action the node lacks.
	ErrActionUnsupported = errors.New("action not supported")
)

// Node is one element of an accessibility tree.
type Node interface {
	// Attribute reads a single attribute as a string.
	Attribute(name string) (string, error)

	// Children returns the structural children in source order.
	Children() ([]Node, error)

	// ID returns a comparable identity token. Two handles referring to the same
	// underlying element return equal IDs.
	ID() any

	// SupportsAction reports whether the node advertises the named action.
	SupportsAction(action string) bool

	// Describe returns a short human-readable description for logs and paths.
	Describe() string
}

// Mutable is implemented by nodes whose source allows writes and actions.
type Mutable interface {
	SetAttribute(ctx context.Context, name, value string) error
	PerformAction(ctx context.Context, action string) error
}

// LooseChildren is implemented by nodes that expose additional, non-structural
// neighbours (linked or related elements). Non-strict traversal consults it.
type LooseChildren interface {
	LooseChildren() ([]Node, error)
}

// nameAttributes is the lookup order for ComputedName.
var nameAttributes = []string{
	AttrName,
	AttrTitle,
	AttrLabel,
	AttrValue,
	AttrDescription,
	AttrPlaceholder,
	AttrIdentifier,
}

// ComputedName derives a display name for a node: the first non-blank of name,
// title, label, value, description, placeholder and identifier.
func ComputedName(n Node) string {
	for _, attr := range nameAttributes {
		v, err := n.Attribute(attr)
		if err != nil {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Role returns the node's role, or an empty string when unreadable.
func Role(n Node) string {
	v, err := n.Attribute(AttrRole)
	if err != nil {
		return ""
	}
	return v
}

// Brief renders a node as `role "name"`, used as a path segment.
func Brief(n Node) string {
	role := Role(n)
	if role == "" {
		role = "unknown"
	}
	name := ComputedName(n)
	if name == "" {
		return role
	}
	if r := []rune(name); len(r) > 48 {
		name = string(r[:45]) + "..."
	}
	return role + ` "` + name + `"`
}
