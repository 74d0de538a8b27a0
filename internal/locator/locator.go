// Package locator holds the declarative matching vocabulary: criteria, match
// types and locators. Locators are pure values, built once per command and
// never mutated while a traversal is running.
package locator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalid is returned for malformed locators: unknown match types, duplicate
// attributes, bad path hints or (in search contexts) empty criteria.
var ErrInvalid = errors.New("invalid locator")

// MatchType selects how a criterion compares an attribute value.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchRegex    MatchType = "regex"
	MatchPrefix   MatchType = "prefix"
	MatchGlob     MatchType = "glob"
)

// ParseMatchType converts a wire name into a MatchType. An empty name is exact.
func ParseMatchType(s string) (MatchType, error) {
	switch MatchType(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchExact:
		return MatchExact, nil
	case MatchContains:
		return MatchContains, nil
	case MatchRegex, "regexp":
		return MatchRegex, nil
	case MatchPrefix:
		return MatchPrefix, nil
	case MatchGlob:
		return MatchGlob, nil
	default:
		return "", fmt.Errorf("%w: unknown match type %q", ErrInvalid, s)
	}
}

// Criterion is one attribute/expected-value/match-type triple.
type Criterion struct {
	attribute string
	value     string
	match     MatchType
	re        *regexp.Regexp
	reErr     error
}

// NewCriterion builds an immutable criterion. Regex patterns are compiled once;
// a pattern that fails to compile yields a criterion that never matches.
func NewCriterion(attribute, value string, match MatchType) Criterion {
	if match == "" {
		match = MatchExact
	}
	c := Criterion{attribute: attribute, value: value, match: match}
	if match == MatchRegex {
		c.re, c.reErr = regexp.Compile(value)
	}
	return c
}

// Exact is shorthand for an exact-match criterion.
func Exact(attribute, value string) Criterion {
	return NewCriterion(attribute, value, MatchExact)
}

func (c Criterion) Attribute() string { return c.attribute }
func (c Criterion) Value() string     { return c.value }
func (c Criterion) Match() MatchType  { return c.match }

// CompileError reports why a regex criterion can never match.
func (c Criterion) CompileError() error { return c.reErr }

// Matches compares an actual attribute value. Comparisons are case-sensitive.
func (c Criterion) Matches(actual string) bool {
	switch c.match {
	case MatchExact:
		return actual == c.value
	case MatchContains:
		return strings.Contains(actual, c.value)
	case MatchPrefix:
		return strings.HasPrefix(actual, c.value)
	case MatchRegex:
		if c.re == nil {
			return false
		}
		return c.re.MatchString(actual)
	case MatchGlob:
		ok, err := doublestar.Match(c.value, actual)
		return err == nil && ok
	default:
		return false
	}
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s %s %q", c.attribute, c.match, c.value)
}

// PathSegment is one "attribute:value" step of a root path hint.
type PathSegment struct {
	Attribute string
	Value     string
}

// ParsePathSegment splits "attribute:value" on the first colon.
func ParsePathSegment(s string) (PathSegment, error) {
	attr, value, ok := strings.Cut(s, ":")
	attr = strings.TrimSpace(attr)
	if !ok || attr == "" {
		return PathSegment{}, fmt.Errorf("%w: path segment %q is not attribute:value", ErrInvalid, s)
	}
	return PathSegment{Attribute: attr, Value: value}, nil
}

func (p PathSegment) String() string {
	return p.Attribute + ":" + p.Value
}

// Locator describes which node(s) to find.
type Locator struct {
	Criteria             []Criterion
	MatchAll             bool
	RootPathHint         []PathSegment
	Descendant           *Locator
	RequireAction        string
	ComputedNameContains string
}

// New returns an AND locator over the given criteria.
func New(criteria ...Criterion) *Locator {
	return &Locator{Criteria: criteria, MatchAll: true}
}

// IsEmpty reports whether the locator constrains nothing about the node itself.
func (l *Locator) IsEmpty() bool {
	return l == nil || (len(l.Criteria) == 0 && l.ComputedNameContains == "")
}

// Validate checks structural rules: unique attribute names, known match types
// and compilable regular expressions, recursively through Descendant.
func (l *Locator) Validate() error {
	if l == nil {
		return nil
	}
	seen := make(map[string]bool, len(l.Criteria))
	for _, c := range l.Criteria {
		if c.attribute == "" {
			return fmt.Errorf("%w: criterion without attribute", ErrInvalid)
		}
		if seen[c.attribute] {
			return fmt.Errorf("%w: duplicate attribute %q", ErrInvalid, c.attribute)
		}
		seen[c.attribute] = true
		if _, err := ParseMatchType(string(c.match)); err != nil {
			return err
		}
		if c.reErr != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, c.attribute, c.reErr)
		}
		if c.match == MatchGlob && !doublestar.ValidatePattern(c.value) {
			return fmt.Errorf("%w: %s: bad glob %q", ErrInvalid, c.attribute, c.value)
		}
	}
	if l.Descendant != nil {
		if l.Descendant.IsEmpty() {
			return fmt.Errorf("%w: descendant locator has no criteria", ErrInvalid)
		}
		if err := l.Descendant.Validate(); err != nil {
			return fmt.Errorf("descendant: %w", err)
		}
	}
	return nil
}

// ValidateForSearch applies Validate and additionally rejects empty locators,
// which would make "find first" match the start node unconditionally.
func (l *Locator) ValidateForSearch() error {
	if l.IsEmpty() {
		return fmt.Errorf("%w: search requires at least one criterion", ErrInvalid)
	}
	return l.Validate()
}

func (l *Locator) String() string {
	if l == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(l.Criteria)+3)
	for _, c := range l.Criteria {
		parts = append(parts, c.String())
	}
	if l.ComputedNameContains != "" {
		parts = append(parts, fmt.Sprintf("name~%q", l.ComputedNameContains))
	}
	if l.RequireAction != "" {
		parts = append(parts, "action="+l.RequireAction)
	}
	if l.Descendant != nil {
		parts = append(parts, "has("+l.Descendant.String()+")")
	}
	sep := " AND "
	if !l.MatchAll {
		sep = " OR "
	}
	return "{" + strings.Join(parts, sep) + "}"
}
