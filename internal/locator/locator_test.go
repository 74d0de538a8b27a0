package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatchType(t *testing.T) {
	tests := []struct {
		in   string
		want MatchType
	}{
		{"", MatchExact},
		{"exact", MatchExact},
		{" Contains ", MatchContains},
		{"regexp", MatchRegex},
		{"regex", MatchRegex},
		{"prefix", MatchPrefix},
		{"GLOB", MatchGlob},
	}
	for _, tt := range tests {
		got, err := ParseMatchType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseMatchType("fuzzy")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCriterion_Matches(t *testing.T) {
	tests := []struct {
		name   string
		c      Criterion
		actual string
		want   bool
	}{
		{"exact hit", Exact("name", "Save"), "Save", true},
		{"exact is case sensitive", Exact("name", "Save"), "save", false},
		{"contains", NewCriterion("name", "ave", MatchContains), "Save As", true},
		{"prefix", NewCriterion("name", "Save", MatchPrefix), "Save As", true},
		{"prefix miss", NewCriterion("name", "As", MatchPrefix), "Save As", false},
		{"regex", NewCriterion("name", `^Save( As)?$`, MatchRegex), "Save As", true},
		{"regex miss", NewCriterion("name", `^Open`, MatchRegex), "Save", false},
		{"bad regex never matches", NewCriterion("name", `(`, MatchRegex), "(", false},
		{"glob", NewCriterion("url", "/docs/**/*.html", MatchGlob), "/docs/a/b/c.html", true},
		{"glob miss", NewCriterion("url", "/docs/*.html", MatchGlob), "/docs/a/c.html", false},
		{"unknown type", NewCriterion("name", "x", MatchType("fuzzy")), "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Matches(tt.actual))
		})
	}
}

func TestNewCriterion_DefaultsToExact(t *testing.T) {
	c := NewCriterion("role", "button", "")
	assert.Equal(t, MatchExact, c.Match())
	assert.Equal(t, "role", c.Attribute())
	assert.Equal(t, "button", c.Value())
	assert.NoError(t, c.CompileError())
	assert.Equal(t, `role exact "button"`, c.String())

	assert.Error(t, NewCriterion("name", "[", MatchRegex).CompileError())
}

func TestLocator_Validate(t *testing.T) {
	tests := []struct {
		name string
		loc  *Locator
		ok   bool
	}{
		{"nil", nil, true},
		{"simple", New(Exact("role", "button"), Exact("name", "Save")), true},
		{"duplicate attribute", New(Exact("name", "a"), Exact("name", "b")), false},
		{"empty attribute", New(Exact("", "a")), false},
		{"unknown match", New(NewCriterion("name", "a", MatchType("soundex"))), false},
		{"bad regex", New(NewCriterion("name", "(", MatchRegex)), false},
		{"bad glob", New(NewCriterion("url", "[", MatchGlob)), false},
		{"empty descendant", &Locator{Criteria: []Criterion{Exact("role", "list")}, Descendant: &Locator{}}, false},
		{"bad descendant", &Locator{Descendant: New(Exact("a", "1"), Exact("a", "2"))}, false},
		{"good descendant", &Locator{Descendant: New(Exact("role", "image"))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestLocator_ValidateForSearch(t *testing.T) {
	var nilLoc *Locator
	assert.ErrorIs(t, nilLoc.ValidateForSearch(), ErrInvalid)
	assert.ErrorIs(t, (&Locator{MatchAll: true}).ValidateForSearch(), ErrInvalid)
	assert.ErrorIs(t, (&Locator{RequireAction: "press"}).ValidateForSearch(), ErrInvalid)

	assert.NoError(t, (&Locator{ComputedNameContains: "Sa"}).ValidateForSearch())
	assert.NoError(t, New(Exact("role", "button")).ValidateForSearch())
}

func TestLocator_IsEmpty(t *testing.T) {
	var nilLoc *Locator
	assert.True(t, nilLoc.IsEmpty())
	assert.True(t, (&Locator{RootPathHint: []PathSegment{{"role", "window"}}}).IsEmpty())
	assert.False(t, New(Exact("role", "button")).IsEmpty())
}

func TestParsePathSegment(t *testing.T) {
	seg, err := ParsePathSegment("name:Save: As")
	require.NoError(t, err)
	assert.Equal(t, PathSegment{Attribute: "name", Value: "Save: As"}, seg)
	assert.Equal(t, "name:Save: As", seg.String())

	seg, err = ParsePathSegment(" role :")
	require.NoError(t, err)
	assert.Equal(t, PathSegment{Attribute: "role", Value: ""}, seg)

	for _, bad := range []string{"role", ":value", "  :x"} {
		_, err := ParsePathSegment(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestLocator_String(t *testing.T) {
	var nilLoc *Locator
	assert.Equal(t, "<nil>", nilLoc.String())

	loc := &Locator{
		Criteria:             []Criterion{Exact("role", "button"), NewCriterion("name", "Sa", MatchPrefix)},
		ComputedNameContains: "ave",
		RequireAction:        "press",
		Descendant:           New(Exact("role", "image")),
	}
	assert.Equal(t,
		`{role exact "button" OR name prefix "Sa" OR name~"ave" OR action=press OR has({role exact "image"})}`,
		loc.String())

	loc.MatchAll = true
	assert.Contains(t, loc.String(), " AND ")
}
