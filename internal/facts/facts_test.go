package facts

import (
	"strings"
	"testing"

	"github.com/google/mangle/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axquery/internal/traverse"
)

func sampleRecords() []traverse.Record {
	return []traverse.Record{
		{Path: []string{"window"}, Depth: 0, Role: "window", ComputedName: "Main"},
		{
			Path:         []string{"window", "button"},
			Depth:        1,
			Role:         "button",
			ComputedName: "Save",
			Attributes:   map[string]string{"title": "Save file", "enabled": "true"},
			Actions:      []string{"press"},
		},
	}
}

func TestFromRecords(t *testing.T) {
	s, err := FromRecords(sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	nodes, err := s.Query(PredNode)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	byPath := map[string]ast.Atom{}
	for _, a := range nodes {
		byPath[a.Args[0].(ast.Constant).Symbol] = a
	}
	save, ok := byPath["window > button"]
	require.True(t, ok)
	assert.Equal(t, "button", save.Args[1].(ast.Constant).Symbol)
	assert.Equal(t, "Save", save.Args[2].(ast.Constant).Symbol)
	assert.Equal(t, int64(1), save.Args[3].(ast.Constant).NumValue)

	attrs, err := s.Query(PredAttr)
	require.NoError(t, err)
	assert.Len(t, attrs, 2)

	actions, err := s.Query(PredAction)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, ast.NameType, actions[0].Args[1].(ast.Constant).Type)
}

func TestStore_RenderOrder(t *testing.T) {
	s, err := FromRecords(sampleRecords())
	require.NoError(t, err)

	lines := s.Lines()
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], PredNode+"("))
	assert.True(t, strings.HasPrefix(lines[1], PredNode+"("))
	// Attributes follow their node, sorted by name.
	assert.Contains(t, lines[2], "enabled")
	assert.Contains(t, lines[3], "title")
	assert.True(t, strings.HasPrefix(lines[4], PredAction+"("))
	for _, l := range lines {
		assert.True(t, strings.HasSuffix(l, ")."), l)
	}
	assert.Equal(t, strings.Join(lines, "\n")+"\n", s.Render())
}

func TestStore_DuplicatesCollapse(t *testing.T) {
	recs := sampleRecords()
	s, err := FromRecords(append(recs, recs[0]))
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())
}

func TestStore_UnknownPredicate(t *testing.T) {
	_, err := NewStore().Query("ax_missing")
	assert.Error(t, err)
	assert.Equal(t, "", NewStore().Render())
}
