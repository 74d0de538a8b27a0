// Package facts renders collected accessibility records as Datalog atoms so a
// snapshot can be queried by predicate or fed to a Mangle program.
//
// Emitted predicates:
//
//	ax_node(Path, Role, Name, Depth)
//	ax_attr(Path, Attr, Value)
//	ax_action(Path, /action)
package facts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"

	"axquery/internal/traverse"
)

const (
	PredNode   = "ax_node"
	PredAttr   = "ax_attr"
	PredAction = "ax_action"
)

// PathSeparator joins record path segments into the Path argument.
const PathSeparator = " > "

var arity = map[string]int{
	PredNode:   4,
	PredAttr:   3,
	PredAction: 2,
}

// Store holds the atoms of one snapshot in insertion order and indexed by
// predicate.
type Store struct {
	store factstore.FactStore
	atoms []ast.Atom
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{store: factstore.NewSimpleInMemoryStore()}
}

// FromRecords converts collection records into a store.
func FromRecords(records []traverse.Record) (*Store, error) {
	s := NewStore()
	for _, r := range records {
		if err := s.AddRecord(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddRecord emits the atoms for one record. Attributes are emitted in name order.
func (s *Store) AddRecord(r traverse.Record) error {
	path := ast.String(strings.Join(r.Path, PathSeparator))
	s.add(ast.NewAtom(PredNode, path, ast.String(r.Role), ast.String(r.ComputedName), ast.Number(int64(r.Depth))))

	names := make([]string, 0, len(r.Attributes))
	for k := range r.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		s.add(ast.NewAtom(PredAttr, path, ast.String(k), ast.String(r.Attributes[k])))
	}

	for _, a := range r.Actions {
		name, err := ast.Name("/" + a)
		if err != nil {
			return fmt.Errorf("action %q: %w", a, err)
		}
		s.add(ast.NewAtom(PredAction, path, name))
	}
	return nil
}

func (s *Store) add(a ast.Atom) {
	if s.store.Add(a) {
		s.atoms = append(s.atoms, a)
	}
}

// Len returns the number of distinct atoms.
func (s *Store) Len() int {
	return len(s.atoms)
}

// Query returns every atom of the given predicate.
func (s *Store) Query(predicate string) ([]ast.Atom, error) {
	n, ok := arity[predicate]
	if !ok {
		return nil, fmt.Errorf("unknown predicate %q", predicate)
	}
	var out []ast.Atom
	err := s.store.GetFacts(ast.NewQuery(ast.PredicateSym{Symbol: predicate, Arity: n}), func(a ast.Atom) error {
		out = append(out, a)
		return nil
	})
	return out, err
}

// Lines renders each atom as a Datalog fact, in insertion order.
func (s *Store) Lines() []string {
	out := make([]string, len(s.atoms))
	for i, a := range s.atoms {
		out[i] = a.String() + "."
	}
	return out
}

// Render joins Lines with newlines.
func (s *Store) Render() string {
	if len(s.atoms) == 0 {
		return ""
	}
	return strings.Join(s.Lines(), "\n") + "\n"
}
