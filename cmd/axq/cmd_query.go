package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"axquery/internal/command"
	"axquery/internal/locator"
	"axquery/internal/protocol"
	"axquery/internal/traverse"
)

// =============================================================================
// QUERY COMMANDS - commands built from flags
// =============================================================================

const whereHelp = `Criteria are attribute<op>value, where <op> is one of
  =   exact        name=Save
  ~=  contains     name~=Sav
  ^=  prefix       name^=Sa
  *=  glob         name*=S*e
  /=  regex        name/=^S.+e$`

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find the first node matching a locator",
	Long: "Prints the first matching node in depth-first order.\n\n" + whereHelp + `

Example:
  axq find --fixture page.html --where role=button --where name~=Sign`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, command.KindFind)
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect records for every node in a subtree",
	Long: "Walks the subtree selected by the locator (the root when none is given)\n" +
		"and prints one record per node that passes the filter.\n\n" + whereHelp + `

Example:
  axq collect --fixture page.html --filter role=link --attr href --output facts`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, command.KindCollect)
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print an indented outline of a subtree",
	Args:  cobra.NoArgs,
	RunE:  runDescribe,
}

var actCmd = &cobra.Command{
	Use:   "act <action>",
	Short: "Perform an action (press, focus, scrollIntoView) on the first match",
	Long: "Finds the first node that matches the locator and supports the action,\n" +
		"then performs it.\n\n" + whereHelp + `

Example:
  axq act press --session 3f1c... --where role=button --where name=Submit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, command.KindAct, args...)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <attribute> <value>",
	Short: "Write an attribute on the first match",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, command.KindSet, args...)
	},
}

// queryFlags are shared by the flag-built commands; only one runs per process.
type queryFlags struct {
	where        []string
	any          bool
	path         []string
	nameContains string
	hasAction    string
	descendant   []string

	filter      []string
	filterScope string

	maxDepth   int
	depthSet   bool
	maxNodes   int
	loose      bool
	attributes []string
	output     string
}

var qf queryFlags

func registerQueryFlags() {
	for _, c := range []*cobra.Command{findCmd, collectCmd, describeCmd, actCmd, setCmd} {
		fs := c.Flags()
		fs.StringArrayVarP(&qf.where, "where", "w", nil, "Locator criterion attribute<op>value (repeatable)")
		fs.BoolVar(&qf.any, "any", false, "Match when any criterion holds (default: all)")
		fs.StringArrayVar(&qf.path, "path", nil, "Root path step attribute:value, from the root down (repeatable)")
		fs.StringVar(&qf.nameContains, "name-contains", "", "Require the computed name to contain this text")
		fs.StringVar(&qf.hasAction, "has-action", "", "Require the node to support this action")
		fs.StringArrayVar(&qf.descendant, "descendant", nil, "Require a descendant matching attribute<op>value (repeatable)")
		fs.IntVar(&qf.maxDepth, "max-depth", 0, "Maximum depth below the start node, 0 for the start node only (default from config)")
		fs.BoolVar(&qf.loose, "loose", false, "Also follow relation children (aria-owns, aria-controls)")
		fs.StringSliceVar(&qf.attributes, "attr", nil, "Extra attributes to report")
	}
	for _, c := range []*cobra.Command{collectCmd, describeCmd} {
		c.Flags().IntVar(&qf.maxNodes, "max-nodes", 0, "Maximum nodes to report (default from config)")
	}
	collectCmd.Flags().StringArrayVar(&qf.filter, "filter", nil, "Only report nodes matching attribute<op>value (repeatable)")
	collectCmd.Flags().StringVar(&qf.filterScope, "filter-scope", "", "every_node or root_only")
	collectCmd.Flags().StringVarP(&qf.output, "output", "o", "", "records, text or facts (default from config)")
}

// parseWhere splits attribute<op>value on the first '='. A match operator is
// the character just before it.
func parseWhere(expr string) (locator.Criterion, error) {
	i := strings.IndexByte(expr, '=')
	if i <= 0 {
		return locator.Criterion{}, fmt.Errorf("%w: %q is not attribute=value", locator.ErrInvalid, expr)
	}
	attr, value := expr[:i], expr[i+1:]
	match := locator.MatchExact
	if op, ok := whereOps[attr[len(attr)-1]]; ok {
		match = op
		attr = attr[:len(attr)-1]
	}
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return locator.Criterion{}, fmt.Errorf("%w: %q has no attribute", locator.ErrInvalid, expr)
	}
	return locator.NewCriterion(attr, value, match), nil
}

var whereOps = map[byte]locator.MatchType{
	'~': locator.MatchContains,
	'^': locator.MatchPrefix,
	'*': locator.MatchGlob,
	'/': locator.MatchRegex,
}

func parseCriteria(exprs []string) ([]locator.Criterion, error) {
	out := make([]locator.Criterion, 0, len(exprs))
	for _, e := range exprs {
		c, err := parseWhere(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// locator returns nil when no flag constrains the target.
func (f *queryFlags) locator() (*locator.Locator, error) {
	if len(f.where) == 0 && len(f.path) == 0 && f.nameContains == "" &&
		f.hasAction == "" && len(f.descendant) == 0 {
		return nil, nil
	}
	criteria, err := parseCriteria(f.where)
	if err != nil {
		return nil, err
	}
	loc := &locator.Locator{
		Criteria:             criteria,
		MatchAll:             !f.any,
		RequireAction:        f.hasAction,
		ComputedNameContains: f.nameContains,
	}
	for _, s := range f.path {
		seg, err := locator.ParsePathSegment(s)
		if err != nil {
			return nil, err
		}
		loc.RootPathHint = append(loc.RootPathHint, seg)
	}
	if len(f.descendant) > 0 {
		dc, err := parseCriteria(f.descendant)
		if err != nil {
			return nil, fmt.Errorf("descendant: %w", err)
		}
		loc.Descendant = locator.New(dc...)
	}
	return loc, nil
}

// command builds a command of the given kind. extra carries the positional
// arguments of act (action) and set (attribute, value).
func (f *queryFlags) command(kind command.Kind, extra ...string) (command.Command, error) {
	c := command.Command{
		ID:         uuid.NewString(),
		Kind:       kind,
		MaxNodes:   f.maxNodes,
		Attributes: f.attributes,
		Output:     command.Shape(f.output),
	}
	var err error
	if c.Locator, err = f.locator(); err != nil {
		return c, err
	}
	if len(f.filter) > 0 {
		fc, err := parseCriteria(f.filter)
		if err != nil {
			return c, fmt.Errorf("filter: %w", err)
		}
		c.Filter = locator.New(fc...)
	}
	if c.FilterScope, err = traverse.ParseFilterScope(f.filterScope); err != nil {
		return c, err
	}
	if f.depthSet {
		d := f.maxDepth
		c.MaxDepth = &d
	}
	if f.loose {
		strict := false
		c.StrictChildren = &strict
	}

	switch kind {
	case command.KindAct:
		c.Action = extra[0]
	case command.KindSet:
		c.Attribute, c.Value = extra[0], extra[1]
	}
	return c, nil
}

func runQuery(cmd *cobra.Command, kind command.Kind, args ...string) error {
	qf.depthSet = cmd.Flags().Changed("max-depth")
	c, err := qf.command(kind, args...)
	if err != nil {
		return err
	}
	logger.Debug("built command", zap.String("kind", string(kind)), zap.Stringer("locator", c.Locator))
	return execute(cmd.Context(), cmd.OutOrStdout(), c)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	qf.depthSet = cmd.Flags().Changed("max-depth")
	c, err := qf.command(command.KindDescribe)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	src, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	res := newExecutor(src, nil).Execute(ctx, c)
	out := cmd.OutOrStdout()
	if !res.Success {
		_ = protocol.Encode(out, protocol.FromResult(res))
		return errCommandFailed
	}

	styled := isTerminal(out)
	fmt.Fprint(out, renderOutline(res.Text, styled))
	if res.Truncated {
		fmt.Fprintln(out, renderNote(fmt.Sprintf("(truncated at %d nodes)", strings.Count(res.Text, "\n")), styled))
	}
	return nil
}
