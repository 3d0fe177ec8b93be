package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/internal/tree"
)

// TreeNode is one node of the JSON tree rendering.
type TreeNode struct {
	ID       int64          `json:"id"`
	Left     int64          `json:"lft"`
	Right    int64          `json:"rgt"`
	Depth    int64          `json:"depth"`
	Attrs    map[string]any `json:"attrs,omitempty"`
	Children []*TreeNode    `json:"children,omitempty"`
}

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	var scopePairs []string

	cmd := &cobra.Command{
		Use:   "tree [root]",
		Short: "Render a scope partition as an indented tree",
		Long: `Render every live tree of a scope partition in sibling order, or a
single subtree when a root node id is given.

Text output indents one node per line by depth, with the interval and
any attribute values. JSON output nests children under parents.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(rootOpts, scopePairs, args, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&scopePairs, "scope", nil, "scope column pair col=value (repeatable)")

	return cmd
}

func runTree(opts *RootOptions, scopePairs []string, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scope, err := parseScope(scopePairs)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse scope", err)
	}

	eng, s, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()

	var roots []*tree.Node
	if len(args) == 1 {
		rootID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse root id", err)
		}
		root, err := eng.Node(ctx, rootID)
		if err != nil {
			return WrapExitError(ExitCommandError, "load root", err)
		}
		roots = []*tree.Node{root}
	} else {
		roots, err = eng.Roots(ctx, scope)
		if err != nil {
			return WrapExitError(ExitCommandError, "load roots", err)
		}
	}

	var forest []*tree.Node
	for _, root := range roots {
		subtree, err := eng.DescendantsAndSelf(ctx, root.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "load subtree", err)
		}
		forest = append(forest, subtree...)
	}

	if formatter.Format == "json" {
		return formatter.Success(nestForest(forest))
	}
	RenderForest(formatter.Writer, forest)
	return nil
}

// RenderForest writes a deterministic text rendering of a pre-ordered
// node list: one node per line, indented by depth relative to the first
// node, attributes in sorted key order.
func RenderForest(w io.Writer, nodes []*tree.Node) {
	if len(nodes) == 0 {
		return
	}
	base := nodes[0].Depth
	for _, n := range nodes {
		indent := strings.Repeat("  ", int(n.Depth-base))
		fmt.Fprintf(w, "%s%d [%d,%d]%s\n", indent, n.ID, n.Left, n.Right, renderAttrs(n.Attrs))
	}
}

func renderAttrs(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(" {")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, attrs[k])
	}
	b.WriteString("}")
	return b.String()
}

// nestForest converts a pre-ordered flat node list into nested TreeNodes
// using interval containment.
func nestForest(nodes []*tree.Node) []*TreeNode {
	var out []*TreeNode
	var stack []*TreeNode
	bounds := map[*TreeNode]int64{}

	for _, n := range nodes {
		tn := &TreeNode{ID: n.ID, Left: n.Left, Right: n.Right, Depth: n.Depth, Attrs: n.Attrs}
		for len(stack) > 0 && bounds[stack[len(stack)-1]] < n.Right {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			out = append(out, tn)
		} else {
			top := stack[len(stack)-1]
			top.Children = append(top.Children, tn)
		}
		bounds[tn] = n.Right
		stack = append(stack, tn)
	}
	return out
}
