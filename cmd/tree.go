package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/platform"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the target application's accessibility tree",
	Long: `Walk the accessibility tree of the target application and print every
element with its ID, role, label, bounds, states and path.

Examples:
  uibridge tree --app gedit
  uibridge tree --app gedit --roles interactive --visible-only
  uibridge tree --app gedit --bbox 0,0,400,300 --format json`,
	Args: cobra.NoArgs,
	RunE: runTree,
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Search for elements by label or role",
	Long: `Search the target application's tree. --label matches a case-sensitive
substring, or the whole label with --exact. --role matches a role name.
When both are given an element must match both.

Examples:
  uibridge find --app gedit --label Save
  uibridge find --app gedit --label "Save As…" --exact
  uibridge find --app gedit --role button`,
	Args: cobra.NoArgs,
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().String("roles", "", "Comma-separated roles to keep (e.g. \"button,textfield\" or \"interactive\")")
	treeCmd.Flags().Bool("visible-only", false, "Only print visible elements")
	treeCmd.Flags().String("bbox", "", "Only print elements intersecting x,y,w,h")

	rootCmd.AddCommand(findCmd)
	findCmd.Flags().String("label", "", "Label to search for")
	findCmd.Flags().Bool("exact", false, "Require an exact label match")
	findCmd.Flags().String("role", "", "Role to search for")
}

func runTree(cmd *cobra.Command, args []string) error {
	rolesStr, _ := cmd.Flags().GetString("roles")
	visibleOnly, _ := cmd.Flags().GetBool("visible-only")
	bboxStr, _ := cmd.Flags().GetString("bbox")

	var bbox *model.Bounds
	if bboxStr != "" {
		var err error
		if bbox, err = platform.ParseBBox(bboxStr); err != nil {
			return err
		}
	}
	roles := splitList(rolesStr)

	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		t, err := b.disp.Build(ctx)
		if err != nil {
			return err
		}
		res := output.NewTreeResult(cfg.App.Name, t)
		if len(roles) > 0 || visibleOnly || bbox != nil {
			res.Elements = model.Annotate(t, model.FilterNodes(t.Nodes, roles, bbox, visibleOnly))
			res.Count = len(res.Elements)
		}
		return output.Fprint(cmd.OutOrStdout(), res)
	})
}

// findResult is the output of the find command.
type findResult struct {
	Count    int              `yaml:"count"    json:"count"`
	Elements []model.FlatNode `yaml:"elements" json:"elements"`
}

func runFind(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	exact, _ := cmd.Flags().GetBool("exact")
	role, _ := cmd.Flags().GetString("role")
	if label == "" && role == "" {
		return fmt.Errorf("--label or --role is required")
	}

	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		t, err := b.disp.Build(ctx)
		if err != nil {
			return err
		}
		var nodes []model.Node
		switch {
		case label != "" && exact:
			nodes = model.FindByLabelExact(t, label)
		case label != "":
			nodes = model.FindByLabel(t, label)
		default:
			nodes = model.FindByRole(t, role)
		}
		if label != "" && role != "" {
			nodes = model.FilterNodes(nodes, []string{role}, nil, false)
		}
		return output.Fprint(cmd.OutOrStdout(), findResult{Count: len(nodes), Elements: model.Annotate(t, nodes)})
	})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
