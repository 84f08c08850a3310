package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save accessibility trees to files and diff them",
	Long: `Snapshots outside a server session live in YAML files. The MCP server keeps
its own in-memory snapshots (save_snapshot, diff_snapshots, ...).

Examples:
  uibridge snapshot save before.yaml --app gedit
  uibridge snapshot diff before.yaml after.yaml
  uibridge snapshot diff before.yaml --current --app gedit`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Build a fresh tree and write it to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotSave,
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff <a> [b]",
	Short: "Diff two snapshot files, or a file against the live tree",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSnapshotDiff,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotDiffCmd)
	snapshotDiffCmd.Flags().Bool("current", false, "Diff <a> against a fresh build of the live tree")
	snapshotDiffCmd.Flags().String("match", "id", "Pair nodes by id or content")
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		t, err := b.disp.Build(ctx)
		if err != nil {
			return err
		}
		if err := writeTreeFile(args[0], t); err != nil {
			return err
		}
		return output.Fprint(cmd.OutOrStdout(), snapshot.Info{
			Name:      args[0],
			CreatedAt: t.BuiltAt,
			Nodes:     t.Len(),
			StableIDs: t.StableIDs,
		})
	})
}

func runSnapshotDiff(cmd *cobra.Command, args []string) error {
	current, _ := cmd.Flags().GetBool("current")
	matchStr, _ := cmd.Flags().GetString("match")
	if current == (len(args) == 2) {
		return fmt.Errorf("give either a second file or --current")
	}
	m, err := snapshot.ParseMatch("snapshot diff", matchStr)
	if err != nil {
		return err
	}
	a, err := readTreeFile(args[0])
	if err != nil {
		return err
	}
	if !current {
		b, err := readTreeFile(args[1])
		if err != nil {
			return err
		}
		return output.Fprint(cmd.OutOrStdout(), snapshot.CompareWith(a, b, m))
	}
	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		cur, err := b.disp.Build(ctx)
		if err != nil {
			return err
		}
		return output.Fprint(cmd.OutOrStdout(), snapshot.CompareWith(a, cur, m))
	})
}

func writeTreeFile(path string, t *model.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}

func readTreeFile(path string) (*model.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var t model.Tree
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	// Clone rebuilds the id index that decoding leaves empty.
	tree := t.Clone()
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return tree, nil
}
