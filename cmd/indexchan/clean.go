package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxhq/indexchan/internal/clean"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/reachability"
)

func newCleanCmd() *cobra.Command {
	var auto, safeOnly, dryRun bool

	cmd := &cobra.Command{
		Use:   "clean <dir>",
		Short: "Delete dead code by rewriting files",
		Long: "Deletes non-live entities from source files. Without --auto this only " +
			"previews the change set as a unified diff; --auto writes the change " +
			"(interactive confirmation is a concern of the surrounding CLI " +
			"harness, not this engine). --safe-only restricts deletion to the " +
			"DEFINITELY_SAFE tier.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			g, unresolved, err := e.store.LoadGraph()
			if err != nil {
				return err
			}
			entryPoints := reachability.EntryPoints(g, e.cfg)
			report := reachability.Analyze(g, e.cfg, entryPoints, unresolved)

			tiers := map[graph.SafetyTier]bool{graph.DefinitelySafe: true}
			if !safeOnly {
				tiers[graph.ProbablySafe] = true
			}
			deletions := clean.Plan(g, report, tiers)
			out := cmd.OutOrStdout()
			if len(deletions) == 0 {
				fmt.Fprintln(out, "no entities eligible for deletion")
				return nil
			}

			if !auto || dryRun {
				diffs, err := clean.Preview(e.root, deletions)
				if err != nil {
					return err
				}
				for path, diff := range diffs {
					fmt.Fprintf(out, "--- %s ---\n%s\n", path, diff)
				}
				if !auto {
					fmt.Fprintf(out, "%d entities would be deleted across %d files; rerun with --auto to apply\n", len(deletions), len(diffs))
				}
				return nil
			}

			result, err := clean.Apply(e.root, deletions, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "deleted %d entities across %d files (backup: %s)\n",
				len(deletions), len(result.FilesChanged), result.BackupDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "apply the deletions instead of previewing them")
	cmd.Flags().BoolVar(&safeOnly, "safe-only", false, "restrict deletions to the DEFINITELY_SAFE tier")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "force a preview even with --auto")
	return cmd
}
