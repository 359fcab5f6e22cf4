package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxhq/indexchan/internal/annotate"
	"github.com/oxhq/indexchan/internal/reachability"
)

func newAnnotateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "annotate <dir>",
		Short: "Insert suppression comments before possibly-dead entities",
		Args:  cobra.ExactArgs(1),
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

			grammars, err := e.store.FileGrammars()
			if err != nil {
				return err
			}
			insertions := annotate.Plan(g, report, func(fileID string) string { return grammars[fileID] })

			out := cmd.OutOrStdout()
			if len(insertions) == 0 {
				fmt.Fprintln(out, "nothing to annotate")
				return nil
			}

			result, err := annotate.Apply(e.root, insertions, dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(out, "%d suppression comments would be inserted across %d files\n", len(insertions), len(result.FilesChanged))
				return nil
			}
			fmt.Fprintf(out, "inserted %d suppression comments across %d files\n", len(insertions), len(result.FilesChanged))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be inserted without writing")
	return cmd
}
