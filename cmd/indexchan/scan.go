package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxhq/indexchan/internal/reachability"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "Run a full refresh and report dead code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := e.store.Refresh(e.registry, e.policy, e.cfg)
			if err != nil {
				return err
			}
			e.logger.Info("scan: refresh complete",
				zap.Int("files_scanned", report.FilesScanned),
				zap.Int("files_dirty", report.FilesDirty),
				zap.Int("files_deleted", report.FilesDeleted),
				zap.Duration("took", report.Duration))

			g, unresolved, err := e.store.LoadGraph()
			if err != nil {
				return err
			}
			entryPoints := reachability.EntryPoints(g, e.cfg)
			dead := reachability.Analyze(g, e.cfg, entryPoints, unresolved)

			counts := map[string]int{}
			for _, tier := range dead.Tier {
				counts[string(tier)]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "files: %d scanned, %d dirty, %d deleted\n", report.FilesScanned, report.FilesDirty, report.FilesDeleted)
			fmt.Fprintf(out, "entities: %d, references: %d, unresolved: %d\n", report.Entities, report.References, report.Unresolved)
			fmt.Fprintf(out, "dead code: %d definitely safe, %d probably safe, %d needs review\n",
				counts["DEFINITELY_SAFE"], counts["PROBABLY_SAFE"], counts["NEEDS_REVIEW"])
			return nil
		},
	}
}
