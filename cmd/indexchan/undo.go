package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxhq/indexchan/internal/clean"
)

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <dir> [backup-id]",
		Short: "Restore files from the most recent (or a named) backup",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			var manifest *clean.Manifest
			if len(args) == 2 {
				manifest, err = clean.LoadManifest(e.root, args[1])
			} else {
				manifest, err = clean.LatestManifest(e.root)
			}
			if err != nil {
				return err
			}

			if err := clean.Undo(e.root, manifest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d files from backup %s\n", len(manifest.Entries), manifest.ID)
			return nil
		},
	}
}
