package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/indexchan/internal/export"
	"github.com/oxhq/indexchan/internal/reachability"
)

func newExportCmd() *cobra.Command {
	var output string
	var format string

	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Export the code graph as GraphML, DOT, or JSON",
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

			doc := export.Build(g, report.Live)

			f := export.Format(format)
			if f != export.GraphML && f != export.DOT && f != export.JSON {
				return fmt.Errorf("export: unsupported format %q (want graphml, dot, or json)", format)
			}

			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			return export.Write(w, doc, f)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write to (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: graphml, dot, or json")
	return cmd
}
