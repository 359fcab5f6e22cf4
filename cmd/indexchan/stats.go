package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/oxhq/indexchan/internal/reachability"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <dir>",
		Short: "Print entity, reference, and dead-code counts",
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

			byKind := map[string]int{}
			for _, ent := range g.Entities {
				byKind[string(ent.Kind)]++
			}
			refByKind := map[string]int{}
			for _, r := range g.Refs {
				refByKind[string(r.Kind)]++
			}
			tierCounts := map[string]int{}
			for _, tier := range report.Tier {
				tierCounts[string(tier)]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entities: %d\n", len(g.Entities))
			for _, k := range sortedKeys(byKind) {
				fmt.Fprintf(out, "  %-12s %d\n", k, byKind[k])
			}
			fmt.Fprintf(out, "references: %d\n", len(g.Refs))
			for _, k := range sortedKeys(refByKind) {
				fmt.Fprintf(out, "  %-12s %d\n", k, refByKind[k])
			}
			fmt.Fprintf(out, "unresolved: %d\n", len(unresolved))
			fmt.Fprintf(out, "dead code:\n")
			for _, k := range sortedKeys(tierCounts) {
				fmt.Fprintf(out, "  %-20s %d\n", k, tierCounts[k])
			}
			return nil
		},
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
