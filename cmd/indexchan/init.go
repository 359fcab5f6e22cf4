package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxhq/indexchan/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a persistent store for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "initialized store at %s\n", store.Dir(args[0]))
			return nil
		},
	}
}
