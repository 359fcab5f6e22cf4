package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxhq/indexchan/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var debounceMS int

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Keep the store refreshed as files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			w, err := watch.New(e.root, e.registry, e.policy, e.cfg, e.store, e.logger, time.Duration(debounceMS)*time.Millisecond)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", e.root)
			return w.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&debounceMS, "debounce-ms", 400, "quiet period after the last event before refreshing")
	return cmd
}
