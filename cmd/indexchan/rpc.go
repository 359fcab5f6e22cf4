package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/indexchan/internal/obs"
	"github.com/oxhq/indexchan/internal/rpc"
)

func newRPCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rpc <dir>",
		Short: "Serve the JSON-RPC-like tool surface over stdio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			logger, err := obs.NewRPC(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			server := rpc.NewServer(e.root, e.store, e.cfg, e.registry, e.policy, logger)
			return server.Serve(os.Stdin, os.Stdout)
		},
	}
}
