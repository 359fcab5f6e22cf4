// Command indexchan is the CLI surface of spec.md §6: scan, clean,
// annotate, export, init, stats, watch, undo, and rpc. Grounded on the
// teacher's demo/cmd/main.go for the cobra root/subcommand tree shape
// (the only consistently-cobra command in the teacher, since
// cmd/morfx/main.go hand-rolls pflag instead).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/ignore"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/lang/golang"
	"github.com/oxhq/indexchan/internal/lang/typescript"
	"github.com/oxhq/indexchan/internal/model"
	"github.com/oxhq/indexchan/internal/obs"
	"github.com/oxhq/indexchan/internal/store"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "indexchan",
		Short:         "Static code-intelligence engine: entities, references, dead code, and context bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newScanCmd(),
		newCleanCmd(),
		newAnnotateCmd(),
		newExportCmd(),
		newInitCmd(),
		newStatsCmd(),
		newWatchCmd(),
		newUndoCmd(),
		newRPCCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "indexchan: %v\n", err)
		code := 1
		var coded *model.CodedError
		if e, ok := err.(*model.CodedError); ok {
			coded = e
			code = coded.Code.ExitCode()
		}
		os.Exit(code)
	}
}

// env bundles the objects every subcommand needs, opened once per
// invocation against a project root.
type env struct {
	root     string
	cfg      *config.Config
	registry *lang.Registry
	policy   *ignore.Policy
	logger   *zap.Logger
	store    *store.Store
}

func newRegistry() *lang.Registry {
	r := lang.NewRegistry()
	_ = r.Register(typescript.New())
	_ = r.Register(golang.New())
	return r
}

// openEnv loads configuration and the ignore policy and opens the store
// for dir, the setup every subcommand except init performs identically.
func openEnv(dir string) (*env, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, model.Wrap(model.ECInput, err)
	}
	logger, err := obs.New(verbose)
	if err != nil {
		return nil, model.Wrap(model.ECInvariant, err)
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return nil, model.Wrap(model.ECInput, fmt.Errorf("load config: %w", err))
	}
	policy, err := ignore.Load(abs)
	if err != nil {
		return nil, model.Wrap(model.ECInput, fmt.Errorf("load .indexchanignore: %w", err))
	}
	s, err := store.Open(abs)
	if err != nil {
		return nil, err
	}
	return &env{root: abs, cfg: cfg, registry: newRegistry(), policy: policy, logger: logger, store: s}, nil
}

func (e *env) Close() {
	_ = e.store.Close()
	_ = e.logger.Sync()
}
