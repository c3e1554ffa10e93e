package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/cache"
	"github.com/gnolang/opsem/internal/opsem"
	"github.com/gnolang/opsem/internal/watch"
	"github.com/gnolang/opsem/runner"
)

const defaultCacheDir = ".opsem-cache"

var (
	pathFlag      string
	runFunc       string
	smtOutput     bool
	outPath       string
	watchMode     bool
	useCache      bool
	cacheDir      string
	promoteMalloc bool
)

var errRunFailed = errors.New("run failed")

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Run the semantics over the edges of a path",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runner.Options{
			Config:        opsem.DefaultConfig(),
			Function:      runFunc,
			Path:          splitList(pathFlag),
			SMT:           smtOutput,
			PromoteMalloc: promoteMalloc,
		}
		if useCache {
			c, err := cache.New(cacheDir)
			if err != nil {
				return err
			}
			opts.Cache = c
		}

		engine, err := runner.New(logger, cfgFile, opts)
		if err != nil {
			logger.Error("Failed to initialize runner", zap.Error(err))
			return err
		}

		out := cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		if watchMode {
			return watchAndRun(cmd.Context(), logger, engine, args, out)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return runOnce(ctx, logger, engine, args, out)
	},
}

func init() {
	runCmd.Flags().StringVar(&pathFlag, "path", "", "Comma-separated block names of the path to run")
	runCmd.Flags().StringVar(&runFunc, "func", "main", "Function to run")
	runCmd.Flags().BoolVar(&smtOutput, "smt", false, "Print the side conditions as SMT-LIB2")
	runCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path")
	runCmd.Flags().BoolVar(&watchMode, "watch", false, "Run again when an input file changes")
	runCmd.Flags().BoolVar(&useCache, "cache", false, "Reuse results of unchanged inputs")
	runCmd.Flags().StringVar(&cacheDir, "cache-dir", defaultCacheDir, "Directory of the result cache")
	runCmd.Flags().BoolVar(&promoteMalloc, "promote-malloc", false, "Turn malloc in main into stack allocation")
}

func runOnce(ctx context.Context, logger *zap.Logger, engine runner.Engine, paths []string, out io.Writer) error {
	outcomes, err := runner.ProcessFiles(ctx, logger, engine, paths)
	failed := printOutcomes(out, outcomes)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files: %w", failed, len(outcomes), errRunFailed)
	}
	return nil
}

// printOutcomes writes the output of every outcome and returns the number
// of failed ones.
func printOutcomes(out io.Writer, outcomes []*runner.Outcome) int {
	failed := 0
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if o.Err != nil {
			failed++
			fmt.Fprintf(out, "error: %v\n\n", o.Err)
			continue
		}
		if len(outcomes) > 1 {
			fmt.Fprintf(out, "; %s\n", o.Filename)
		}
		fmt.Fprint(out, o.Output)
		if !strings.HasSuffix(o.Output, "\n") {
			fmt.Fprintln(out)
		}
	}
	return failed
}

func watchAndRun(parent context.Context, logger *zap.Logger, engine runner.Engine, paths []string, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	if err := runOnce(ctx, logger, engine, paths, out); err != nil && !errors.Is(err, errRunFailed) {
		return err
	}

	w, err := watch.New(logger, func(path string) {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		outcome, err := engine.Run(runCtx, path)
		if err != nil {
			outcome = &runner.Outcome{Filename: path, Err: err}
		}
		printOutcomes(out, []*runner.Outcome{outcome})
	}, runner.Extensions...)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(paths...); err != nil {
		return err
	}
	logger.Info("watching for changes", zap.Strings("paths", paths))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
