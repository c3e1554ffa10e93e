package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	defaultConfigFile = ".opsem.yaml"
	defaultTimeout    = 5 * time.Minute
)

var (
	cfgFile string
	timeout time.Duration
	debug   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:              "opsem [files...]",
	Short:            "opsem - symbolic operational semantics for IR programs",
	TraverseChildren: true,
	SilenceUsage:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(debug)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		// opsem [files...] behaves like the run subcommand
		return runCmd.RunE(runCmd, args)
	},
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "Configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Time limit of a run")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Use the development logger")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cfgCmd)
}
