package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/analysis/cfg"
	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/opsem"
)

// variable for flags
var (
	funcName string
	output   string
)

var cfgCmd = &cobra.Command{
	Use:   "cfg [file]",
	Short: "Print the block graph of a function",
	Long: `Outputs the block graph of the specified function in GraphViz DOT format.
Example) opsem cfg --func main prog.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCFG(cmd, logger, args[0], funcName, output)
	},
}

func init() {
	cfgCmd.Flags().StringVar(&funcName, "func", "main", "Function to print")
	cfgCmd.Flags().StringVarP(&output, "output", "o", "", "Output path of the DOT file")
	cfgCmd.Flags().StringVar(&pathFlag, "path", "", "Comma-separated block names to highlight")
}

func runCFG(cmd *cobra.Command, logger *zap.Logger, path, funcName, output string) error {
	mod, err := ir.LoadFile(path)
	if err != nil {
		return err
	}
	fn := mod.Function(funcName)
	if fn == nil || fn.IsDeclaration() {
		return fmt.Errorf("function not found: %s", funcName)
	}

	var highlight []cfg.Edge
	if names := splitList(pathFlag); len(names) > 0 {
		blocks, err := opsem.ParsePath(fn, names)
		if err != nil {
			return err
		}
		highlight = cfg.PathEdges(blocks)
	}

	if output != "" {
		if err := cfg.WriteDotFile(output, fn, highlight...); err != nil {
			logger.Error("Failed to write DOT file", zap.String("path", output), zap.Error(err))
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "DOT file created: %s\n", output)
		return nil
	}
	return cfg.PrintDot(cmd.OutOrStdout(), fn, highlight...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
