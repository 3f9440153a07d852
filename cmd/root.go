package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand shares.
type app struct {
	logger *zap.Logger
	level  zap.AtomicLevel
	debug  bool
}

// NewRootCmd builds the command tree around logger. --debug lowers level to
// debug before any subcommand runs.
func NewRootCmd(logger *zap.Logger, level zap.AtomicLevel) *cobra.Command {
	a := &app{logger: logger, level: level}
	root := &cobra.Command{
		Use:   "contxt",
		Short: "contxt flattens a directory tree into text documents",
		Long: `contxt walks a directory, filters and classifies its files and writes their
contents as self-delimiting blocks into one or more size-bounded text documents,
ready to be pasted into an LLM context.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.debug {
				a.level.SetLevel(zap.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newFlattenCmd(a), newInspectCmd(), newVersionCmd())
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context, logger *zap.Logger, level zap.AtomicLevel) error {
	return NewRootCmd(logger, level).ExecuteContext(ctx)
}
