package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"contxt/pkg/flatten"
	"contxt/pkg/report"
	"contxt/pkg/tokens"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type flattenOptions struct {
	configFile string
	action     string
	tokens     bool
	model      string
	timeout    time.Duration
}

func newFlattenCmd(a *app) *cobra.Command {
	var opts flattenOptions
	cmd := &cobra.Command{
		Use:   "flatten [INPUT_DIR] [OUTPUT_DIR]",
		Short: "Flatten a directory into text documents",
		Long: `Flatten walks INPUT_DIR (default ".") and writes every included text file as a
block into OUTPUT_DIR (default ".local/contxt/<name>"). Structure, statistics and
tree reports are written next to the documents.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFlatten(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceP("include", "i", nil, "Patterns a file must match to be included (glob, or re:<regexp>)")
	f.StringSliceP("exclude", "e", nil, "Additional patterns to exclude; they win over --include")
	f.Int64("max-file-size", flatten.DefaultMaxFileSize, "Files larger than this many bytes are skipped unread (0 for no limit)")
	f.Int64("max-output-size", flatten.DefaultMaxOutputSize, "Maximum bytes per output document (0 for a single document)")
	f.Bool("follow-symlinks", false, "Follow symbolic links")
	f.Bool("include-ignored", false, "Do not apply .gitignore and .flattenignore")
	f.Bool("structure-only", false, "Write the reports only, no documents")
	f.IntP("workers", "w", 0, "Concurrent file readers (0 for one per CPU)")
	f.String("base-name", "", `Output document base name (default "flattened_<name>")`)
	f.StringVarP(&opts.configFile, "config", "c", "", "Config file (default ./contxt.toml)")
	f.StringVarP(&opts.action, "action", "a", "", "Apply the named [actions.<name>] table of the config file")
	f.BoolVar(&opts.tokens, "tokens", false, "Count tokens per file")
	f.StringVar(&opts.model, "model", tokens.DefaultModel, "Model whose encoding is used by --tokens")
	f.DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this long (0 for no limit)")
	return cmd
}

func (a *app) runFlatten(cmd *cobra.Command, args []string, opts flattenOptions) error {
	s, err := loadSettings(cmd.Flags(), opts.configFile, opts.action, args, a.logger)
	if err != nil {
		return err
	}
	cfg, err := s.flattenConfig()
	if err != nil {
		return err
	}
	if opts.tokens {
		cfg.Tokens = a.tokenCounter(opts.model)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	m, runErr := flatten.Run(ctx, cfg, a.logger)
	if m == nil {
		return runErr
	}

	var reports []string
	if runErr == nil {
		if reports, err = writeReports(cfg.OutputDir, m); err != nil {
			return err
		}
	}
	printSummary(cmd.OutOrStdout(), m, reports, opts.tokens)
	return runErr
}

// tokenCounter loads the tiktoken encoding for model and falls back to the
// byte estimate when it cannot be loaded.
func (a *app) tokenCounter(model string) tokens.Counter {
	tk, err := tokens.NewTiktoken(model, a.logger)
	if err != nil {
		a.logger.Warn("Falling back to estimated token counts", zap.Error(err))
		return tokens.Estimate{}
	}
	return tk
}

// writeReports writes the structure, statistics and tree reports into dir
// and returns their paths.
func writeReports(dir string, m *flatten.Manifest) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	name := filepath.Base(m.Root)
	structurePath := filepath.Join(dir, "structure_"+name+".toml")
	statisticsPath := filepath.Join(dir, "file_statistics_"+name+".md")
	treePath := filepath.Join(dir, "tree_"+name+".txt")

	if err := report.WriteStructure(structurePath, m); err != nil {
		return nil, err
	}
	if err := report.WriteStatistics(statisticsPath, name, m); err != nil {
		return nil, err
	}
	if err := os.WriteFile(treePath, []byte(report.Tree(m)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write tree file %s: %w", treePath, err)
	}
	return []string{structurePath, statisticsPath, treePath}, nil
}

func printSummary(w io.Writer, m *flatten.Manifest, reports []string, withTokens bool) {
	fmt.Fprintf(w, "Root:     %s\n", m.Root)
	fmt.Fprintf(w, "Scanned:  %s files\n", humanize.Comma(int64(m.FilesScanned)))
	fmt.Fprintf(w, "Included: %s files\n", humanize.Comma(int64(m.FilesIncluded)))

	var reasons []string
	counts := m.SkipCounts()
	for _, r := range m.Reasons() {
		reasons = append(reasons, fmt.Sprintf("%s: %d", r, counts[r]))
	}
	if len(reasons) > 0 {
		fmt.Fprintf(w, "Skipped:  %s files (%s)\n", humanize.Comma(int64(m.FilesSkipped)), strings.Join(reasons, ", "))
	} else {
		fmt.Fprintf(w, "Skipped:  0 files\n")
	}
	if len(m.DirErrors) > 0 {
		fmt.Fprintf(w, "Unreadable directories: %d\n", len(m.DirErrors))
	}
	if withTokens {
		var total int
		for _, f := range m.Files {
			total += f.Tokens
		}
		fmt.Fprintf(w, "Tokens:   %s\n", humanize.Comma(int64(total)))
	}

	if len(m.Documents) > 0 {
		fmt.Fprintf(w, "Output:   %d documents, %s\n", len(m.Documents), humanize.IBytes(uint64(m.TotalBytes())))
	}
	for _, d := range m.Documents {
		fmt.Fprintf(w, "Document: %s (%s, %d files)\n", d.Path, humanize.IBytes(uint64(d.Size)), len(d.Files))
	}
	for _, r := range reports {
		fmt.Fprintf(w, "Report:   %s\n", r)
	}
}
