package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"contxt/pkg/flatten"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect DOCUMENT",
		Short: "List the file blocks of an output document",
		Long:  `Inspect decodes an output document, verifies every block and lists the files it contains.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open document: %w", err)
			}
			defer f.Close()

			blocks, decodeErr := flatten.DecodeBlocks(f)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tSIZE\tLINES\tLANGUAGE\tSHA256")
			var total int64
			for _, b := range blocks {
				hash := b.Hash
				if len(hash) > 12 {
					hash = hash[:12]
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", b.Path, humanize.Comma(b.Size), b.Lines, b.Language, hash)
				total += b.Size
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files, %s\n", len(blocks), humanize.IBytes(uint64(total)))
			return decodeErr
		},
	}
}
