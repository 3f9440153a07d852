package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"contxt/pkg/flatten"

	"github.com/dustin/go-humanize"
)

// TopN is the number of rows in each ranking of the statistics report.
const TopN = 20

type fileStat struct {
	path  string
	size  int64
	lines int
}

// WriteStatistics writes a markdown report ranking the included files by
// size and by line count.
func WriteStatistics(path, name string, m *flatten.Manifest) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create statistics report %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close statistics report %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	Statistics(w, name, m)
	return w.Flush()
}

// Statistics renders the statistics report to w.
func Statistics(w io.Writer, name string, m *flatten.Manifest) {
	var files []fileStat
	for _, f := range m.Files {
		if f.Included() {
			files = append(files, fileStat{path: f.Path, size: f.Size, lines: f.Lines})
		}
	}

	bySize := append([]fileStat(nil), files...)
	sort.SliceStable(bySize, func(i, j int) bool { return bySize[i].size > bySize[j].size })
	byLines := append([]fileStat(nil), files...)
	sort.SliceStable(byLines, func(i, j int) bool { return byLines[i].lines > byLines[j].lines })

	fmt.Fprintf(w, "# File Statistics Report for %s\n\n", name)
	fmt.Fprint(w, "## Files Sorted by Size\n\n")
	writeTable(w, bySize)
	fmt.Fprint(w, "\n## Files Sorted by Line Count\n\n")
	writeTable(w, byLines)

	var totalSize int64
	var totalLines int
	for _, f := range files {
		totalSize += f.size
		totalLines += f.lines
	}
	fmt.Fprint(w, "\n## Summary\n\n")
	fmt.Fprintf(w, "- Files scanned: %s\n", humanize.Comma(int64(m.FilesScanned)))
	fmt.Fprintf(w, "- Files included: %s\n", humanize.Comma(int64(m.FilesIncluded)))
	fmt.Fprintf(w, "- Files skipped: %s\n", humanize.Comma(int64(m.FilesSkipped)))
	for _, r := range m.Reasons() {
		fmt.Fprintf(w, "  - %s: %s\n", r, humanize.Comma(int64(m.SkipCounts()[r])))
	}
	fmt.Fprintf(w, "- Total size: %s bytes (%s)\n", humanize.Comma(totalSize), humanize.IBytes(uint64(totalSize)))
	fmt.Fprintf(w, "- Total lines: %s\n", humanize.Comma(int64(totalLines)))
	if n := len(files); n > 0 {
		fmt.Fprintf(w, "- Average size: %s bytes per file\n", humanize.CommafWithDigits(float64(totalSize)/float64(n), 2))
		fmt.Fprintf(w, "- Average lines: %s lines per file\n", humanize.CommafWithDigits(float64(totalLines)/float64(n), 2))
	}
	fmt.Fprintf(w, "- Output documents: %d\n", len(m.Documents))
}

func writeTable(w io.Writer, files []fileStat) {
	fmt.Fprint(w, "| Size (bytes) | Lines | File |\n")
	fmt.Fprint(w, "|-------------:|------:|------|\n")
	if len(files) > TopN {
		files = files[:TopN]
	}
	for _, f := range files {
		fmt.Fprintf(w, "| %s | %s | %s |\n", humanize.Comma(f.size), humanize.Comma(int64(f.lines)), f.path)
	}
}
