package flatten

import (
	"sort"

	"contxt/pkg/entry"
)

// FileRecord is the result of inspecting one scanned file. It is not
// modified after the worker that built it hands it over.
type FileRecord struct {
	Path     string // slash separated, relative to the root
	Size     int64
	Lines    int
	Language string // language tag, "binary" or "unknown"
	Content  []byte // only for text files within MaxFileSize
	Hash     string // hex SHA-256 of the content, when read
	Tokens   int    // when a token counter is configured

	Skip   entry.Reason // set when the file is left out of the output
	Detail string
}

// Included reports whether the record passed inspection.
func (r *FileRecord) Included() bool { return r.Skip == "" }

// OutputChunk accumulates encoded blocks for one output document.
type OutputChunk struct {
	Index   int
	Size    int64
	Records []*FileRecord

	data      []byte
	finalized bool
}

// Finalized reports whether the chunk is sealed.
func (c *OutputChunk) Finalized() bool { return c.finalized }

// Bytes returns the encoded document content.
func (c *OutputChunk) Bytes() []byte { return c.data }

func (c *OutputChunk) append(rec *FileRecord, block []byte) {
	if c.finalized {
		panic("flatten: append to finalized chunk")
	}
	c.data = append(c.data, block...)
	c.Size += int64(len(block))
	c.Records = append(c.Records, rec)
}

func (c *OutputChunk) finalize() { c.finalized = true }

// Skip is a manifest entry for something left out of the output.
type Skip struct {
	Path   string       `json:"path"`
	Kind   entry.Kind   `json:"kind"`
	Reason entry.Reason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
}

// FileSummary is the content-free view of a FileRecord kept in the manifest.
type FileSummary struct {
	Path     string       `json:"path"`
	Kind     entry.Kind   `json:"kind"`
	Size     int64        `json:"size"`
	Lines    int          `json:"lines"`
	Language string       `json:"language"`
	Hash     string       `json:"hash,omitempty"`
	Tokens   int          `json:"tokens,omitempty"`
	Document int          `json:"document"` // chunk index, -1 when not emitted
	Skip     entry.Reason `json:"skip,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

// Included reports whether the file made it into the output.
func (f FileSummary) Included() bool { return f.Skip == "" }

// Document is one emitted output document.
type Document struct {
	Path  string   `json:"path"`
	Index int      `json:"index"`
	Size  int64    `json:"size"`
	Files []string `json:"files"`
}

// Manifest is the result of a run. FilesScanned counts every non-directory
// entry and equals FilesIncluded + FilesSkipped.
type Manifest struct {
	Root          string        `json:"root"`
	FilesScanned  int           `json:"filesScanned"`
	FilesIncluded int           `json:"filesIncluded"`
	FilesSkipped  int           `json:"filesSkipped"`
	Skipped       []Skip        `json:"skipped"`
	DirErrors     []Skip        `json:"dirErrors,omitempty"` // unreadable directories
	Files         []FileSummary `json:"files"`               // walk order
	Documents     []Document    `json:"documents"`
}

// SkipCounts tallies skipped files per reason.
func (m *Manifest) SkipCounts() map[entry.Reason]int {
	counts := make(map[entry.Reason]int)
	for _, s := range m.Skipped {
		counts[s.Reason]++
	}
	return counts
}

// Reasons returns the distinct skip reasons in sorted order.
func (m *Manifest) Reasons() []entry.Reason {
	counts := m.SkipCounts()
	out := make([]entry.Reason, 0, len(counts))
	for r := range counts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TotalBytes sums the sizes of the emitted documents.
func (m *Manifest) TotalBytes() int64 {
	var n int64
	for _, d := range m.Documents {
		n += d.Size
	}
	return n
}

// dropUnwritten marks included files whose chunk is not among m.Documents
// as skipped, so the counts describe only written output.
func (m *Manifest) dropUnwritten(cause error) {
	written := make(map[int]bool, len(m.Documents))
	for _, d := range m.Documents {
		written[d.Index] = true
	}
	for i := range m.Files {
		f := &m.Files[i]
		if !f.Included() || f.Document < 0 || written[f.Document] {
			continue
		}
		f.Document = -1
		f.Skip = entry.ReasonNotWritten
		if cause != nil {
			f.Detail = cause.Error()
		}
		m.FilesIncluded--
		m.FilesSkipped++
		m.Skipped = append(m.Skipped, Skip{Path: f.Path, Kind: f.Kind, Reason: f.Skip, Detail: f.Detail})
	}
}

func (m *Manifest) addSkip(path string, kind entry.Kind, reason entry.Reason, detail string) {
	m.FilesScanned++
	m.FilesSkipped++
	m.Skipped = append(m.Skipped, Skip{Path: path, Kind: kind, Reason: reason, Detail: detail})
}
