// Package report renders on-disk companions of a flatten run: a TOML
// structure listing, a markdown statistics report and a directory tree.
package report

import (
	"fmt"
	"os"

	"contxt/pkg/flatten"

	"github.com/pelletier/go-toml/v2"
)

// Status values of a structure entry.
const (
	StatusIncluded = "included"
	StatusSkipped  = "skipped"
)

// Structure is the document written by WriteStructure.
type Structure struct {
	Root  string                    `toml:"root"`
	Files map[string]StructureEntry `toml:"files"`
}

// StructureEntry describes one scanned file.
type StructureEntry struct {
	Type     string `toml:"type"`
	Size     int64  `toml:"size"`
	Lines    int    `toml:"lines"`
	Language string `toml:"language"`
	Status   string `toml:"status"`
	Reason   string `toml:"reason,omitempty"`
	Document int    `toml:"document,omitempty"` // 1-based part number, 0 when not emitted
}

// BuildStructure converts the manifest into a Structure.
func BuildStructure(m *flatten.Manifest) Structure {
	s := Structure{Root: m.Root, Files: make(map[string]StructureEntry, len(m.Files))}
	for _, f := range m.Files {
		e := StructureEntry{
			Type:     f.Kind.String(),
			Size:     f.Size,
			Lines:    f.Lines,
			Language: f.Language,
			Status:   StatusIncluded,
		}
		if f.Included() {
			e.Document = f.Document + 1
		} else {
			e.Status = StatusSkipped
			e.Reason = string(f.Skip)
		}
		s.Files[f.Path] = e
	}
	return s
}

// WriteStructure writes the manifest's file listing as TOML to path.
func WriteStructure(path string, m *flatten.Manifest) error {
	data, err := toml.Marshal(BuildStructure(m))
	if err != nil {
		return fmt.Errorf("failed to encode structure: %w", err)
	}
	data = append([]byte("# File structure\n\n"), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write structure file %s: %w", path, err)
	}
	return nil
}
