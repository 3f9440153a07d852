// Package ignore loads root-level ignore files (.gitignore, .flattenignore)
// and answers whether a relative path is covered by them.
package ignore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/monochromegane/go-gitignore"
	"go.uber.org/zap"
)

// DefaultFiles are the ignore files read from the flatten root, in order.
var DefaultFiles = []string{".gitignore", ".flattenignore"}

// Matcher combines the patterns of every ignore file found at the root.
type Matcher struct {
	matchers []gitignore.IgnoreMatcher
	sources  []string
}

// Load reads DefaultFiles from root. Missing files are skipped; a file that
// exists but cannot be read is an error.
func Load(root string, logger *zap.Logger) (*Matcher, error) {
	return LoadFiles(root, DefaultFiles, logger)
}

// LoadFiles reads the named ignore files from root.
func LoadFiles(root string, names []string, logger *zap.Logger) (*Matcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Matcher{}
	for _, name := range names {
		path := filepath.Join(root, name)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Ignore file not present", zap.String("file", path))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open ignore file %s: %w", path, err)
		}
		// Paths handed to Match are root-relative, so the matcher base is ".".
		matcher := gitignore.NewGitIgnoreFromReader(".", f)
		closeErr := f.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to close ignore file %s: %w", path, closeErr)
		}
		m.matchers = append(m.matchers, matcher)
		m.sources = append(m.sources, path)
		logger.Debug("Loaded ignore file", zap.String("file", path))
	}
	return m, nil
}

// Ignored reports whether rel (slash separated, relative to the root) is
// ignored by any loaded file.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	native := filepath.FromSlash(rel)
	for _, matcher := range m.matchers {
		if matcher.Match(native, isDir) {
			return true
		}
	}
	return false
}

// Sources lists the ignore files that were loaded.
func (m *Matcher) Sources() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.sources...)
}
