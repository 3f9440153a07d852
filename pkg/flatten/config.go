// File: pkg/flatten/config.go
package flatten

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"contxt/pkg/pathfilter"
	"contxt/pkg/tokens"
)

// Default limits.
const (
	DefaultMaxFileSize    = 1 << 20 // 1 MiB
	DefaultMaxOutputSize  = 0       // unbounded, single document
	DefaultBaseNamePrefix = "flattened_"
)

// DefaultExcludes covers VCS metadata, dependency and build directories and
// lock files.
var DefaultExcludes = []string{
	".git", ".hg", ".svn", ".bzr",
	"node_modules", "vendor", "bower_components",
	"target", "build", "dist", ".next", ".cache",
	"__pycache__", ".venv", ".mypy_cache", ".pytest_cache", ".tox",
	".idea", ".vscode", ".DS_Store",
	"*.lock", "package-lock.json", "npm-shrinkwrap.json", "pnpm-lock.yaml", "bun.lockb",
}

// ErrInvalidConfig is matched by every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports a configuration problem found before any output is
// written.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// Config holds the options of one flatten run.
type Config struct {
	Root           string   // directory to flatten
	Include        []string // patterns; empty means match all
	Exclude        []string // patterns; take precedence over Include
	MaxFileSize    int64    // files above this are never read; 0 means unbounded
	MaxOutputSize  int64    // per document; 0 means unbounded
	FollowSymlinks bool

	// RespectIgnoreFiles applies the root's .gitignore and .flattenignore.
	RespectIgnoreFiles bool

	OutputDir      string
	OutputBaseName string // defaults to "flattened_<root name>"

	// StructureOnly runs the pipeline without emitting documents.
	StructureOnly bool

	Workers int            // concurrent file readers; <= 0 means runtime.NumCPU()
	Tokens  tokens.Counter // optional per-file token counting
}

// DefaultConfig returns the defaults for flattening root into outputDir.
func DefaultConfig(root, outputDir string) Config {
	return Config{
		Root:               root,
		Exclude:            append([]string(nil), DefaultExcludes...),
		MaxFileSize:        DefaultMaxFileSize,
		MaxOutputSize:      DefaultMaxOutputSize,
		RespectIgnoreFiles: true,
		OutputDir:          outputDir,
		Workers:            runtime.NumCPU(),
	}
}

// normalize checks c and fills derived fields. It touches the filesystem
// only to check the root and to create and probe the output directory.
func (c Config) normalize() (Config, error) {
	if strings.TrimSpace(c.Root) == "" {
		return c, &ConfigError{Field: "root", Err: errors.New("root path is empty")}
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return c, &ConfigError{Field: "root", Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return c, &ConfigError{Field: "root", Err: err}
	}
	if !info.IsDir() {
		return c, &ConfigError{Field: "root", Err: fmt.Errorf("%s is not a directory", root)}
	}
	c.Root = root

	if c.MaxFileSize < 0 {
		return c, &ConfigError{Field: "max file size", Err: fmt.Errorf("must not be negative, got %d", c.MaxFileSize)}
	}
	if c.MaxOutputSize < 0 {
		return c, &ConfigError{Field: "max output size", Err: fmt.Errorf("must not be negative, got %d", c.MaxOutputSize)}
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.OutputBaseName == "" {
		c.OutputBaseName = DefaultBaseNamePrefix + filepath.Base(root)
	}
	if strings.ContainsAny(c.OutputBaseName, `/\`) || c.OutputBaseName == "." || c.OutputBaseName == ".." {
		return c, &ConfigError{Field: "output base name", Err: fmt.Errorf("%q must be a plain file name", c.OutputBaseName)}
	}

	if c.StructureOnly {
		return c, nil
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return c, &ConfigError{Field: "output directory", Err: errors.New("output directory is empty")}
	}
	if c.OutputDir, err = filepath.Abs(c.OutputDir); err != nil {
		return c, &ConfigError{Field: "output directory", Err: err}
	}
	if err := probeWritable(c.OutputDir); err != nil {
		return c, &ConfigError{Field: "output directory", Err: err}
	}
	return c, nil
}

// outputExclude returns an anchored pattern for the output directory when it
// lies inside the root, so earlier documents are never flattened again.
func (c Config) outputExclude() (string, bool) {
	if c.StructureOnly || c.OutputDir == "" {
		return "", false
	}
	rel, err := filepath.Rel(c.Root, c.OutputDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return pathfilter.RegexPrefix + "^" + regexp.QuoteMeta(filepath.ToSlash(rel)) + "$", true
}

func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".contxt-probe-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Remove(name)
}
