package flatten

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"contxt/pkg/entry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func decodeFile(t *testing.T, path string) []Block {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	blocks, err := DecodeBlocks(f)
	require.NoError(t, err)
	return blocks
}

func skipFor(m *Manifest, path string) (Skip, bool) {
	for _, s := range m.Skipped {
		if s.Path == path {
			return s, true
		}
	}
	return Skip{}, false
}

func TestRunDefaultConfig(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":             strings.Repeat("hello\n", 10),
		"b.bin":             "ab\x00cd",
		"node_modules/c.js": "console.log(1)\n",
	})

	m, err := Run(context.Background(), DefaultConfig(root, out), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, m.FilesScanned)
	assert.Equal(t, 1, m.FilesIncluded)
	assert.Equal(t, 2, m.FilesSkipped)

	s, ok := skipFor(m, "b.bin")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonBinary, s.Reason)
	s, ok = skipFor(m, "node_modules/c.js")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonExcluded, s.Reason)
	assert.Equal(t, "node_modules", s.Detail)

	require.Len(t, m.Documents, 1)
	doc := m.Documents[0]
	assert.Equal(t, filepath.Join(out, "flattened_"+filepath.Base(root)+".txt"), doc.Path)
	assert.Equal(t, []string{"a.txt"}, doc.Files)

	blocks := decodeFile(t, doc.Path)
	require.Len(t, blocks, 1)
	assert.Equal(t, "a.txt", blocks[0].Path)
	assert.Equal(t, 10, blocks[0].Lines)
	assert.Equal(t, "text", blocks[0].Language)
	assert.Equal(t, strings.Repeat("hello\n", 10), string(blocks[0].Content))
}

func TestRunSplitsByOutputSize(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"x.txt": strings.Repeat("x", 800),
		"y.txt": strings.Repeat("y", 800),
	})
	cfg := DefaultConfig(root, out)
	cfg.MaxOutputSize = 1000
	cfg.OutputBaseName = "ctx"

	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, m.Documents, 2)

	for i, want := range []string{"x.txt", "y.txt"} {
		doc := m.Documents[i]
		assert.Equal(t, filepath.Join(out, DocumentName("ctx", i, true)), doc.Path)
		assert.LessOrEqual(t, doc.Size, int64(1000))
		blocks := decodeFile(t, doc.Path)
		require.Len(t, blocks, 1)
		assert.Equal(t, want, blocks[0].Path)
	}
	assert.NoFileExists(t, filepath.Join(out, "ctx.txt"))
}

func TestRunSkipsOversizedFile(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"huge.txt":  strings.Repeat("h", 5000),
		"small.txt": "small\n",
	})
	cfg := DefaultConfig(root, out)
	cfg.MaxFileSize = 1000

	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	s, ok := skipFor(m, "huge.txt")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonExceedsFileSize, s.Reason)

	require.Len(t, m.Documents, 1)
	for _, b := range decodeFile(t, m.Documents[0].Path) {
		assert.NotEqual(t, "huge.txt", b.Path)
	}
}

func TestRunSkipsBlockLargerThanOutputLimit(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"big.txt":   strings.Repeat("b", 2000),
		"small.txt": "s\n",
	})
	cfg := DefaultConfig(root, out)
	cfg.MaxOutputSize = 1000

	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	s, ok := skipFor(m, "big.txt")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonExceedsOutputSize, s.Reason)
	assert.Equal(t, 1, m.FilesIncluded)
	require.Len(t, m.Documents, 1)
	assert.Equal(t, []string{"small.txt"}, m.Documents[0].Files)
}

func TestRunIsDeterministic(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"b", "a", "c/d", "c/a", "e/f/g", "Z"} {
		files[name+".go"] = "package " + strings.ReplaceAll(name, "/", "_") + "\n"
	}
	writeTree(t, root, files)

	read := func(workers int) []byte {
		out := t.TempDir()
		cfg := DefaultConfig(root, out)
		cfg.Workers = workers
		cfg.OutputBaseName = "same"
		m, err := Run(context.Background(), cfg, nil)
		require.NoError(t, err)
		require.Len(t, m.Documents, 1)
		data, err := os.ReadFile(m.Documents[0].Path)
		require.NoError(t, err)
		return data
	}

	first := read(1)
	for _, workers := range []int{1, 2, 8} {
		assert.True(t, bytes.Equal(first, read(workers)), "workers=%d", workers)
	}

	blocks, err := DecodeBlocks(bytes.NewReader(first))
	require.NoError(t, err)
	var order []string
	for _, b := range blocks {
		order = append(order, b.Path)
	}
	assert.Equal(t, []string{"Z.go", "a.go", "b.go", "c/a.go", "c/d.go", "e/f/g.go"}, order)
}

func TestRunExcludeBeatsInclude(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.go":        "package keep\n",
		"keep_test.go":   "package keep\n",
		"docs/readme.md": "# docs\n",
	})
	cfg := DefaultConfig(root, out)
	cfg.Include = []string{"*.go"}
	cfg.Exclude = []string{"*_test.go"}

	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, m.Documents, 1)
	assert.Equal(t, []string{"keep.go"}, m.Documents[0].Files)

	s, ok := skipFor(m, "keep_test.go")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonExcluded, s.Reason)
	s, ok = skipFor(m, "docs/readme.md")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonNotIncluded, s.Reason)
}

func TestRunRespectsIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":     "secret.txt\n",
		".flattenignore": "generated/\n",
		"secret.txt":     "pw\n",
		"generated/x.go": "package x\n",
		"main.go":        "package main\n",
	})

	cfg := DefaultConfig(root, t.TempDir())
	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	s, ok := skipFor(m, "secret.txt")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonIgnored, s.Reason)
	s, ok = skipFor(m, "generated/x.go")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonIgnored, s.Reason)

	cfg = DefaultConfig(root, t.TempDir())
	cfg.RespectIgnoreFiles = false
	m, err = Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	_, ok = skipFor(m, "secret.txt")
	assert.False(t, ok)
}

func TestRunBinaryContentNeverEmitted(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"img.dat":  "MARKER\x00\x01\x02",
		"bad.txt":  "MARKER \xff\xfe",
		"text.txt": "plain\n",
	})

	m, err := Run(context.Background(), DefaultConfig(root, out), nil)
	require.NoError(t, err)
	assert.Equal(t, map[entry.Reason]int{entry.ReasonBinary: 2}, m.SkipCounts())

	data, err := os.ReadFile(m.Documents[0].Path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "MARKER")
}

func TestRunOutputInsideRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a\n"})
	out := filepath.Join(root, "out")

	cfg := DefaultConfig(root, out)
	first, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	second, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, first.FilesIncluded, second.FilesIncluded)
	require.Len(t, second.Documents, 1)
	assert.Equal(t, []string{"a.txt"}, second.Documents[0].Files)
}

func TestRunRemovesStaleParts(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"x.txt": strings.Repeat("x", 800),
		"y.txt": strings.Repeat("y", 800),
	})
	cfg := DefaultConfig(root, out)
	cfg.OutputBaseName = "ctx"
	cfg.MaxOutputSize = 1000
	_, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "ctx.part-002.txt"))

	cfg.MaxOutputSize = 0
	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, m.Documents, 1)
	assert.FileExists(t, filepath.Join(out, "ctx.txt"))
	assert.NoFileExists(t, filepath.Join(out, "ctx.part-001.txt"))
	assert.NoFileExists(t, filepath.Join(out, "ctx.part-002.txt"))
}

func TestRunStructureOnly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a\n"})
	cfg := DefaultConfig(root, "")
	cfg.StructureOnly = true

	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.FilesIncluded)
	assert.Empty(t, m.Documents)
	require.Len(t, m.Files, 1)
	assert.Equal(t, "go", m.Files[0].Language)
	assert.Equal(t, -1, m.Files[0].Document, "no document is written in structure-only runs")
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a\n", "b.txt": "b\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := Run(ctx, DefaultConfig(root, out), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, m)
	assert.Empty(t, m.Documents)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunConfigErrors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name  string
		cfg   func() Config
		field string
	}{
		{"missing root", func() Config { return DefaultConfig(filepath.Join(root, "nope"), t.TempDir()) }, "root"},
		{"root is a file", func() Config { return DefaultConfig(file, t.TempDir()) }, "root"},
		{"negative file size", func() Config {
			c := DefaultConfig(root, t.TempDir())
			c.MaxFileSize = -1
			return c
		}, "max file size"},
		{"negative output size", func() Config {
			c := DefaultConfig(root, t.TempDir())
			c.MaxOutputSize = -5
			return c
		}, "max output size"},
		{"empty output dir", func() Config { return DefaultConfig(root, "") }, "output directory"},
		{"output dir is a file", func() Config { return DefaultConfig(root, file) }, "output directory"},
		{"base name with separator", func() Config {
			c := DefaultConfig(root, t.TempDir())
			c.OutputBaseName = "a/b"
			return c
		}, "output base name"},
		{"bad pattern", func() Config {
			c := DefaultConfig(root, t.TempDir())
			c.Include = []string{"re:("}
			return c
		}, "pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Run(context.Background(), tt.cfg(), nil)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestManifestAccounting(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go":            "package a\n",
		"b.bin":           "\x00",
		".git/HEAD":       "ref\n",
		".git/refs/heads": "x\n",
		"vendor/v/v.go":   "package v\n",
		"ok/c.go":         "package c\n",
	})
	cfg := DefaultConfig(root, t.TempDir())
	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, m.FilesIncluded+m.FilesSkipped, m.FilesScanned)
	assert.Len(t, m.Files, m.FilesScanned)
	assert.Len(t, m.Skipped, m.FilesSkipped)
	assert.Equal(t, []entry.Reason{entry.ReasonBinary, entry.ReasonExcluded}, m.Reasons())
	assert.Equal(t, 3, m.SkipCounts()[entry.ReasonExcluded])
}
