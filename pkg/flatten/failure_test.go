package flatten

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"contxt/pkg/entry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cancelAfter cancels the run once it has counted tokens for limit files.
type cancelAfter struct {
	calls  atomic.Int32
	limit  int32
	cancel context.CancelFunc
}

func (c *cancelAfter) Count(text string) int {
	if c.calls.Add(1) == c.limit {
		c.cancel()
	}
	return 1
}

func assertConsistent(t *testing.T, m *Manifest) {
	t.Helper()
	assert.Equal(t, m.FilesIncluded+m.FilesSkipped, m.FilesScanned)
	assert.Len(t, m.Skipped, m.FilesSkipped)

	written := map[int]bool{}
	emitted := 0
	for _, d := range m.Documents {
		written[d.Index] = true
		emitted += len(d.Files)
		assert.FileExists(t, d.Path)
		decodeFile(t, d.Path)
	}
	assert.Equal(t, emitted, m.FilesIncluded, "included files are exactly the emitted ones")

	included := 0
	for _, f := range m.Files {
		if f.Included() {
			included++
			assert.True(t, written[f.Document], "%s points at an unwritten document", f.Path)
		} else {
			assert.Equal(t, -1, f.Document, f.Path)
		}
	}
	assert.Equal(t, m.FilesIncluded, included)
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunWriteErrorKeepsEarlierParts(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"x.txt": strings.Repeat("x", 800),
		"y.txt": strings.Repeat("y", 800),
		"z.txt": strings.Repeat("z", 800),
	})
	// A directory at the second part's path makes its rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(out, "ctx.part-002.txt"), 0o755))

	cfg := DefaultConfig(root, out)
	cfg.OutputBaseName = "ctx"
	cfg.MaxOutputSize = 1000

	m, err := Run(context.Background(), cfg, nil)
	require.ErrorIs(t, err, ErrWrite)
	require.NotNil(t, m)

	require.Len(t, m.Documents, 1)
	assert.Equal(t, []string{"x.txt"}, m.Documents[0].Files)
	blocks := decodeFile(t, filepath.Join(out, "ctx.part-001.txt"))
	require.Len(t, blocks, 1)
	assert.Equal(t, "x.txt", blocks[0].Path)

	assert.Equal(t, 1, m.FilesIncluded)
	s, ok := skipFor(m, "y.txt")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonNotWritten, s.Reason)
	assertConsistent(t, m)

	assert.Equal(t, []string{"ctx.part-001.txt", "ctx.part-002.txt"}, dirNames(t, out), "no temporary files remain")
}

func TestRunCancelledMidRun(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 400; i++ {
		files[fmt.Sprintf("f%03d.txt", i)] = fmt.Sprintf("file %d\n", i)
	}
	writeTree(t, root, files)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := DefaultConfig(root, out)
	cfg.OutputBaseName = "ctx"
	cfg.MaxOutputSize = 200
	cfg.Workers = 2
	cfg.Tokens = &cancelAfter{limit: 50, cancel: cancel}

	m, err := Run(ctx, cfg, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, m)
	assert.NotEmpty(t, m.Documents)
	assert.Less(t, len(m.Documents), 400)
	assertConsistent(t, m)

	names := dirNames(t, out)
	assert.Len(t, names, len(m.Documents), "only completed documents are on disk")
	for _, name := range names {
		assert.False(t, strings.HasPrefix(name, "."), "leftover temporary file %s", name)
	}
}

func TestRunFollowedLinkDoesNotExposeExcludedFile(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeTree(t, root, map[string]string{
		"node_modules/secret.js": "SECRET_MARKER\n",
		"main.go":                "package main\n",
	})
	require.NoError(t, os.Symlink(filepath.Join(root, "node_modules", "secret.js"), filepath.Join(root, "link.js")))

	cfg := DefaultConfig(root, out)
	cfg.FollowSymlinks = true
	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	require.Len(t, m.Documents, 1)
	assert.Equal(t, []string{"main.go"}, m.Documents[0].Files)
	data, err := os.ReadFile(m.Documents[0].Path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "SECRET_MARKER")

	s, ok := skipFor(m, "link.js")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonExcluded, s.Reason)
	assertConsistent(t, m)
}

func TestRunRecordsSymlinkCycle(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"dir/file.txt": "data\n"})
	require.NoError(t, os.Symlink(filepath.Join(root, "dir"), filepath.Join(root, "dir", "loop")))

	cfg := DefaultConfig(root, t.TempDir())
	cfg.FollowSymlinks = true
	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	s, ok := skipFor(m, "dir/loop")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonSymlinkCycle, s.Reason)
	assert.Equal(t, entry.KindSymlink, s.Kind)
	assert.Equal(t, 1, m.FilesIncluded)
	assertConsistent(t, m)
}

func TestRunContinuesPastTraversalErrors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a\n", "z.txt": "z\n"})
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")))

	cfg := DefaultConfig(root, t.TempDir())
	cfg.FollowSymlinks = true
	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	s, ok := skipFor(m, "dangling")
	require.True(t, ok)
	assert.Equal(t, entry.ReasonTraversal, s.Reason)
	require.Len(t, m.Documents, 1)
	assert.Equal(t, []string{"a.txt", "z.txt"}, m.Documents[0].Files)
	assertConsistent(t, m)
}

func TestRunRecordsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a\n", "locked/b.txt": "b\n"})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	m, err := Run(context.Background(), DefaultConfig(root, t.TempDir()), nil)
	require.NoError(t, err)

	require.Len(t, m.DirErrors, 1)
	assert.Equal(t, "locked", m.DirErrors[0].Path)
	assert.Equal(t, entry.ReasonTraversal, m.DirErrors[0].Reason)
	require.Len(t, m.Documents, 1)
	assert.Equal(t, []string{"a.txt"}, m.Documents[0].Files)
	assertConsistent(t, m)
}

func TestDropUnwritten(t *testing.T) {
	m := &Manifest{
		FilesScanned:  3,
		FilesIncluded: 2,
		FilesSkipped:  1,
		Skipped:       []Skip{{Path: "c.bin", Reason: entry.ReasonBinary}},
		Files: []FileSummary{
			{Path: "a.txt", Document: 0},
			{Path: "b.txt", Document: 1},
			{Path: "c.bin", Document: -1, Skip: entry.ReasonBinary},
		},
		Documents: []Document{{Index: 0, Files: []string{"a.txt"}}},
	}
	m.dropUnwritten(context.Canceled)

	assert.Equal(t, 1, m.FilesIncluded)
	assert.Equal(t, 2, m.FilesSkipped)
	assert.Equal(t, 3, m.FilesScanned)
	assert.Equal(t, -1, m.Files[1].Document)
	assert.Equal(t, entry.ReasonNotWritten, m.Files[1].Skip)
	assert.Equal(t, map[entry.Reason]int{entry.ReasonBinary: 1, entry.ReasonNotWritten: 1}, m.SkipCounts())
}
