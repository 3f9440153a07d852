// File: pkg/flatten/writer.go
package flatten

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrWrite wraps failures to persist an output document.
var ErrWrite = errors.New("write output document")

const documentExt = ".txt"

// DocumentName returns the file name for chunk index of a run. A run with a
// single chunk uses the bare base name; otherwise chunks are numbered from 1.
func DocumentName(base string, index int, multi bool) string {
	if !multi {
		return base + documentExt
	}
	return fmt.Sprintf("%s.part-%03d%s", base, index+1, documentExt)
}

// writer persists finalized chunks. The first chunk is held back until it is
// known whether the run produces more than one, which decides its name.
type writer struct {
	dir     string
	base    string
	logger  *zap.Logger
	pending *OutputChunk
	multi   bool
	written []Document
}

func newWriter(dir, base string, logger *zap.Logger) *writer {
	return &writer{dir: dir, base: base, logger: logger}
}

// accept receives a finalized chunk.
func (w *writer) accept(c *OutputChunk) error {
	if !c.Finalized() {
		return fmt.Errorf("%w: chunk %d is not finalized", ErrWrite, c.Index)
	}
	if !w.multi && w.pending == nil {
		w.pending = c
		return nil
	}
	if !w.multi {
		w.multi = true
		first := w.pending
		w.pending = nil
		if err := w.write(first); err != nil {
			return err
		}
	}
	return w.write(c)
}

// close writes a held single chunk and returns the emitted documents.
func (w *writer) close() ([]Document, error) {
	if w.pending != nil {
		c := w.pending
		w.pending = nil
		if err := w.write(c); err != nil {
			return w.written, err
		}
	}
	return w.written, nil
}

// abort forgets a held chunk; documents already written stay in place.
func (w *writer) abort() {
	w.pending = nil
}

func (w *writer) write(c *OutputChunk) error {
	path := filepath.Join(w.dir, DocumentName(w.base, c.Index, w.multi))
	if err := writeAtomic(path, c.Bytes()); err != nil {
		w.logger.Error("Failed to write output document", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w %s: %w", ErrWrite, path, err)
	}
	files := make([]string, 0, len(c.Records))
	for _, rec := range c.Records {
		files = append(files, rec.Path)
	}
	w.written = append(w.written, Document{Path: path, Index: c.Index, Size: c.Size, Files: files})
	w.logger.Info("Wrote output document",
		zap.String("path", path),
		zap.Int("index", c.Index),
		zap.Int64("sizeBytes", c.Size),
		zap.Int("files", len(files)))
	return nil
}

// removeStale deletes documents of the same base name that this run did not
// produce, e.g. extra parts left by an earlier, larger run.
func (w *writer) removeStale() error {
	keep := make(map[string]bool, len(w.written))
	for _, d := range w.written {
		keep[d.Path] = true
	}
	candidates, err := filepath.Glob(filepath.Join(w.dir, globEscape(w.base)+".part-*"+documentExt))
	if err != nil {
		return err
	}
	candidates = append(candidates, filepath.Join(w.dir, w.base+documentExt))

	var errs error
	for _, p := range candidates {
		if keep[p] {
			continue
		}
		err := os.Remove(p)
		if err == nil {
			w.logger.Debug("Removed stale output document", zap.String("path", p))
		} else if !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// writeAtomic stages data in a temporary file next to path and renames it
// into place, so path never holds a partial document.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			err = multierr.Append(err, ignoreNotExist(os.Remove(tmpName)))
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return multierr.Append(err, tmp.Close())
	}
	if err = tmp.Sync(); err != nil {
		return multierr.Append(err, tmp.Close())
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func ignoreNotExist(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func globEscape(s string) string {
	var out []rune
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
