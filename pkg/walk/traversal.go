// File: pkg/walk/traversal.go

// Package walk traverses a directory tree in deterministic depth-first
// pre-order and yields candidate entries lazily.
package walk

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"contxt/pkg/entry"
	"contxt/pkg/pathfilter"

	"go.uber.org/zap"
)

// Decider is the subset of the path filter the walker needs.
type Decider interface {
	Decide(rel string, kind entry.Kind) pathfilter.Decision
}

// CandidateEntry is one filesystem entry seen during a walk.
type CandidateEntry struct {
	AbsPath string     // absolute path as reached from the root (symlinks not resolved)
	RelPath string     // slash separated path relative to the root
	Kind    entry.Kind // kind of the entry itself
	Target  entry.Kind // for followed symlinks, the kind of the resolved target
	Depth   int        // 1 for direct children of the root
	Size    int64      // filesystem-reported size of files (or link targets)

	// Skip is set when the entry is excluded; Detail names the excluding
	// pattern or the error text.
	Skip   entry.Reason
	Detail string
}

// Skipped reports whether the entry was excluded during traversal.
func (c CandidateEntry) Skipped() bool { return c.Skip != "" }

// Options configures a Walker. Whether symlinks are followed is decided by
// the filter.
type Options struct {
	Logger *zap.Logger
}

// Walker walks one root. Each call to Walk starts a fresh traversal.
type Walker struct {
	root     string
	realRoot string
	filter   Decider
	logger   *zap.Logger
}

// New prepares a walker over root, which must be an existing directory.
func New(root string, filter Decider, opts Options) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", abs, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{root: abs, realRoot: resolved, filter: filter, logger: logger}, nil
}

// Root returns the absolute root path.
func (w *Walker) Root() string { return w.root }

// Walk returns the entries below the root. Entries of a directory are visited
// in lexicographic name order, files and directories interleaved; a directory
// is yielded before its contents. The root itself is not yielded. Iteration
// stops early when ctx is done or the consumer breaks.
func (w *Walker) Walk(ctx context.Context) iter.Seq[CandidateEntry] {
	return func(yield func(CandidateEntry) bool) {
		entries, err := os.ReadDir(w.root)
		if err != nil {
			w.logger.Warn("Failed to read root directory", zap.String("root", w.root), zap.Error(err))
			yield(CandidateEntry{AbsPath: w.root, RelPath: ".", Kind: entry.KindDir, Skip: entry.ReasonTraversal, Detail: err.Error()})
			return
		}
		chain := map[string]bool{w.realRoot: true}
		w.visitChildren(ctx, w.root, w.realRoot, "", 0, entries, chain, yield)
	}
}

func (w *Walker) visitChildren(ctx context.Context, abs, resolved, rel string, depth int, entries []fs.DirEntry, chain map[string]bool, yield func(CandidateEntry) bool) bool {
	for _, d := range entries {
		if ctx.Err() != nil {
			return false
		}
		childAbs := filepath.Join(abs, d.Name())
		childResolved := filepath.Join(resolved, d.Name())
		childRel := path.Join(rel, d.Name())
		if !w.visit(ctx, d, childAbs, childResolved, childRel, depth+1, chain, yield) {
			return false
		}
	}
	return true
}

func (w *Walker) visit(ctx context.Context, d fs.DirEntry, abs, resolved, rel string, depth int, chain map[string]bool, yield func(CandidateEntry) bool) bool {
	ce := CandidateEntry{AbsPath: abs, RelPath: rel, Depth: depth}
	mode := d.Type()

	switch {
	case mode&fs.ModeSymlink != 0:
		ce.Kind = entry.KindSymlink
		return w.visitSymlink(ctx, ce, chain, yield)

	case mode.IsDir():
		ce.Kind = entry.KindDir
		dec := w.filter.Decide(rel, entry.KindDir)
		if dec.Verdict == pathfilter.Exclude {
			return w.prune(ctx, ce, dec, yield)
		}
		return w.descend(ctx, ce, resolved, chain, yield)

	case mode.IsRegular():
		ce.Kind = entry.KindFile
		info, err := d.Info()
		if err != nil {
			w.logger.Warn("Error accessing path during traversal", zap.String("path", abs), zap.Error(err))
			ce.Skip, ce.Detail = entry.ReasonTraversal, err.Error()
			return yield(ce)
		}
		ce.Size = info.Size()
		if dec := w.filter.Decide(rel, entry.KindFile); dec.Verdict == pathfilter.Exclude {
			ce.Skip, ce.Detail = dec.Reason, dec.Pattern
			w.logger.Debug("Skipping file", zap.String("path", rel), zap.String("reason", string(dec.Reason)))
		}
		return yield(ce)

	default:
		ce.Kind = entry.KindFile
		ce.Skip, ce.Detail = entry.ReasonNotRegular, mode.String()
		return yield(ce)
	}
}

// descend yields a directory entry and then its children. resolved is the
// symlink-free path of the directory, used for cycle detection.
func (w *Walker) descend(ctx context.Context, ce CandidateEntry, resolved string, chain map[string]bool, yield func(CandidateEntry) bool) bool {
	entries, err := os.ReadDir(ce.AbsPath)
	if err != nil {
		w.logger.Warn("Failed to read directory", zap.String("path", ce.AbsPath), zap.Error(err))
		ce.Skip, ce.Detail = entry.ReasonTraversal, err.Error()
		return yield(ce)
	}
	if !yield(ce) {
		return false
	}
	chain[resolved] = true
	defer delete(chain, resolved)
	return w.visitChildren(ctx, ce.AbsPath, resolved, ce.RelPath, ce.Depth, entries, chain, yield)
}

func (w *Walker) visitSymlink(ctx context.Context, ce CandidateEntry, chain map[string]bool, yield func(CandidateEntry) bool) bool {
	if dec := w.filter.Decide(ce.RelPath, entry.KindSymlink); dec.Verdict == pathfilter.Exclude {
		ce.Skip, ce.Detail = dec.Reason, dec.Pattern
		return yield(ce)
	}

	target, err := filepath.EvalSymlinks(ce.AbsPath)
	if err != nil {
		w.logger.Warn("Failed to resolve symlink", zap.String("path", ce.AbsPath), zap.Error(err))
		ce.Skip, ce.Detail = entry.ReasonTraversal, err.Error()
		return yield(ce)
	}
	info, err := os.Stat(target)
	if err != nil {
		ce.Skip, ce.Detail = entry.ReasonTraversal, err.Error()
		return yield(ce)
	}

	switch {
	case info.IsDir():
		ce.Target = entry.KindDir
		if chain[target] {
			w.logger.Debug("Symlink cycle", zap.String("path", ce.RelPath), zap.String("target", target))
			ce.Skip, ce.Detail = entry.ReasonSymlinkCycle, target
			return yield(ce)
		}
		dec := w.decideLink(ce.RelPath, target, entry.KindDir)
		if dec.Verdict == pathfilter.Exclude {
			return w.prune(ctx, ce, dec, yield)
		}
		return w.descend(ctx, ce, target, chain, yield)

	case info.Mode().IsRegular():
		ce.Target = entry.KindFile
		ce.Size = info.Size()
		if dec := w.decideLink(ce.RelPath, target, entry.KindFile); dec.Verdict == pathfilter.Exclude {
			ce.Skip, ce.Detail = dec.Reason, dec.Pattern
		}
		return yield(ce)

	default:
		ce.Skip, ce.Detail = entry.ReasonNotRegular, info.Mode().String()
		return yield(ce)
	}
}

// decideLink evaluates a followed link with the kind of its target. The
// link path must pass every rule. A target inside the root must also pass
// the exclude and ignore rules under its own path, so a link never exposes
// an excluded file; include rules are judged on the link path alone.
func (w *Walker) decideLink(rel, target string, kind entry.Kind) pathfilter.Decision {
	dec := w.filter.Decide(rel, kind)
	if dec.Verdict == pathfilter.Exclude {
		return dec
	}
	targetRel, ok := w.relToRoot(target)
	if !ok {
		return dec
	}
	tdec := w.filter.Decide(targetRel, kind)
	if tdec.Verdict != pathfilter.Exclude || tdec.Reason == entry.ReasonNotIncluded {
		return dec
	}
	w.logger.Debug("Symlink target excluded", zap.String("path", rel), zap.String("target", targetRel))
	if tdec.Pattern == "" {
		tdec.Pattern = "target " + targetRel
	} else {
		tdec.Pattern += " (target " + targetRel + ")"
	}
	return tdec
}

// relToRoot returns the slash separated path of a resolved path below the
// resolved root.
func (w *Walker) relToRoot(resolved string) (string, bool) {
	rel, err := filepath.Rel(w.realRoot, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// prune yields an excluded directory and, for accounting only, every entry
// below it with the same reason. Nothing below is filtered, followed or read.
func (w *Walker) prune(ctx context.Context, ce CandidateEntry, dec pathfilter.Decision, yield func(CandidateEntry) bool) bool {
	w.logger.Debug("Skipping ignored directory during traversal", zap.String("directory", ce.RelPath), zap.String("pattern", dec.Pattern))
	ce.Skip, ce.Detail = dec.Reason, dec.Pattern
	if !yield(ce) {
		return false
	}
	return w.pruneChildren(ctx, ce.AbsPath, ce.RelPath, ce.Depth, dec, yield)
}

func (w *Walker) pruneChildren(ctx context.Context, abs, rel string, depth int, dec pathfilter.Decision, yield func(CandidateEntry) bool) bool {
	entries, err := os.ReadDir(abs)
	if err != nil {
		w.logger.Debug("Cannot list excluded directory", zap.String("path", abs), zap.Error(err))
		return true
	}
	for _, d := range entries {
		if ctx.Err() != nil {
			return false
		}
		ce := CandidateEntry{
			AbsPath: filepath.Join(abs, d.Name()),
			RelPath: path.Join(rel, d.Name()),
			Depth:   depth + 1,
			Skip:    dec.Reason,
			Detail:  dec.Pattern,
		}
		mode := d.Type()
		switch {
		case mode&fs.ModeSymlink != 0:
			ce.Kind = entry.KindSymlink
		case mode.IsDir():
			ce.Kind = entry.KindDir
		default:
			ce.Kind = entry.KindFile
		}
		if !yield(ce) {
			return false
		}
		if ce.Kind == entry.KindDir && !w.pruneChildren(ctx, ce.AbsPath, ce.RelPath, ce.Depth, dec, yield) {
			return false
		}
	}
	return true
}
