// File: pkg/flatten/execute.go

// Package flatten consolidates a directory tree into one or more flat text
// documents of self-delimiting file blocks.
//
// Run walks the root in deterministic order, reads and classifies files on a
// bounded worker pool, and appends blocks to size-bounded chunks strictly in
// walk order. Each finalized chunk is written atomically.
package flatten

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contxt/pkg/entry"
	"contxt/pkg/ignore"
	"contxt/pkg/pathfilter"
	"contxt/pkg/walk"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run flattens cfg.Root. Configuration errors are returned before anything
// is written. On cancellation or a write error the returned manifest lists
// only the documents that were completely written.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) (*Manifest, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	startTime := time.Now()

	cfg, err := cfg.normalize()
	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return nil, err
	}
	logger.Info("Starting flatten", zap.String("root", cfg.Root), zap.String("outputDir", cfg.OutputDir))

	walker, err := newWalker(cfg, logger)
	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return nil, err
	}

	r := &run{
		cfg:      cfg,
		manifest: &Manifest{Root: walker.Root()},
		loader:   &loader{maxFileSize: cfg.MaxFileSize, tokens: cfg.Tokens, logger: logger},
		logger:   logger,
	}
	sink := func(*OutputChunk) error { return nil }
	if !cfg.StructureOnly {
		r.writer = newWriter(cfg.OutputDir, cfg.OutputBaseName, logger)
		sink = r.writer.accept
	}
	r.agg = newAggregator(cfg.MaxOutputSize, sink)

	if err := r.process(ctx, walker); err != nil {
		return r.fail(err)
	}
	if err := r.agg.seal(); err != nil {
		return r.fail(err)
	}
	if r.writer != nil {
		docs, err := r.writer.close()
		r.manifest.Documents = docs
		if err != nil {
			return r.fail(err)
		}
		if err := r.writer.removeStale(); err != nil {
			logger.Warn("Failed to remove stale output documents", zap.Error(err))
		}
	}

	m := r.manifest
	logger.Info("Flatten completed",
		zap.Int("filesScanned", m.FilesScanned),
		zap.Int("filesIncluded", m.FilesIncluded),
		zap.Int("filesSkipped", m.FilesSkipped),
		zap.Int("documents", len(m.Documents)),
		zap.Duration("elapsed", time.Since(startTime)))
	return m, nil
}

func newWalker(cfg Config, logger *zap.Logger) (*walk.Walker, error) {
	opts := pathfilter.Options{
		Include:        cfg.Include,
		Exclude:        append([]string(nil), cfg.Exclude...),
		FollowSymlinks: cfg.FollowSymlinks,
	}
	if p, ok := cfg.outputExclude(); ok {
		opts.Exclude = append(opts.Exclude, p)
	}
	if cfg.RespectIgnoreFiles {
		m, err := ignore.Load(cfg.Root, logger)
		if err != nil {
			return nil, &ConfigError{Field: "ignore files", Err: err}
		}
		logger.Debug("Loaded ignore files", zap.Strings("sources", m.Sources()))
		opts.Ignorer = m
	}

	filter, err := pathfilter.New(opts)
	if err != nil {
		return nil, &ConfigError{Field: "pattern", Err: err}
	}
	w, err := walk.New(cfg.Root, filter, walk.Options{Logger: logger})
	if err != nil {
		return nil, &ConfigError{Field: "root", Err: err}
	}
	return w, nil
}

// run is the state of one invocation.
type run struct {
	cfg      Config
	manifest *Manifest
	loader   *loader
	agg      *aggregator
	writer   *writer
	logger   *zap.Logger
}

// process streams walk entries through the worker pool and consumes the
// results in walk order.
func (r *run) process(ctx context.Context, walker *walk.Walker) error {
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job)
	ordered := make(chan job, 2*r.cfg.Workers)
	workers := startWorkers(gctx, r.cfg.Workers, jobs, r.loader, r.logger)

	g.Go(func() error {
		defer close(ordered)
		defer close(jobs)
		for ce := range walker.Walk(gctx) {
			j := newJob(ce)
			switch {
			case needsRead(ce):
				select {
				case jobs <- j:
				case <-gctx.Done():
					return gctx.Err()
				}
			case needsRecord(ce):
				j.result <- r.loader.load(gctx, ce)
			default:
				j.result <- nil
			}
			select {
			case ordered <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return gctx.Err()
	})

	g.Go(func() error {
		for j := range ordered {
			select {
			case rec := <-j.result:
				if err := r.consume(j.entry, rec); err != nil {
					return err
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	workers.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("flatten cancelled: %w", ctx.Err())
	}
	return err
}

// consume records one entry in the manifest and feeds included files to the
// aggregator.
func (r *run) consume(ce walk.CandidateEntry, rec *FileRecord) error {
	switch ce.Kind {
	case entry.KindDir:
		if ce.Skip == entry.ReasonTraversal {
			r.manifest.DirErrors = append(r.manifest.DirErrors,
				Skip{Path: ce.RelPath, Kind: ce.Kind, Reason: ce.Skip, Detail: ce.Detail})
		}
		return nil
	case entry.KindSymlink:
		if !needsRecord(ce) {
			return nil
		}
		return r.consumeFile(ce, rec)
	case entry.KindFile:
		return r.consumeFile(ce, rec)
	default:
		return fmt.Errorf("unhandled entry kind %v for %s", ce.Kind, ce.RelPath)
	}
}

func (r *run) consumeFile(ce walk.CandidateEntry, rec *FileRecord) error {
	if rec == nil {
		return fmt.Errorf("no record for %s", ce.RelPath)
	}
	m := r.manifest
	summary := FileSummary{
		Path:     rec.Path,
		Kind:     ce.Kind,
		Size:     rec.Size,
		Lines:    rec.Lines,
		Language: rec.Language,
		Hash:     rec.Hash,
		Tokens:   rec.Tokens,
		Document: -1,
		Skip:     rec.Skip,
		Detail:   rec.Detail,
	}
	if !rec.Included() {
		m.addSkip(rec.Path, ce.Kind, rec.Skip, rec.Detail)
		m.Files = append(m.Files, summary)
		return nil
	}

	if r.cfg.StructureOnly {
		m.FilesScanned++
		m.FilesIncluded++
		m.Files = append(m.Files, summary)
		return nil
	}

	idx, reason, err := r.agg.add(rec)
	if err != nil {
		return err
	}
	if reason != "" {
		r.logger.Debug("Skipping file larger than an output document", zap.String("path", rec.Path))
		summary.Skip = reason
		summary.Detail = fmt.Sprintf("block does not fit in %d bytes", r.cfg.MaxOutputSize)
		m.addSkip(rec.Path, ce.Kind, summary.Skip, summary.Detail)
		m.Files = append(m.Files, summary)
		return nil
	}
	summary.Document = idx
	m.FilesScanned++
	m.FilesIncluded++
	m.Files = append(m.Files, summary)
	return nil
}

// fail drops unwritten chunks and reconciles the manifest with the
// documents that exist: files assigned to a chunk that was never written
// are moved from the included to the skipped count.
func (r *run) fail(err error) (*Manifest, error) {
	r.agg.discard()
	if r.writer != nil {
		r.writer.abort()
		r.manifest.Documents = r.writer.written
	}
	r.manifest.dropUnwritten(err)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.logger.Warn("Flatten stopped before completion", zap.Error(err))
	} else {
		r.logger.Error("Flatten failed", zap.Error(err))
	}
	return r.manifest, err
}

func isDirLike(ce walk.CandidateEntry) bool {
	return ce.Kind == entry.KindDir || (ce.Kind == entry.KindSymlink && ce.Target == entry.KindDir)
}

// needsRecord reports whether ce is accounted for as a scanned file. A
// followed symlink to a directory is not; its children are.
func needsRecord(ce walk.CandidateEntry) bool {
	if ce.Kind == entry.KindDir {
		return false
	}
	return ce.Skipped() || !isDirLike(ce)
}

func needsRead(ce walk.CandidateEntry) bool {
	return !ce.Skipped() && !isDirLike(ce)
}
