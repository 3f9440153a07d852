package flatten

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"contxt/pkg/classify"
	"contxt/pkg/entry"
	"contxt/pkg/metadata"
	"contxt/pkg/tokens"
	"contxt/pkg/walk"

	"go.uber.org/zap"
)

var errTooLarge = errors.New("file grew past the size limit while reading")

// loader turns a candidate entry into a FileRecord.
type loader struct {
	maxFileSize int64
	tokens      tokens.Counter
	logger      *zap.Logger
}

// load inspects a single scanned file. Oversized files are rejected from
// their filesystem-reported size without being opened; binary files keep no
// content.
func (l *loader) load(ctx context.Context, ce walk.CandidateEntry) *FileRecord {
	rec := &FileRecord{Path: ce.RelPath, Size: ce.Size}
	if ce.Skipped() {
		rec.Skip, rec.Detail = ce.Skip, ce.Detail
		rec.Language = classify.GuessLanguage(ce.RelPath)
		return rec
	}

	if l.maxFileSize > 0 && ce.Size > l.maxFileSize {
		l.logger.Debug("Skipping file due to size limit",
			zap.String("path", ce.RelPath), zap.Int64("sizeBytes", ce.Size), zap.Int64("maxFileSize", l.maxFileSize))
		rec.Skip = entry.ReasonExceedsFileSize
		rec.Detail = fmt.Sprintf("%d > %d bytes", ce.Size, l.maxFileSize)
		rec.Language = classify.GuessLanguage(ce.RelPath)
		return rec
	}

	data, err := readCapped(ce.AbsPath, l.maxFileSize)
	if ctx.Err() != nil {
		rec.Skip, rec.Detail = entry.ReasonRead, ctx.Err().Error()
		return rec
	}
	switch {
	case errors.Is(err, errTooLarge):
		rec.Skip = entry.ReasonExceedsFileSize
		rec.Detail = err.Error()
		rec.Language = classify.GuessLanguage(ce.RelPath)
		return rec
	case err != nil:
		l.logger.Warn("Failed to read file", zap.String("path", ce.AbsPath), zap.Error(err))
		rec.Skip, rec.Detail = entry.ReasonRead, err.Error()
		rec.Language = classify.GuessLanguage(ce.RelPath)
		return rec
	}

	md := metadata.Extract(data)
	rec.Size = md.Size
	rec.Hash = md.Hash

	class := classify.Classify(ce.RelPath, data)
	rec.Language = class.Language
	if class.Class == classify.Binary {
		l.logger.Debug("Detected binary file", zap.String("path", ce.RelPath))
		rec.Skip = entry.ReasonBinary
		return rec
	}

	rec.Lines = md.Lines
	rec.Content = data
	if l.tokens != nil {
		rec.Tokens = l.tokens.Count(string(data))
	}
	return rec
}

// readCapped reads at most limit bytes of path (unbounded when limit is 0).
func readCapped(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if limit <= 0 {
		return io.ReadAll(f)
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}
