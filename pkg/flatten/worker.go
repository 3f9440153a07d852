// File: pkg/flatten/worker.go
package flatten

import (
	"context"
	"sync"

	"contxt/pkg/walk"

	"go.uber.org/zap"
)

// job is one scanned entry travelling through the pool. result is buffered
// so a worker never blocks on delivery.
type job struct {
	entry  walk.CandidateEntry
	result chan *FileRecord
}

func newJob(ce walk.CandidateEntry) job {
	return job{entry: ce, result: make(chan *FileRecord, 1)}
}

// startWorkers launches n workers reading jobs until the channel closes.
// The returned WaitGroup completes when all have exited.
func startWorkers(ctx context.Context, n int, jobs <-chan job, l *loader, logger *zap.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	logger.Debug("Initializing worker pool", zap.Int("workers", n))
	for w := 0; w < n; w++ {
		wg.Add(1)
		go worker(ctx, jobs, l, &wg, logger.With(zap.Int("workerID", w)))
	}
	return &wg
}

// worker reads and classifies files from the jobs channel.
func worker(ctx context.Context, jobs <-chan job, l *loader, wg *sync.WaitGroup, logger *zap.Logger) {
	defer wg.Done()
	logger.Debug("Worker started")
	for j := range jobs {
		if ctx.Err() != nil {
			// Drain so the producer is never stuck; results are not awaited anymore.
			continue
		}
		j.result <- l.load(ctx, j.entry)
	}
	logger.Debug("Worker finished processing")
}
