package tokengraph

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/tokengraph/internal/observability"
	"github.com/jward/tokengraph/internal/store"
)

// indexFilesParallel indexes files using a three-phase pipeline:
//
//	Phase A (serial):   Hash check, delete stale graphs, prepare file records.
//	Phase B (parallel): Parse and collect on a worker pool, each file
//	                    buffered in its own BatchedStore.
//	Phase C (serial):   Commit batches to SQLite in input order.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string, rebuild bool) error {
	var errs []error
	fail := func(item workItem, stage string, err error) {
		observability.IndexErrorsTotal.Inc()
		e.logger.Warn("index file", "path", item.path, "stage", stage, "error", err)
		errs = append(errs, fmt.Errorf("%s %s: %w", stage, item.path, err))
	}

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path, rebuild)
		if err != nil {
			fail(workItem{path: path}, "prepare", err)
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return joinIndexErrors(errs)
	}

	// ---- Phase B: Parallel analysis ----
	// Each worker parses with its own parser (lang.Parse allocates one per
	// call); the BatchedStore per item handles write isolation.
	analyzeErrs := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(e.workers, len(items)))
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analyzeErrs[i] = e.analyzeItem(gctx, &items[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, item := range items {
			e.discardFile(item)
		}
		return err
	}

	// ---- Phase C: Serial commit ----
	for i, item := range items {
		if analyzeErrs[i] != nil {
			e.discardFile(item)
			fail(item, "analyze", analyzeErrs[i])
			continue
		}
		start := time.Now()
		if err := e.store.CommitBatch(item.batch); err != nil {
			e.discardFile(item)
			fail(item, "commit", err)
			continue
		}
		observability.CommitDuration.Observe(time.Since(start).Seconds())
		e.logIndexed(item)
	}

	return joinIndexErrors(errs)
}

// analyzeItem runs the token pass for one prepared file and buffers the
// graph in a fresh BatchedStore.
func (e *Engine) analyzeItem(ctx context.Context, item *workItem) error {
	start := time.Now()
	g, err := analyze(ctx, item.content, item.lang, e.nodeBudget)
	if err != nil {
		return err
	}
	batch := store.NewBatchedStore(e.store)
	if err := persistGraph(batch, item.fileID, g); err != nil {
		return fmt.Errorf("buffer graph: %w", err)
	}
	item.batch = batch
	item.counts = countsOf(g)
	observability.ObserveGraph(item.lang, item.counts, time.Since(start))
	return nil
}

func joinIndexErrors(errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}
