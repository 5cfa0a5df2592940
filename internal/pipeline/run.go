package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"batch-translator/internal/checkpoint"
	"batch-translator/internal/model"
)

// Translator is the one external call the pipeline makes per item. The
// implementation owns its own retry budget; by the time an error comes back
// here it is terminal for this run.
type Translator interface {
	Translate(ctx context.Context, content, targetLanguage string) (string, json.RawMessage, error)
}

// Options configures a single run. Items is the full dataset; the planner
// decides what is left to do against the checkpoint.
type Options struct {
	Items          []model.WorkItem
	Translator     Translator
	Store          *checkpoint.Store
	TargetLanguage string
	SampleSize     int // -1 selects all remaining
	Workers        int
	FailFast       bool
	Progress       bool
	RunID          string
	Rand           *rand.Rand
}

// Run drains the plan through a bounded worker pool into the single-writer
// aggregator, persisting the full checkpoint after every merged result.
// Per-item failures do not abort the run unless FailFast is set; they
// surface in the summary, and the caller decides what that means.
func Run(ctx context.Context, opts Options) (model.RunSummary, error) {
	if opts.Translator == nil {
		return model.RunSummary{}, fmt.Errorf("translator is required")
	}
	if opts.Store == nil {
		return model.RunSummary{}, fmt.Errorf("checkpoint store is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	lock, err := checkpoint.AcquireLock(opts.Store.Path(), runID)
	if err != nil {
		return model.RunSummary{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	rec, err := opts.Store.Load()
	if err != nil {
		return model.RunSummary{}, err
	}

	plan := Plan(opts.Items, rec, opts.SampleSize, opts.Rand)
	summary := model.RunSummary{
		RunID:       runID,
		DatasetSize: len(opts.Items),
		AlreadyDone: rec.Len(),
		Planned:     len(plan),
	}
	if len(plan) == 0 {
		return summary, nil
	}

	started := time.Now()
	results := make(chan model.TranslationResult, workers)

	// Single writer. After a persist failure it keeps draining so workers
	// never block on the channel; the stop flag halts further dispatch.
	var storeFailed atomic.Bool
	writeDone := make(chan error, 1)
	go func() {
		var firstErr error
		for res := range results {
			if firstErr != nil {
				continue
			}
			rec.Merge(res.ID, res.Input, res.Text, res.Raw)
			if err := opts.Store.Persist(rec); err != nil {
				firstErr = fmt.Errorf("persist checkpoint: %w", err)
				storeFailed.Store(true)
			}
		}
		writeDone <- firstErr
	}()

	progress := newLiveProgress(opts.Progress, shortID(runID), len(plan), rec.Len())
	progress.Start()

	var completed atomic.Int64
	var failedMu sync.Mutex
	var failedIDs []int64
	recordFailure := func(id int64) {
		failedMu.Lock()
		failedIDs = append(failedIDs, id)
		failedMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, item := range plan {
		item := item // per-iteration copy; the language version here predates Go 1.22 loop scoping
		if storeFailed.Load() || gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			text, raw, err := opts.Translator.Translate(gctx, item.Content, opts.TargetLanguage)
			if err != nil {
				if gctx.Err() != nil {
					// The run is being torn down; this is not an item verdict.
					return gctx.Err()
				}
				progress.ItemFailed()
				recordFailure(item.ID)
				if opts.FailFast {
					return fmt.Errorf("item %d: %w", item.ID, err)
				}
				log.Printf("item %d failed: %v", item.ID, err)
				return nil
			}
			results <- model.TranslationResult{ID: item.ID, Input: item.Content, Text: text, Raw: raw}
			progress.ItemCompleted()
			completed.Add(1)
			return nil
		})
	}
	poolErr := g.Wait()
	close(results)
	persistErr := <-writeDone

	sort.Slice(failedIDs, func(i, j int) bool { return failedIDs[i] < failedIDs[j] })
	summary.Completed = int(completed.Load())
	summary.Failed = len(failedIDs)
	summary.FailedIDs = failedIDs
	summary.ElapsedSecs = time.Since(started).Seconds()

	progress.Stop(fmt.Sprintf("[run %s] done: %d translated, %d failed, %s",
		shortID(runID), summary.Completed, summary.Failed, time.Since(started).Round(time.Second)))

	if persistErr != nil {
		return summary, persistErr
	}
	if poolErr != nil {
		return summary, poolErr
	}
	return summary, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
