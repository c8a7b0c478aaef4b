package resolver

import (
	"context"
	"sync"
)

// BatchSummary aggregates the outcome of a batch run.
type BatchSummary struct {
	Total     int
	Matched   int
	Ambiguous int
	Unmatched int
}

// ResolveBatch fans items out across workers goroutines and returns results
// in input order. The cache and lexicon are read-only during a run, so the
// workers share them without coordination.
func (e *Engine) ResolveBatch(ctx context.Context, items []ScrapedItem, workers int) ([]MatchResult, BatchSummary) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]MatchResult, len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = e.Resolve(ctx, items[idx])
			}
		}()
	}

feed:
	for idx := range items {
		select {
		case <-ctx.Done():
			// Stop feeding; in-flight items finish, unfed ones are marked
			// unmatched below.
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	summary := BatchSummary{Total: len(items)}
	for i := range results {
		if results[i].Status == "" {
			results[i] = MatchResult{
				Status:    StatusUnmatched,
				SourceURL: items[i].SourceURL,
				Trace:     DebugTrace{Stage: StageNone, StoreErr: ctx.Err().Error()},
			}
		}
		switch results[i].Status {
		case StatusMatched:
			summary.Matched++
		case StatusAmbiguous:
			summary.Ambiguous++
		default:
			summary.Unmatched++
		}
	}
	return results, summary
}
