package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"thread.fit/stitch/internal/db"
)

// CatalogStore is the read-side of the catalog consumed by recall.
type CatalogStore interface {
	CandidatesByBrandColor(ctx context.Context, brand string, colors []string, limit int) ([]db.CatalogEntry, error)
	CandidatesByBrand(ctx context.Context, brand string, limit int) ([]db.CatalogEntry, error)
}

type recallResult struct {
	entries []db.CatalogEntry
	stage   RecallStage
}

// recall runs the staged retrieval: strict (brand + color + L1 overlap),
// loosened (drop color), fallback (brand only, ordered by L1 overlap so
// the most promising rows are scored first under truncation). The first
// stage yielding at least minL1Hits rows short-circuits. An empty result
// is returned as such, never as an error.
func (e *Engine) recall(ctx context.Context, item ScrapedItem, features itemFeatures) (recallResult, error) {
	colors := e.lex.ColorAliases(item.Brand, item.ColorText)

	if len(colors) > 0 {
		rows, err := e.queryCandidates(ctx, func(qctx context.Context) ([]db.CatalogEntry, error) {
			return e.store.CandidatesByBrandColor(qctx, item.Brand, colors, e.recallLimit)
		})
		if err != nil {
			return recallResult{}, fmt.Errorf("strict recall: %w", err)
		}
		strict := filterByL1Overlap(rows, features.l1Tokens)
		if len(strict) >= e.minL1Hits {
			return recallResult{entries: strict, stage: StageStrict}, nil
		}
	}

	rows, err := e.queryCandidates(ctx, func(qctx context.Context) ([]db.CatalogEntry, error) {
		return e.store.CandidatesByBrand(qctx, item.Brand, e.recallLimit)
	})
	if err != nil {
		return recallResult{}, fmt.Errorf("loosened recall: %w", err)
	}

	loosened := filterByL1Overlap(rows, features.l1Tokens)
	if len(loosened) >= e.minL1Hits {
		return recallResult{entries: loosened, stage: StageLoosened}, nil
	}

	// Fallback keeps every brand row but orders by the overlap heuristic
	// so truncation drops the least promising candidates.
	fallback := make([]db.CatalogEntry, len(rows))
	copy(fallback, rows)
	sort.SliceStable(fallback, func(i, j int) bool {
		return l1OverlapCount(features.l1Tokens, fallback[i]) > l1OverlapCount(features.l1Tokens, fallback[j])
	})
	if len(fallback) > e.recallLimit {
		fallback = fallback[:e.recallLimit]
	}
	stage := StageFallback
	if len(fallback) == 0 {
		stage = StageNone
	}
	return recallResult{entries: fallback, stage: stage}, nil
}

func filterByL1Overlap(rows []db.CatalogEntry, itemTokens map[string]struct{}) []db.CatalogEntry {
	if len(itemTokens) == 0 {
		return nil
	}
	var kept []db.CatalogEntry
	for _, row := range rows {
		if l1OverlapCount(itemTokens, row) > 0 {
			kept = append(kept, row)
		}
	}
	return kept
}

// queryCandidates runs one recall query under the configured timeout with
// a single bounded retry. A hung store call can no longer stall a worker
// indefinitely.
func (e *Engine) queryCandidates(
	ctx context.Context,
	query func(context.Context) ([]db.CatalogEntry, error),
) ([]db.CatalogEntry, error) {
	var lastErr error
	for attempt := 0; attempt <= e.queryRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryBackoff):
			}
		}

		qctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
		rows, err := query(qctx)
		cancel()
		if err == nil {
			return rows, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
