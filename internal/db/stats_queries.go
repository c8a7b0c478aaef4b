package db

import (
	"context"
	"encoding/json"
	"fmt"

	"thread.fit/stitch/internal/globaltime"
)

// InsertResolutionEvent appends one audit record for a resolver decision.
type ResolutionEventRecord struct {
	SiteName    string
	SourceURL   string
	Brand       string
	Decision    string
	ChosenCode  *string
	RecallStage string
	BestScore   *float64
	SecondScore *float64
	Lead        *float64
	Candidates  json.RawMessage
}

func (p *Pool) InsertResolutionEvent(ctx context.Context, record ResolutionEventRecord) error {
	const q = `
INSERT INTO catalog.resolution_events (
	site_name,
	source_url,
	brand,
	decision,
	chosen_code,
	recall_stage,
	best_score,
	second_score,
	lead,
	candidates,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11)
`
	var candidates any
	if len(record.Candidates) > 0 {
		candidates = string(record.Candidates)
	}
	_, err := p.Exec(
		ctx,
		q,
		record.SiteName,
		record.SourceURL,
		record.Brand,
		record.Decision,
		record.ChosenCode,
		record.RecallStage,
		record.BestScore,
		record.SecondScore,
		record.Lead,
		candidates,
		globaltime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert resolution event url=%s: %w", record.SourceURL, err)
	}
	return nil
}

// Stats is the summary surfaced by the HTTP API.
type Stats struct {
	Products         int64
	Offers           int64
	PoolEntries      int64
	ResolutionEvents int64
	Decisions        map[string]int64
}

func (p *Pool) LoadStats(ctx context.Context) (Stats, error) {
	stats := Stats{Decisions: map[string]int64{}}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM catalog.products", &stats.Products},
		{"SELECT COUNT(*) FROM catalog.offers", &stats.Offers},
		{"SELECT COUNT(*) FROM catalog.candidate_pool", &stats.PoolEntries},
		{"SELECT COUNT(*) FROM catalog.resolution_events", &stats.ResolutionEvents},
	}
	for _, count := range counts {
		if err := p.QueryRow(ctx, count.query).Scan(count.dest); err != nil {
			return Stats{}, fmt.Errorf("load stats count: %w", err)
		}
	}

	const decisionQ = `
SELECT
	re.decision,
	COUNT(*)
FROM catalog.resolution_events re
GROUP BY re.decision
`
	rows, err := p.Query(ctx, decisionQ)
	if err != nil {
		return Stats{}, fmt.Errorf("load decision counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var decision string
		var count int64
		if err := rows.Scan(&decision, &count); err != nil {
			return Stats{}, fmt.Errorf("scan decision count: %w", err)
		}
		stats.Decisions[decision] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate decision counts: %w", err)
	}
	return stats, nil
}
