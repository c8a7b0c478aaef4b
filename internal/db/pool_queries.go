package db

import (
	"context"
	"fmt"
	"time"

	"thread.fit/stitch/internal/globaltime"
)

// PoolEntry is the read-side projection of catalog.candidate_pool.
type PoolEntry struct {
	SiteName  string
	SourceURL string
	Title     string
	ColorText string
	Brand     string
	Reason    string
	CreatedAt time.Time
}

// AppendPoolEntry adds an unresolved item to the candidate pool. The
// (site_name, source_url) pair is the natural key; re-appending the same
// item is a no-op so a rerun never duplicates pending work.
func (p *Pool) AppendPoolEntry(ctx context.Context, entry PoolEntry) (bool, error) {
	const q = `
INSERT INTO catalog.candidate_pool (
	site_name,
	source_url,
	title,
	color_text,
	brand,
	reason,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (site_name, source_url) DO NOTHING
`
	commandTag, err := p.Exec(
		ctx,
		q,
		entry.SiteName,
		entry.SourceURL,
		entry.Title,
		entry.ColorText,
		entry.Brand,
		entry.Reason,
		globaltime.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("append candidate pool entry url=%s: %w", entry.SourceURL, err)
	}
	return commandTag.RowsAffected() == 1, nil
}

// ListPoolEntries returns pending pool rows, oldest first. An empty brand
// lists every brand.
func (p *Pool) ListPoolEntries(ctx context.Context, brand string) ([]PoolEntry, error) {
	const q = `
SELECT
	cp.site_name,
	cp.source_url,
	cp.title,
	cp.color_text,
	cp.brand,
	cp.reason,
	cp.created_at
FROM catalog.candidate_pool cp
WHERE ($1 = '' OR cp.brand = $1)
ORDER BY cp.pool_entry_id
`
	rows, err := p.Query(ctx, q, brand)
	if err != nil {
		return nil, fmt.Errorf("list candidate pool: %w", err)
	}
	defer rows.Close()

	var entries []PoolEntry
	for rows.Next() {
		var entry PoolEntry
		if err := rows.Scan(
			&entry.SiteName,
			&entry.SourceURL,
			&entry.Title,
			&entry.ColorText,
			&entry.Brand,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate pool entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate pool: %w", err)
	}
	return entries, nil
}

// FindPoolEntryTx locates one pool row by its natural key inside an open
// transaction.
func FindPoolEntryTx(ctx context.Context, tx Tx, siteName, sourceURL string) (PoolEntry, bool, error) {
	const q = `
SELECT
	cp.site_name,
	cp.source_url,
	cp.title,
	cp.color_text,
	cp.brand,
	cp.reason,
	cp.created_at
FROM catalog.candidate_pool cp
WHERE cp.site_name = $1
  AND cp.source_url = $2
LIMIT 1
FOR UPDATE
`
	var entry PoolEntry
	err := tx.QueryRow(ctx, q, siteName, sourceURL).Scan(
		&entry.SiteName,
		&entry.SourceURL,
		&entry.Title,
		&entry.ColorText,
		&entry.Brand,
		&entry.Reason,
		&entry.CreatedAt,
	)
	if err != nil {
		if err == ErrNoRows {
			return PoolEntry{}, false, nil
		}
		return PoolEntry{}, false, fmt.Errorf("find candidate pool entry: %w", err)
	}
	return entry, true, nil
}

// DeletePoolEntryTx removes one pool row inside an open transaction.
func DeletePoolEntryTx(ctx context.Context, tx Tx, siteName, sourceURL string) (bool, error) {
	const q = `
DELETE FROM catalog.candidate_pool
WHERE site_name = $1
  AND source_url = $2
`
	commandTag, err := tx.Exec(ctx, q, siteName, sourceURL)
	if err != nil {
		return false, fmt.Errorf("delete candidate pool entry url=%s: %w", sourceURL, err)
	}
	return commandTag.RowsAffected() == 1, nil
}
