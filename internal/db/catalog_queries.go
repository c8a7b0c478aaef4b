package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"thread.fit/stitch/internal/globaltime"
)

// CatalogEntry is the read-side projection of catalog.products consumed by
// candidate recall and scoring.
type CatalogEntry struct {
	ProductCode     string
	Brand           string
	Title           string
	NormalizedTitle string
	L1Tokens        []string
	L2Tokens        []string
	ColorName       string
	ColorCode       string
	SourceRank      int16
}

const catalogEntryColumns = `
	p.product_code,
	p.brand,
	p.title,
	p.normalized_title,
	p.l1_tokens,
	p.l2_tokens,
	p.color_name,
	p.color_code,
	p.source_rank
`

func scanCatalogEntry(rows *Rows) (CatalogEntry, error) {
	var entry CatalogEntry
	var l1 pq.StringArray
	var l2 pq.StringArray
	if err := rows.Scan(
		&entry.ProductCode,
		&entry.Brand,
		&entry.Title,
		&entry.NormalizedTitle,
		&l1,
		&l2,
		&entry.ColorName,
		&entry.ColorCode,
		&entry.SourceRank,
	); err != nil {
		return CatalogEntry{}, err
	}
	entry.L1Tokens = []string(l1)
	entry.L2Tokens = []string(l2)
	return entry, nil
}

// LookupByCode returns the catalog entry for a brand-scoped product code.
func (p *Pool) LookupByCode(ctx context.Context, brand, code string) (CatalogEntry, bool, error) {
	q := `
SELECT` + catalogEntryColumns + `
FROM catalog.products p
WHERE p.brand = $1
  AND p.product_code = $2
LIMIT 1
`
	rows, err := p.Query(ctx, q, brand, code)
	if err != nil {
		return CatalogEntry{}, false, fmt.Errorf("lookup product by code: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return CatalogEntry{}, false, fmt.Errorf("lookup product by code: %w", err)
		}
		return CatalogEntry{}, false, nil
	}
	entry, err := scanCatalogEntry(rows)
	if err != nil {
		return CatalogEntry{}, false, fmt.Errorf("scan product by code: %w", err)
	}
	return entry, true, nil
}

// CandidatesByBrandColor recalls brand entries whose color name matches any
// of the supplied color names. The caller supplies the canonical color plus
// its declared synonyms.
func (p *Pool) CandidatesByBrandColor(ctx context.Context, brand string, colors []string, limit int) ([]CatalogEntry, error) {
	if len(colors) == 0 {
		return nil, nil
	}
	q := `
SELECT` + catalogEntryColumns + `
FROM catalog.products p
WHERE p.brand = $1
  AND lower(p.color_name) = ANY($2)
ORDER BY p.product_id
LIMIT $3
`
	rows, err := p.Query(ctx, q, brand, pq.Array(colors), limit)
	if err != nil {
		return nil, fmt.Errorf("query candidates by brand+color: %w", err)
	}
	defer rows.Close()
	return collectCatalogEntries(rows)
}

// CandidatesByBrand recalls up to limit brand entries with no color filter.
func (p *Pool) CandidatesByBrand(ctx context.Context, brand string, limit int) ([]CatalogEntry, error) {
	q := `
SELECT` + catalogEntryColumns + `
FROM catalog.products p
WHERE p.brand = $1
ORDER BY p.product_id
LIMIT $2
`
	rows, err := p.Query(ctx, q, brand, limit)
	if err != nil {
		return nil, fmt.Errorf("query candidates by brand: %w", err)
	}
	defer rows.Close()
	return collectCatalogEntries(rows)
}

func collectCatalogEntries(rows *Rows) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	for rows.Next() {
		entry, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entries: %w", err)
	}
	return entries, nil
}

// InsertProductTx inserts a catalog product inside an open transaction.
// Existing (brand, product_code) rows are left untouched.
func InsertProductTx(
	ctx context.Context,
	tx Tx,
	entry CatalogEntry,
	sourceRank int16,
	sourceURL *string,
) (bool, error) {
	const q = `
INSERT INTO catalog.products (
	product_code,
	brand,
	title,
	normalized_title,
	l1_tokens,
	l2_tokens,
	color_name,
	color_code,
	source_rank,
	source_url,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
ON CONFLICT (product_code, brand) DO NOTHING
`
	commandTag, err := tx.Exec(
		ctx,
		q,
		entry.ProductCode,
		entry.Brand,
		entry.Title,
		entry.NormalizedTitle,
		pq.Array(entry.L1Tokens),
		pq.Array(entry.L2Tokens),
		entry.ColorName,
		entry.ColorCode,
		sourceRank,
		sourceURL,
		globaltime.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert product code=%s: %w", entry.ProductCode, err)
	}
	return commandTag.RowsAffected() == 1, nil
}

// InsertOfferTx records a confirmed (url, code) pair inside an open
// transaction. Duplicate URLs keep their first writer.
func InsertOfferTx(ctx context.Context, tx Tx, productCode, brand, siteName, sourceURL string) (bool, error) {
	const q = `
INSERT INTO catalog.offers (
	product_code,
	brand,
	site_name,
	source_url,
	created_at
)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (source_url) DO NOTHING
`
	commandTag, err := tx.Exec(ctx, q, productCode, brand, siteName, sourceURL, globaltime.UTC())
	if err != nil {
		return false, fmt.Errorf("insert offer url=%s: %w", sourceURL, err)
	}
	return commandTag.RowsAffected() == 1, nil
}
