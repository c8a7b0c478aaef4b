package db

import (
	"context"
	"fmt"
)

// URLCodePair is one confirmed mapping from a source URL to a product code.
type URLCodePair struct {
	SourceURL   string
	ProductCode string
}

// ScanProductURLCodes streams confirmed (url, code) pairs recorded on
// products themselves, automatic resolutions before manual backfills.
func (p *Pool) ScanProductURLCodes(ctx context.Context) ([]URLCodePair, error) {
	const q = `
SELECT
	p.source_url,
	p.product_code
FROM catalog.products p
WHERE p.source_url IS NOT NULL
  AND p.source_url <> ''
ORDER BY p.source_rank, p.product_id
`
	return p.collectURLCodePairs(ctx, q, "product url codes")
}

// ScanOfferURLCodes streams confirmed (url, code) pairs from the offers
// table, insertion order.
func (p *Pool) ScanOfferURLCodes(ctx context.Context) ([]URLCodePair, error) {
	const q = `
SELECT
	o.source_url,
	o.product_code
FROM catalog.offers o
ORDER BY o.offer_id
`
	return p.collectURLCodePairs(ctx, q, "offer url codes")
}

func (p *Pool) collectURLCodePairs(ctx context.Context, q, label string) ([]URLCodePair, error) {
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", label, err)
	}
	defer rows.Close()

	var pairs []URLCodePair
	for rows.Next() {
		var pair URLCodePair
		if err := rows.Scan(&pair.SourceURL, &pair.ProductCode); err != nil {
			return nil, fmt.Errorf("scan %s: %w", label, err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", label, err)
	}
	return pairs, nil
}
