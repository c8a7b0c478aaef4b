package db

import (
	"context"
	"fmt"
)

// StyleTokenRow is one dictionary word with its tier.
type StyleTokenRow struct {
	Token string
	Tier  int16
}

// ColorSynonymRow is one (canonical, synonym) color pair with its grade.
type ColorSynonymRow struct {
	Canonical string
	Synonym   string
	Grade     string
}

// LoadStyleTokens returns the token dictionary for a brand.
func (p *Pool) LoadStyleTokens(ctx context.Context, brand string) ([]StyleTokenRow, error) {
	const q = `
SELECT
	st.token,
	st.tier
FROM catalog.style_tokens st
WHERE st.brand = $1
ORDER BY st.style_token_id
`
	rows, err := p.Query(ctx, q, brand)
	if err != nil {
		return nil, fmt.Errorf("query style tokens brand=%s: %w", brand, err)
	}
	defer rows.Close()

	var tokens []StyleTokenRow
	for rows.Next() {
		var row StyleTokenRow
		if err := rows.Scan(&row.Token, &row.Tier); err != nil {
			return nil, fmt.Errorf("scan style token: %w", err)
		}
		tokens = append(tokens, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate style tokens: %w", err)
	}
	return tokens, nil
}

// LoadColorSynonyms returns the color synonym table for a brand.
func (p *Pool) LoadColorSynonyms(ctx context.Context, brand string) ([]ColorSynonymRow, error) {
	const q = `
SELECT
	cs.canonical,
	cs.synonym,
	cs.grade
FROM catalog.color_synonyms cs
WHERE cs.brand = $1
ORDER BY cs.color_synonym_id
`
	rows, err := p.Query(ctx, q, brand)
	if err != nil {
		return nil, fmt.Errorf("query color synonyms brand=%s: %w", brand, err)
	}
	defer rows.Close()

	var synonyms []ColorSynonymRow
	for rows.Next() {
		var row ColorSynonymRow
		if err := rows.Scan(&row.Canonical, &row.Synonym, &row.Grade); err != nil {
			return nil, fmt.Errorf("scan color synonym: %w", err)
		}
		synonyms = append(synonyms, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate color synonyms: %w", err)
	}
	return synonyms, nil
}

// ListLexiconBrands returns every brand that has at least one style token
// or color synonym. Used to warm the full lexicon at startup.
func (p *Pool) ListLexiconBrands(ctx context.Context) ([]string, error) {
	const q = `
SELECT st.brand FROM catalog.style_tokens st
UNION
SELECT cs.brand FROM catalog.color_synonyms cs
ORDER BY 1
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query lexicon brands: %w", err)
	}
	defer rows.Close()

	var brands []string
	for rows.Next() {
		var brand string
		if err := rows.Scan(&brand); err != nil {
			return nil, fmt.Errorf("scan lexicon brand: %w", err)
		}
		brands = append(brands, brand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexicon brands: %w", err)
	}
	return brands, nil
}

// LoadBrandConfig returns the per-brand resolver overrides, if any.
func (p *Pool) LoadBrandConfig(ctx context.Context, brand string) (BrandConfig, bool, error) {
	const q = `
SELECT
	bc.brand,
	bc.weight_l1,
	bc.weight_l2,
	bc.weight_color,
	bc.min_score,
	bc.min_lead,
	bc.loose_lead_bonus,
	bc.color_exact_overrides_lead
FROM catalog.brand_configs bc
WHERE bc.brand = $1
LIMIT 1
`
	var cfg BrandConfig
	err := p.QueryRow(ctx, q, brand).Scan(
		&cfg.Brand,
		&cfg.WeightL1,
		&cfg.WeightL2,
		&cfg.WeightColor,
		&cfg.MinScore,
		&cfg.MinLead,
		&cfg.LooseLeadBonus,
		&cfg.ColorExactOverridesLead,
	)
	if err != nil {
		if err == ErrNoRows {
			return BrandConfig{}, false, nil
		}
		return BrandConfig{}, false, fmt.Errorf("load brand config brand=%s: %w", brand, err)
	}
	return cfg, true, nil
}
