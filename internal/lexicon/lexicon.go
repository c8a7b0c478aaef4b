// Package lexicon holds the per-brand style-token dictionaries and color
// synonym tables used by candidate recall and scoring. Dictionaries are
// loaded once before a resolution run and are read-only afterwards.
package lexicon

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"thread.fit/stitch/internal/db"
)

// ColorGrade classifies how two color strings relate.
type ColorGrade string

const (
	ColorExact ColorGrade = "exact"
	ColorNear  ColorGrade = "near"
	ColorNone  ColorGrade = "none"
)

// Store is the subset of the database pool the lexicon needs at load time.
type Store interface {
	LoadStyleTokens(ctx context.Context, brand string) ([]db.StyleTokenRow, error)
	LoadColorSynonyms(ctx context.Context, brand string) ([]db.ColorSynonymRow, error)
}

type colorRef struct {
	canonical string
	grade     ColorGrade
}

type brandLexicon struct {
	l1     map[string]struct{}
	l2     map[string]struct{}
	colors map[string]colorRef
}

// Lexicon is the loaded dictionary set. Safe for concurrent reads.
type Lexicon struct {
	brands map[string]*brandLexicon
}

// Load builds the lexicon for the given brands. Token import is an offline
// maintenance operation; Load only reads what is already in the catalog.
func Load(ctx context.Context, store Store, brands []string) (*Lexicon, error) {
	lex := &Lexicon{brands: make(map[string]*brandLexicon, len(brands))}
	for _, brand := range brands {
		brand = strings.TrimSpace(strings.ToLower(brand))
		if brand == "" {
			continue
		}
		if _, exists := lex.brands[brand]; exists {
			continue
		}

		tokens, err := store.LoadStyleTokens(ctx, brand)
		if err != nil {
			return nil, fmt.Errorf("load style tokens for brand %q: %w", brand, err)
		}
		synonyms, err := store.LoadColorSynonyms(ctx, brand)
		if err != nil {
			return nil, fmt.Errorf("load color synonyms for brand %q: %w", brand, err)
		}

		lex.brands[brand] = buildBrandLexicon(tokens, synonyms)
	}
	return lex, nil
}

func buildBrandLexicon(tokens []db.StyleTokenRow, synonyms []db.ColorSynonymRow) *brandLexicon {
	bl := &brandLexicon{
		l1:     make(map[string]struct{}),
		l2:     make(map[string]struct{}),
		colors: make(map[string]colorRef),
	}
	for _, row := range tokens {
		token := Normalize(row.Token)
		if token == "" {
			continue
		}
		switch row.Tier {
		case 1:
			bl.l1[token] = struct{}{}
		case 2:
			bl.l2[token] = struct{}{}
		}
	}
	for _, row := range synonyms {
		canonical := Normalize(row.Canonical)
		synonym := Normalize(row.Synonym)
		if canonical == "" || synonym == "" {
			continue
		}
		grade := ColorExact
		if strings.EqualFold(strings.TrimSpace(row.Grade), string(ColorNear)) {
			grade = ColorNear
		}
		// Canonical names always resolve to themselves exactly; a
		// synonym never downgrades its canonical.
		if _, exists := bl.colors[canonical]; !exists {
			bl.colors[canonical] = colorRef{canonical: canonical, grade: ColorExact}
		}
		if _, exists := bl.colors[synonym]; !exists {
			bl.colors[synonym] = colorRef{canonical: canonical, grade: grade}
		}
	}
	return bl
}

func (l *Lexicon) brand(brand string) *brandLexicon {
	if l == nil {
		return nil
	}
	return l.brands[strings.TrimSpace(strings.ToLower(brand))]
}

// Split tokenizes a raw title and intersects it with the brand dictionary.
// Tokens outside both tiers are ignored, never invented.
func (l *Lexicon) Split(brand, title string) (l1 []string, l2 []string) {
	bl := l.brand(brand)
	if bl == nil {
		return nil, nil
	}

	seen := make(map[string]struct{})
	for _, token := range Tokenize(title) {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if _, ok := bl.l1[token]; ok {
			l1 = append(l1, token)
		}
		if _, ok := bl.l2[token]; ok {
			l2 = append(l2, token)
		}
	}
	sort.Strings(l1)
	sort.Strings(l2)
	return l1, l2
}

// CanonicalColor maps a raw color string to its canonical name. Unknown
// colors canonicalize to their normalized form.
func (l *Lexicon) CanonicalColor(brand, color string) string {
	normalized := Normalize(color)
	bl := l.brand(brand)
	if bl == nil {
		return normalized
	}
	if ref, ok := bl.colors[normalized]; ok {
		return ref.canonical
	}
	return normalized
}

// ColorAliases returns every color string that counts as an exact match
// for the given color: the canonical name plus its exact-grade synonyms.
// Used by the strict recall stage's SQL filter.
func (l *Lexicon) ColorAliases(brand, color string) []string {
	normalized := Normalize(color)
	if normalized == "" {
		return nil
	}
	canonical := l.CanonicalColor(brand, normalized)

	aliases := map[string]struct{}{canonical: {}}
	if bl := l.brand(brand); bl != nil {
		for synonym, ref := range bl.colors {
			if ref.canonical == canonical && ref.grade == ColorExact {
				aliases[synonym] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(aliases))
	for alias := range aliases {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Grade classifies the relation between an item's color text and a catalog
// entry's color name.
func (l *Lexicon) Grade(brand, itemColor, entryColor string) ColorGrade {
	itemNorm := Normalize(itemColor)
	entryNorm := Normalize(entryColor)
	if itemNorm == "" || entryNorm == "" {
		return ColorNone
	}
	if itemNorm == entryNorm {
		return ColorExact
	}

	bl := l.brand(brand)
	if bl == nil {
		return ColorNone
	}

	itemRef, itemKnown := bl.colors[itemNorm]
	entryRef, entryKnown := bl.colors[entryNorm]
	if !itemKnown {
		itemRef = colorRef{canonical: itemNorm, grade: ColorExact}
	}
	if !entryKnown {
		entryRef = colorRef{canonical: entryNorm, grade: ColorExact}
	}
	if itemRef.canonical != entryRef.canonical {
		return ColorNone
	}
	if itemRef.grade == ColorNear || entryRef.grade == ColorNear {
		return ColorNear
	}
	return ColorExact
}
