package resolver

import (
	"thread.fit/stitch/internal/db"
	"thread.fit/stitch/internal/lexicon"
)

// itemFeatures holds the pre-computed view of one scraped item reused
// across every candidate.
type itemFeatures struct {
	l1Tokens        map[string]struct{}
	l2Tokens        map[string]struct{}
	colorText       string
	normalizedTitle string
}

func buildItemFeatures(lex *lexicon.Lexicon, item ScrapedItem) itemFeatures {
	l1, l2 := lex.Split(item.Brand, item.Title)
	return itemFeatures{
		l1Tokens:        toSet(l1),
		l2Tokens:        toSet(l2),
		colorText:       item.ColorText,
		normalizedTitle: lexicon.Normalize(item.Title),
	}
}

func toSet(tokens []string) map[string]struct{} {
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// scoreCandidate computes the weighted multi-factor score for one recalled
// catalog entry. The title score is not part of the primary sum; it only
// orders near-ties so the dominant signal stays category/descriptor driven.
func scoreCandidate(
	lex *lexicon.Lexicon,
	brand string,
	features itemFeatures,
	entry db.CatalogEntry,
	settings Settings,
) CandidateScore {
	score := CandidateScore{
		ProductCode: entry.ProductCode,
		L1Score:     overlapRatio(features.l1Tokens, entry.L1Tokens),
		L2Score:     overlapRatio(features.l2Tokens, entry.L2Tokens),
		ColorScore:  colorScore(lex, brand, features.colorText, entry.ColorName),
		TitleScore:  titleSimilarity(features.normalizedTitle, entry.NormalizedTitle),
	}
	score.TotalScore = settings.WeightL1*score.L1Score +
		settings.WeightL2*score.L2Score +
		settings.WeightColor*score.ColorScore
	return score
}

// overlapRatio is the fraction of the item's tokens present in the entry's
// token set. Zero when either side is empty.
func overlapRatio(itemTokens map[string]struct{}, entryTokens []string) float64 {
	if len(itemTokens) == 0 || len(entryTokens) == 0 {
		return 0
	}
	entrySet := toSet(entryTokens)
	hits := 0
	for token := range itemTokens {
		if _, ok := entrySet[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(itemTokens))
}

func colorScore(lex *lexicon.Lexicon, brand, itemColor, entryColor string) float64 {
	switch lex.Grade(brand, itemColor, entryColor) {
	case lexicon.ColorExact:
		return 1.0
	case lexicon.ColorNear:
		return 0.5
	default:
		return 0
	}
}

// titleSimilarity is a trigram Jaccard ratio over the two normalized
// titles, in [0,1].
func titleSimilarity(left, right string) float64 {
	leftSet := trigramSet(left)
	rightSet := trigramSet(right)
	if len(leftSet) == 0 || len(rightSet) == 0 {
		return 0
	}

	intersection := 0
	for gram := range leftSet {
		if _, ok := rightSet[gram]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}

	union := len(leftSet) + len(rightSet) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func trigramSet(text string) map[string]struct{} {
	normalized := lexicon.Normalize(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) < 3 {
		return map[string]struct{}{string(runes): {}}
	}

	set := make(map[string]struct{}, len(runes)-2)
	for i := 0; i <= len(runes)-3; i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// l1OverlapCount is the cheap recall-ordering heuristic: how many of the
// item's L1 tokens appear on the entry.
func l1OverlapCount(itemTokens map[string]struct{}, entry db.CatalogEntry) int {
	if len(itemTokens) == 0 {
		return 0
	}
	hits := 0
	for _, token := range entry.L1Tokens {
		if _, ok := itemTokens[token]; ok {
			hits++
		}
	}
	return hits
}
