package resolver

import (
	"math"
	"testing"

	"thread.fit/stitch/internal/db"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestOverlapRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		item  []string
		entry []string
		want  float64
	}{
		{"full overlap", []string{"wax", "jacket"}, []string{"jacket", "wax"}, 1.0},
		{"half overlap", []string{"wax", "jacket"}, []string{"jacket", "boot"}, 0.5},
		{"no overlap", []string{"boot"}, []string{"jacket"}, 0},
		{"empty item", nil, []string{"jacket"}, 0},
		{"empty entry", []string{"jacket"}, nil, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := overlapRatio(toSet(tt.item), tt.entry)
			if !almostEqual(got, tt.want) {
				t.Fatalf("overlapRatio = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTitleSimilarity(t *testing.T) {
	t.Parallel()

	if got := titleSimilarity("classic wax jacket", "classic wax jacket"); !almostEqual(got, 1.0) {
		t.Fatalf("identical titles = %f, want 1.0", got)
	}
	if got := titleSimilarity("classic wax jacket", "chelsea boot"); got >= 0.3 {
		t.Fatalf("unrelated titles = %f, want low", got)
	}
	if got := titleSimilarity("", "classic wax jacket"); got != 0 {
		t.Fatalf("empty title = %f, want 0", got)
	}

	near := titleSimilarity("classic wax jacket", "classic wax jacket ladies")
	far := titleSimilarity("classic wax jacket", "quilted gilet")
	if near <= far {
		t.Fatalf("similarity not ordered: near %f <= far %f", near, far)
	}
}

func TestScoreCandidateWeightedSum(t *testing.T) {
	t.Parallel()

	lex := newTestLexicon(t)
	settings := decisionSettings()

	item := ScrapedItem{
		Title:     "Barbour Classic Wax Jacket",
		ColorText: "dark blue",
		Brand:     "barbour",
	}
	features := buildItemFeatures(lex, item)

	entry := db.CatalogEntry{
		ProductCode:     "LWX1234",
		Brand:           "barbour",
		NormalizedTitle: "classic wax jacket",
		L1Tokens:        []string{"jacket", "wax"},
		ColorName:       "navy",
	}

	score := scoreCandidate(lex, item.Brand, features, entry, settings)
	if !almostEqual(score.L1Score, 1.0) {
		t.Fatalf("l1 score = %f, want 1.0", score.L1Score)
	}
	if !almostEqual(score.ColorScore, 1.0) {
		t.Fatalf("color score = %f, want 1.0 for exact synonym", score.ColorScore)
	}

	want := settings.WeightL1*score.L1Score +
		settings.WeightL2*score.L2Score +
		settings.WeightColor*score.ColorScore
	if !almostEqual(score.TotalScore, want) {
		t.Fatalf("total = %f, want weighted sum %f", score.TotalScore, want)
	}
	if score.TitleScore <= 0 {
		t.Fatalf("title score = %f, want > 0", score.TitleScore)
	}
}

func TestScoreCandidateNearColor(t *testing.T) {
	t.Parallel()

	lex := newTestLexicon(t)
	features := buildItemFeatures(lex, ScrapedItem{
		Title:     "Wax Jacket",
		ColorText: "midnight",
		Brand:     "barbour",
	})

	entry := db.CatalogEntry{
		ProductCode: "LWX1234",
		Brand:       "barbour",
		L1Tokens:    []string{"jacket", "wax"},
		ColorName:   "navy",
	}

	score := scoreCandidate(lex, "barbour", features, entry, decisionSettings())
	if !almostEqual(score.ColorScore, 0.5) {
		t.Fatalf("color score = %f, want 0.5 for near synonym", score.ColorScore)
	}
	if score.colorExact() {
		t.Fatalf("near color graded as exact")
	}
}

func TestBuildItemFeaturesIgnoresUnknownTokens(t *testing.T) {
	t.Parallel()

	lex := newTestLexicon(t)
	features := buildItemFeatures(lex, ScrapedItem{
		Title: "Limited Edition Quilted Wax Jacket XL",
		Brand: "barbour",
	})

	for _, token := range []string{"limited", "edition", "xl"} {
		if _, ok := features.l1Tokens[token]; ok {
			t.Fatalf("unknown token %q entered tier 1", token)
		}
		if _, ok := features.l2Tokens[token]; ok {
			t.Fatalf("unknown token %q entered tier 2", token)
		}
	}
	if _, ok := features.l1Tokens["wax"]; !ok {
		t.Fatalf("tier-1 token wax missing: %+v", features.l1Tokens)
	}
	if _, ok := features.l2Tokens["quilted"]; !ok {
		t.Fatalf("tier-2 token quilted missing: %+v", features.l2Tokens)
	}
}
