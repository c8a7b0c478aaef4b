package resolver

import "testing"

func decisionSettings() Settings {
	return Settings{
		WeightL1:                0.45,
		WeightL2:                0.25,
		WeightColor:             0.30,
		MinScore:                0.55,
		MinLead:                 0.08,
		LooseLeadBonus:          0.07,
		ColorExactOverridesLead: true,
	}
}

func TestDecideEmptyCandidates(t *testing.T) {
	t.Parallel()

	status, code, top := decide(nil, decisionSettings(), StageStrict, 5)
	if status != StatusUnmatched || code != nil || top != nil {
		t.Fatalf("decide(nil) = (%s, %v, %v), want unmatched with no code", status, code, top)
	}
}

func TestDecideBelowScoreFloor(t *testing.T) {
	t.Parallel()

	status, code, top := decide([]CandidateScore{
		{ProductCode: "A1", TotalScore: 0.40},
		{ProductCode: "B2", TotalScore: 0.10},
	}, decisionSettings(), StageStrict, 5)

	if status != StatusUnmatched || code != nil {
		t.Fatalf("status = %s code = %v, want unmatched without code", status, code)
	}
	if len(top) != 2 || top[0].ProductCode != "A1" {
		t.Fatalf("top = %+v, want both candidates ranked with A1 first", top)
	}
}

func TestDecideClearLeadMatches(t *testing.T) {
	t.Parallel()

	status, code, _ := decide([]CandidateScore{
		{ProductCode: "A1", TotalScore: 0.80},
		{ProductCode: "B2", TotalScore: 0.60},
	}, decisionSettings(), StageStrict, 5)

	if status != StatusMatched {
		t.Fatalf("status = %s, want matched", status)
	}
	if code == nil || *code != "A1" {
		t.Fatalf("code = %v, want A1", code)
	}
}

func TestDecideNarrowLeadIsAmbiguous(t *testing.T) {
	t.Parallel()

	status, code, _ := decide([]CandidateScore{
		{ProductCode: "A1", TotalScore: 0.80},
		{ProductCode: "B2", TotalScore: 0.75},
	}, decisionSettings(), StageStrict, 5)

	if status != StatusAmbiguous || code != nil {
		t.Fatalf("status = %s code = %v, want ambiguous without code", status, code)
	}
}

func TestDecideColorExactBreaksNarrowLead(t *testing.T) {
	t.Parallel()

	candidates := []CandidateScore{
		{ProductCode: "A1", TotalScore: 0.80, ColorScore: 1.0},
		{ProductCode: "B2", TotalScore: 0.75, ColorScore: 0.5},
	}

	status, code, _ := decide(candidates, decisionSettings(), StageStrict, 5)
	if status != StatusMatched || code == nil || *code != "A1" {
		t.Fatalf("status = %s code = %v, want A1 matched via color tiebreak", status, code)
	}

	// Both exact: the tiebreak does not apply.
	candidates[1].ColorScore = 1.0
	status, code, _ = decide(candidates, decisionSettings(), StageStrict, 5)
	if status != StatusAmbiguous || code != nil {
		t.Fatalf("status = %s code = %v, want ambiguous when both are color-exact", status, code)
	}

	// Tiebreak disabled by settings.
	settings := decisionSettings()
	settings.ColorExactOverridesLead = false
	candidates[1].ColorScore = 0.5
	status, _, _ = decide(candidates, settings, StageStrict, 5)
	if status != StatusAmbiguous {
		t.Fatalf("status = %s, want ambiguous with tiebreak disabled", status)
	}
}

func TestDecideLooseStagesRaiseLeadRequirement(t *testing.T) {
	t.Parallel()

	// Lead of 0.10 clears the strict threshold (0.08) but not the
	// loosened one (0.15).
	candidates := []CandidateScore{
		{ProductCode: "A1", TotalScore: 0.80},
		{ProductCode: "B2", TotalScore: 0.70},
	}

	status, _, _ := decide(candidates, decisionSettings(), StageStrict, 5)
	if status != StatusMatched {
		t.Fatalf("strict stage: status = %s, want matched", status)
	}

	for _, stage := range []RecallStage{StageLoosened, StageFallback} {
		status, _, _ = decide(candidates, decisionSettings(), stage, 5)
		if status != StatusAmbiguous {
			t.Fatalf("%s stage: status = %s, want ambiguous", stage, status)
		}
	}
}

func TestDecideSingleCandidateAboveFloor(t *testing.T) {
	t.Parallel()

	status, code, _ := decide([]CandidateScore{
		{ProductCode: "A1", TotalScore: 0.60},
	}, decisionSettings(), StageFallback, 5)

	if status != StatusMatched || code == nil || *code != "A1" {
		t.Fatalf("status = %s code = %v, want A1 matched", status, code)
	}
}

func TestDecideRankingIsDeterministic(t *testing.T) {
	t.Parallel()

	// Equal totals: title score orders, then product code.
	candidates := []CandidateScore{
		{ProductCode: "C3", TotalScore: 0.70, TitleScore: 0.20},
		{ProductCode: "B2", TotalScore: 0.70, TitleScore: 0.50},
		{ProductCode: "A1", TotalScore: 0.70, TitleScore: 0.20},
	}

	_, _, top := decide(candidates, decisionSettings(), StageStrict, 5)
	want := []string{"B2", "A1", "C3"}
	for i, code := range want {
		if top[i].ProductCode != code {
			t.Fatalf("rank %d = %s, want %s (full: %+v)", i, top[i].ProductCode, code, top)
		}
	}
}

func TestDecideTruncatesToTopK(t *testing.T) {
	t.Parallel()

	candidates := []CandidateScore{
		{ProductCode: "A1", TotalScore: 0.90},
		{ProductCode: "B2", TotalScore: 0.50},
		{ProductCode: "C3", TotalScore: 0.40},
		{ProductCode: "D4", TotalScore: 0.30},
	}

	_, _, top := decide(candidates, decisionSettings(), StageStrict, 2)
	if len(top) != 2 {
		t.Fatalf("top length = %d, want 2", len(top))
	}
	if top[0].ProductCode != "A1" || top[1].ProductCode != "B2" {
		t.Fatalf("top = %+v, want A1 then B2", top)
	}
}
