package resolver

import "sort"

// decide ranks scored candidates and applies the threshold and lead rules.
// Sorting is total score descending, then title score, then product code,
// so identical inputs always produce identical results.
func decide(candidates []CandidateScore, settings Settings, stage RecallStage, topK int) (MatchStatus, *string, []CandidateScore) {
	if len(candidates) == 0 {
		return StatusUnmatched, nil, nil
	}

	ranked := make([]CandidateScore, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		if ranked[i].TitleScore != ranked[j].TitleScore {
			return ranked[i].TitleScore > ranked[j].TitleScore
		}
		return ranked[i].ProductCode < ranked[j].ProductCode
	})

	top := ranked
	if topK > 0 && len(top) > topK {
		top = top[:topK]
	}
	retained := make([]CandidateScore, len(top))
	copy(retained, top)

	best := ranked[0]
	if best.TotalScore < settings.MinScore {
		return StatusUnmatched, nil, retained
	}

	if len(ranked) > 1 {
		second := ranked[1]
		lead := best.TotalScore - second.TotalScore
		if lead < settings.effectiveMinLead(stage) {
			if !(settings.ColorExactOverridesLead && best.colorExact() && !second.colorExact()) {
				return StatusAmbiguous, nil, retained
			}
		}
	}

	code := best.ProductCode
	return StatusMatched, &code, retained
}
