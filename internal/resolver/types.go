package resolver

import "strings"

// MatchStatus is the single-owner outcome of a resolution: exactly one
// code, or none. Carried on every MatchResult, never thrown.
type MatchStatus string

const (
	StatusMatched   MatchStatus = "matched"
	StatusAmbiguous MatchStatus = "ambiguous"
	StatusUnmatched MatchStatus = "unmatched"
)

// RecallStage identifies which retrieval tier produced the candidate set.
// The decision engine tightens its lead requirement on the looser tiers.
type RecallStage string

const (
	StageCache    RecallStage = "cache"
	StageStrict   RecallStage = "strict"
	StageLoosened RecallStage = "loosened"
	StageFallback RecallStage = "fallback"
	StageNone     RecallStage = "none"
)

// ScrapedItem is the raw tuple handed over by the scraping collaborator.
type ScrapedItem struct {
	Title     string
	ColorText string
	SiteName  string
	SourceURL string
	Brand     string
}

func (i ScrapedItem) normalized() ScrapedItem {
	return ScrapedItem{
		Title:     strings.TrimSpace(i.Title),
		ColorText: strings.TrimSpace(i.ColorText),
		SiteName:  strings.TrimSpace(strings.ToLower(i.SiteName)),
		SourceURL: strings.TrimSpace(i.SourceURL),
		Brand:     strings.TrimSpace(strings.ToLower(i.Brand)),
	}
}

// CandidateScore is the scored view of one recalled catalog entry.
type CandidateScore struct {
	ProductCode string  `json:"product_code"`
	L1Score     float64 `json:"l1_score"`
	L2Score     float64 `json:"l2_score"`
	ColorScore  float64 `json:"color_score"`
	TitleScore  float64 `json:"title_score"`
	TotalScore  float64 `json:"total_score"`
}

func (c CandidateScore) colorExact() bool {
	return c.ColorScore >= 1.0
}

// DebugTrace records how a result was reached, for logging and audit.
type DebugTrace struct {
	Stage     RecallStage `json:"stage"`
	CacheHit  bool        `json:"cache_hit"`
	Recalled  int         `json:"recalled"`
	Scored    int         `json:"scored"`
	StoreErr  string      `json:"store_err,omitempty"`
	MinScore  float64     `json:"min_score"`
	MinLead   float64     `json:"min_lead"`
	PoolAdded bool        `json:"pool_added,omitempty"`
}

// MatchResult is the resolver's answer for one scraped item.
// ChosenCode is set exactly when Status is StatusMatched; TopCandidates is
// empty only when recall produced zero rows.
type MatchResult struct {
	Status        MatchStatus      `json:"status"`
	ChosenCode    *string          `json:"chosen_code,omitempty"`
	TopCandidates []CandidateScore `json:"top_candidates"`
	SourceURL     string           `json:"source_url"`
	Trace         DebugTrace       `json:"trace"`
}

// Settings are the tunable scoring weights and decision thresholds.
// Defaults come from configuration; a brand row in catalog.brand_configs
// overrides them without a code change.
type Settings struct {
	WeightL1                float64
	WeightL2                float64
	WeightColor             float64
	MinScore                float64
	MinLead                 float64
	LooseLeadBonus          float64
	ColorExactOverridesLead bool
}

// effectiveMinLead applies the adaptive-threshold rule: recall tiers with
// lower precision demand a larger lead before accepting a match.
func (s Settings) effectiveMinLead(stage RecallStage) float64 {
	if stage == StageLoosened || stage == StageFallback {
		return s.MinLead + s.LooseLeadBonus
	}
	return s.MinLead
}
