// Package resolver implements the cross-site product identity engine:
// URL-cache short-circuit, staged candidate recall, weighted similarity
// scoring and adaptive-threshold match decisioning.
package resolver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"thread.fit/stitch/internal/config"
	"thread.fit/stitch/internal/db"
	"thread.fit/stitch/internal/lexicon"
)

// Store is everything the engine needs from the backing catalog.
// *db.Pool satisfies it.
type Store interface {
	CatalogStore
	AppendPoolEntry(ctx context.Context, entry db.PoolEntry) (bool, error)
	InsertResolutionEvent(ctx context.Context, record db.ResolutionEventRecord) error
	LoadBrandConfig(ctx context.Context, brand string) (db.BrandConfig, bool, error)
}

// Engine resolves scraped items against the catalog. It owns no mutable
// state beyond the brand-settings cache; the URL cache and lexicon are
// warmed before the first Resolve and shared read-only across workers.
type Engine struct {
	store  Store
	cache  *URLCache
	lex    *lexicon.Lexicon
	logger zerolog.Logger

	defaults    Settings
	recallLimit int
	minL1Hits   int
	topK        int

	queryTimeout time.Duration
	queryRetries int
	retryBackoff time.Duration

	settingsMu sync.Mutex
	settings   map[string]Settings
}

// New wires an engine from configuration. The cache and lexicon must
// already be warmed; warmup failures are fatal upstream.
func New(store Store, cache *URLCache, lex *lexicon.Lexicon, cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		cache:  cache,
		lex:    lex,
		logger: logger,
		defaults: Settings{
			WeightL1:                cfg.WeightL1,
			WeightL2:                cfg.WeightL2,
			WeightColor:             cfg.WeightColor,
			MinScore:                cfg.MinScore,
			MinLead:                 cfg.MinLead,
			LooseLeadBonus:          cfg.LooseLeadBonus,
			ColorExactOverridesLead: cfg.ColorExactOverridesLead,
		},
		recallLimit:  cfg.RecallLimit,
		minL1Hits:    cfg.MinL1Hits,
		topK:         cfg.TopK,
		queryTimeout: cfg.StoreQueryTimeout,
		queryRetries: cfg.StoreQueryRetries,
		retryBackoff: cfg.StoreRetryBackoff,
		settings:     make(map[string]Settings),
	}
}

// Resolve assigns a canonical product code to one scraped item. Store
// failures never escape: the item is routed to the candidate pool and the
// run continues.
func (e *Engine) Resolve(ctx context.Context, raw ScrapedItem) MatchResult {
	item := raw.normalized()
	settings := e.settingsFor(ctx, item.Brand)

	if code, hit := e.cache.Lookup(item.SourceURL); hit {
		result := MatchResult{
			Status:     StatusMatched,
			ChosenCode: &code,
			SourceURL:  item.SourceURL,
			Trace: DebugTrace{
				Stage:    StageCache,
				CacheHit: true,
				MinScore: settings.MinScore,
				MinLead:  settings.MinLead,
			},
		}
		e.audit(ctx, item, result)
		return result
	}

	features := buildItemFeatures(e.lex, item)

	recalled, err := e.recall(ctx, item, features)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("site", item.SiteName).
			Str("url", item.SourceURL).
			Msg("candidate recall failed; routing item to pool")
		result := MatchResult{
			Status:    StatusUnmatched,
			SourceURL: item.SourceURL,
			Trace: DebugTrace{
				Stage:    StageNone,
				StoreErr: err.Error(),
				MinScore: settings.MinScore,
				MinLead:  settings.MinLead,
			},
		}
		result.Trace.PoolAdded = e.appendToPool(ctx, item, result.Status)
		return result
	}

	scored := make([]CandidateScore, 0, len(recalled.entries))
	for _, entry := range recalled.entries {
		scored = append(scored, scoreCandidate(e.lex, item.Brand, features, entry, settings))
	}

	status, chosen, top := decide(scored, settings, recalled.stage, e.topK)
	result := MatchResult{
		Status:        status,
		ChosenCode:    chosen,
		TopCandidates: top,
		SourceURL:     item.SourceURL,
		Trace: DebugTrace{
			Stage:    recalled.stage,
			Recalled: len(recalled.entries),
			Scored:   len(scored),
			MinScore: settings.MinScore,
			MinLead:  settings.effectiveMinLead(recalled.stage),
		},
	}

	if status != StatusMatched {
		result.Trace.PoolAdded = e.appendToPool(ctx, item, status)
	}
	e.audit(ctx, item, result)

	e.logger.Debug().
		Str("site", item.SiteName).
		Str("url", item.SourceURL).
		Str("stage", string(recalled.stage)).
		Str("status", string(status)).
		Int("recalled", len(recalled.entries)).
		Msg("resolved scraped item")

	return result
}

// settingsFor returns the decision settings for a brand, loading the
// per-brand override once and falling back to defaults on any error.
func (e *Engine) settingsFor(ctx context.Context, brand string) Settings {
	e.settingsMu.Lock()
	if cached, ok := e.settings[brand]; ok {
		e.settingsMu.Unlock()
		return cached
	}
	e.settingsMu.Unlock()

	settings := e.defaults
	override, found, err := e.store.LoadBrandConfig(ctx, brand)
	if err != nil {
		e.logger.Warn().Err(err).Str("brand", brand).Msg("brand config load failed; using defaults")
		return settings
	}
	if found {
		settings = Settings{
			WeightL1:                override.WeightL1,
			WeightL2:                override.WeightL2,
			WeightColor:             override.WeightColor,
			MinScore:                override.MinScore,
			MinLead:                 override.MinLead,
			LooseLeadBonus:          override.LooseLeadBonus,
			ColorExactOverridesLead: override.ColorExactOverridesLead,
		}
	}

	e.settingsMu.Lock()
	e.settings[brand] = settings
	e.settingsMu.Unlock()
	return settings
}

func (e *Engine) appendToPool(ctx context.Context, item ScrapedItem, status MatchStatus) bool {
	inserted, err := e.store.AppendPoolEntry(ctx, db.PoolEntry{
		SiteName:  item.SiteName,
		SourceURL: item.SourceURL,
		Title:     item.Title,
		ColorText: item.ColorText,
		Brand:     item.Brand,
		Reason:    string(status),
	})
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("site", item.SiteName).
			Str("url", item.SourceURL).
			Msg("candidate pool append failed")
		return false
	}
	return inserted
}

func (e *Engine) audit(ctx context.Context, item ScrapedItem, result MatchResult) {
	record := db.ResolutionEventRecord{
		SiteName:    item.SiteName,
		SourceURL:   item.SourceURL,
		Brand:       item.Brand,
		Decision:    string(result.Status),
		ChosenCode:  result.ChosenCode,
		RecallStage: string(result.Trace.Stage),
	}
	if len(result.TopCandidates) > 0 {
		record.BestScore = &result.TopCandidates[0].TotalScore
		if len(result.TopCandidates) > 1 {
			record.SecondScore = &result.TopCandidates[1].TotalScore
			lead := result.TopCandidates[0].TotalScore - result.TopCandidates[1].TotalScore
			record.Lead = &lead
		}
		if encoded, err := json.Marshal(result.TopCandidates); err == nil {
			record.Candidates = encoded
		}
	}
	if err := e.store.InsertResolutionEvent(ctx, record); err != nil {
		e.logger.Warn().
			Err(err).
			Str("url", item.SourceURL).
			Msg("resolution audit write failed")
	}
}
