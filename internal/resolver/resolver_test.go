package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thread.fit/stitch/internal/config"
	"thread.fit/stitch/internal/db"
	"thread.fit/stitch/internal/lexicon"
)

type lexiconStoreStub struct{}

func (lexiconStoreStub) LoadStyleTokens(_ context.Context, brand string) ([]db.StyleTokenRow, error) {
	if brand != "barbour" {
		return nil, nil
	}
	return []db.StyleTokenRow{
		{Token: "jacket", Tier: 1},
		{Token: "boot", Tier: 1},
		{Token: "wax", Tier: 1},
		{Token: "gilet", Tier: 1},
		{Token: "quilted", Tier: 2},
		{Token: "chelsea", Tier: 2},
		{Token: "hooded", Tier: 2},
	}, nil
}

func (lexiconStoreStub) LoadColorSynonyms(_ context.Context, brand string) ([]db.ColorSynonymRow, error) {
	if brand != "barbour" {
		return nil, nil
	}
	return []db.ColorSynonymRow{
		{Canonical: "navy", Synonym: "dark blue", Grade: "exact"},
		{Canonical: "navy", Synonym: "midnight", Grade: "near"},
		{Canonical: "olive", Synonym: "sage", Grade: "exact"},
	}, nil
}

func newTestLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Load(context.Background(), lexiconStoreStub{}, []string{"barbour"})
	if err != nil {
		t.Fatalf("load test lexicon: %v", err)
	}
	return lex
}

// stubStore is an in-memory Store. Per-method error hooks simulate a
// failing database.
type stubStore struct {
	catalog []db.CatalogEntry

	recallErr    error
	poolErr      error
	brandConfig  *db.BrandConfig
	poolEntries  []db.PoolEntry
	events       []db.ResolutionEventRecord
	strictCalls  int
	brandCalls   int
	productPairs []db.URLCodePair
	offerPairs   []db.URLCodePair
}

func (s *stubStore) CandidatesByBrandColor(_ context.Context, brand string, colors []string, limit int) ([]db.CatalogEntry, error) {
	s.strictCalls++
	if s.recallErr != nil {
		return nil, s.recallErr
	}
	allowed := make(map[string]struct{}, len(colors))
	for _, color := range colors {
		allowed[color] = struct{}{}
	}
	var out []db.CatalogEntry
	for _, entry := range s.catalog {
		if entry.Brand != brand {
			continue
		}
		if _, ok := allowed[entry.ColorName]; !ok {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) CandidatesByBrand(_ context.Context, brand string, limit int) ([]db.CatalogEntry, error) {
	s.brandCalls++
	if s.recallErr != nil {
		return nil, s.recallErr
	}
	var out []db.CatalogEntry
	for _, entry := range s.catalog {
		if entry.Brand != brand {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) AppendPoolEntry(_ context.Context, entry db.PoolEntry) (bool, error) {
	if s.poolErr != nil {
		return false, s.poolErr
	}
	for _, existing := range s.poolEntries {
		if existing.SiteName == entry.SiteName && existing.SourceURL == entry.SourceURL {
			return false, nil
		}
	}
	s.poolEntries = append(s.poolEntries, entry)
	return true, nil
}

func (s *stubStore) InsertResolutionEvent(_ context.Context, record db.ResolutionEventRecord) error {
	s.events = append(s.events, record)
	return nil
}

func (s *stubStore) LoadBrandConfig(_ context.Context, _ string) (db.BrandConfig, bool, error) {
	if s.brandConfig != nil {
		return *s.brandConfig, true, nil
	}
	return db.BrandConfig{}, false, nil
}

func (s *stubStore) ScanProductURLCodes(_ context.Context) ([]db.URLCodePair, error) {
	return s.productPairs, nil
}

func (s *stubStore) ScanOfferURLCodes(_ context.Context) ([]db.URLCodePair, error) {
	return s.offerPairs, nil
}

func testConfig() *config.Config {
	return &config.Config{
		RecallLimit:             100,
		MinL1Hits:               2,
		TopK:                    5,
		WeightL1:                0.45,
		WeightL2:                0.25,
		WeightColor:             0.30,
		MinScore:                0.55,
		MinLead:                 0.08,
		LooseLeadBonus:          0.07,
		ColorExactOverridesLead: true,
		StoreQueryTimeout:       time.Second,
		StoreQueryRetries:       1,
		StoreRetryBackoff:       time.Millisecond,
	}
}

func newTestEngine(t *testing.T, store *stubStore, cfg *config.Config) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	cache, err := WarmURLCache(context.Background(), store)
	if err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	return New(store, cache, newTestLexicon(t), cfg, zerolog.Nop())
}

func waxJacketCatalog() []db.CatalogEntry {
	return []db.CatalogEntry{
		{
			ProductCode:     "LWX1234",
			Brand:           "barbour",
			Title:           "Classic Wax Jacket",
			NormalizedTitle: "classic wax jacket",
			L1Tokens:        []string{"jacket", "wax"},
			L2Tokens:        nil,
			ColorName:       "navy",
		},
		{
			ProductCode:     "LQU0992",
			Brand:           "barbour",
			Title:           "Quilted Jacket",
			NormalizedTitle: "quilted jacket",
			L1Tokens:        []string{"jacket"},
			L2Tokens:        []string{"quilted"},
			ColorName:       "olive",
		},
		{
			ProductCode:     "LFO0333",
			Brand:           "barbour",
			Title:           "Chelsea Boot",
			NormalizedTitle: "chelsea boot",
			L1Tokens:        []string{"boot"},
			L2Tokens:        []string{"chelsea"},
			ColorName:       "black",
		},
	}
}

func TestResolveCacheHitShortCircuits(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		recallErr: errors.New("store must not be queried on a cache hit"),
		productPairs: []db.URLCodePair{
			{SourceURL: "https://shop.example.com/p/wax-jacket?utm_source=mail", ProductCode: "LWX1234"},
		},
	}
	engine := newTestEngine(t, store, nil)

	result := engine.Resolve(context.Background(), ScrapedItem{
		Title:     "Some Retitled Jacket",
		ColorText: "navy",
		SiteName:  "shop",
		SourceURL: "https://SHOP.example.com/p/wax-jacket",
		Brand:     "Barbour",
	})

	if result.Status != StatusMatched {
		t.Fatalf("status = %s, want %s", result.Status, StatusMatched)
	}
	if result.ChosenCode == nil || *result.ChosenCode != "LWX1234" {
		t.Fatalf("chosen code = %v, want LWX1234", result.ChosenCode)
	}
	if !result.Trace.CacheHit || result.Trace.Stage != StageCache {
		t.Fatalf("trace = %+v, want cache hit at cache stage", result.Trace)
	}
	if store.strictCalls+store.brandCalls != 0 {
		t.Fatalf("recall queries ran on a cache hit")
	}
	if len(store.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(store.events))
	}
}

func TestResolveMatchesDistinctiveItem(t *testing.T) {
	t.Parallel()

	store := &stubStore{catalog: waxJacketCatalog()}
	engine := newTestEngine(t, store, nil)

	result := engine.Resolve(context.Background(), ScrapedItem{
		Title:     "Barbour Classic Wax Jacket",
		ColorText: "dark blue",
		SiteName:  "outdoorsy",
		SourceURL: "https://outdoorsy.example.com/barbour-wax-jacket",
		Brand:     "barbour",
	})

	if result.Status != StatusMatched {
		t.Fatalf("status = %s (trace %+v), want %s", result.Status, result.Trace, StatusMatched)
	}
	if result.ChosenCode == nil || *result.ChosenCode != "LWX1234" {
		t.Fatalf("chosen code = %v, want LWX1234", result.ChosenCode)
	}
	if len(result.TopCandidates) == 0 || result.TopCandidates[0].ProductCode != "LWX1234" {
		t.Fatalf("top candidate = %+v, want LWX1234 first", result.TopCandidates)
	}
	if len(store.poolEntries) != 0 {
		t.Fatalf("matched item landed in the pool: %+v", store.poolEntries)
	}
	if len(store.events) != 1 || store.events[0].Decision != string(StatusMatched) {
		t.Fatalf("audit events = %+v, want one matched event", store.events)
	}
}

func TestResolveAmbiguousLandsInPool(t *testing.T) {
	t.Parallel()

	// Two near-identical wax jackets in the same color: high scores, no
	// lead, no color tiebreak.
	store := &stubStore{catalog: []db.CatalogEntry{
		{
			ProductCode:     "LWX1234",
			Brand:           "barbour",
			Title:           "Classic Wax Jacket",
			NormalizedTitle: "classic wax jacket",
			L1Tokens:        []string{"jacket", "wax"},
			ColorName:       "navy",
		},
		{
			ProductCode:     "LWX5678",
			Brand:           "barbour",
			Title:           "Heritage Wax Jacket",
			NormalizedTitle: "heritage wax jacket",
			L1Tokens:        []string{"jacket", "wax"},
			ColorName:       "navy",
		},
	}}
	engine := newTestEngine(t, store, nil)

	item := ScrapedItem{
		Title:     "Wax Jacket",
		ColorText: "navy",
		SiteName:  "outdoorsy",
		SourceURL: "https://outdoorsy.example.com/wax-jacket",
		Brand:     "barbour",
	}
	result := engine.Resolve(context.Background(), item)

	if result.Status != StatusAmbiguous {
		t.Fatalf("status = %s (trace %+v), want %s", result.Status, result.Trace, StatusAmbiguous)
	}
	if result.ChosenCode != nil {
		t.Fatalf("ambiguous result carries a code: %s", *result.ChosenCode)
	}
	if len(store.poolEntries) != 1 {
		t.Fatalf("pool entries = %d, want 1", len(store.poolEntries))
	}
	if store.poolEntries[0].Reason != string(StatusAmbiguous) {
		t.Fatalf("pool reason = %s, want %s", store.poolEntries[0].Reason, StatusAmbiguous)
	}

	// Re-resolving the same item does not duplicate the pool entry.
	engine.Resolve(context.Background(), item)
	if len(store.poolEntries) != 1 {
		t.Fatalf("pool entries after rerun = %d, want 1", len(store.poolEntries))
	}
}

func TestResolveEmptyRecallIsUnmatched(t *testing.T) {
	t.Parallel()

	store := &stubStore{catalog: waxJacketCatalog()}
	engine := newTestEngine(t, store, nil)

	result := engine.Resolve(context.Background(), ScrapedItem{
		Title:     "Silk Scarf",
		ColorText: "red",
		SiteName:  "outdoorsy",
		SourceURL: "https://outdoorsy.example.com/silk-scarf",
		Brand:     "hermes",
	})

	if result.Status != StatusUnmatched {
		t.Fatalf("status = %s, want %s", result.Status, StatusUnmatched)
	}
	if result.Trace.Stage != StageNone {
		t.Fatalf("stage = %s, want %s", result.Trace.Stage, StageNone)
	}
	if len(store.poolEntries) != 1 {
		t.Fatalf("pool entries = %d, want 1", len(store.poolEntries))
	}
}

func TestResolveUnknownColorNoOverlapIsUnmatched(t *testing.T) {
	t.Parallel()

	// Known brand, but a color the catalog never uses and a title sharing
	// no tier-1 tokens: recall falls through to the brand-only tier and
	// every candidate scores below the floor.
	store := &stubStore{catalog: waxJacketCatalog()}
	engine := newTestEngine(t, store, nil)

	result := engine.Resolve(context.Background(), ScrapedItem{
		Title:     "Silk Scarf",
		ColorText: "burgundy",
		SiteName:  "outdoorsy",
		SourceURL: "https://outdoorsy.example.com/silk-scarf",
		Brand:     "barbour",
	})

	if result.Status != StatusUnmatched {
		t.Fatalf("status = %s (trace %+v), want %s", result.Status, result.Trace, StatusUnmatched)
	}
	if result.ChosenCode != nil {
		t.Fatalf("unmatched result carries a code: %s", *result.ChosenCode)
	}
	if result.Trace.Stage != StageFallback {
		t.Fatalf("stage = %s, want %s", result.Trace.Stage, StageFallback)
	}
	if len(result.TopCandidates) == 0 {
		t.Fatalf("fallback recall produced candidates but none were retained")
	}
	if len(store.poolEntries) != 1 {
		t.Fatalf("pool entries = %d, want 1", len(store.poolEntries))
	}
}

func TestResolveStoreFailureRoutesToPool(t *testing.T) {
	t.Parallel()

	store := &stubStore{recallErr: errors.New("connection refused")}
	engine := newTestEngine(t, store, nil)

	result := engine.Resolve(context.Background(), ScrapedItem{
		Title:     "Classic Wax Jacket",
		ColorText: "navy",
		SiteName:  "outdoorsy",
		SourceURL: "https://outdoorsy.example.com/wax-jacket",
		Brand:     "barbour",
	})

	if result.Status != StatusUnmatched {
		t.Fatalf("status = %s, want %s", result.Status, StatusUnmatched)
	}
	if result.Trace.StoreErr == "" {
		t.Fatalf("store error missing from trace: %+v", result.Trace)
	}
	if len(store.poolEntries) != 1 {
		t.Fatalf("pool entries = %d, want 1", len(store.poolEntries))
	}
	// One initial attempt plus the configured retry, per failing stage.
	if store.strictCalls != 2 {
		t.Fatalf("strict recall attempts = %d, want 2", store.strictCalls)
	}
}

func TestResolveBrandConfigOverridesDefaults(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		catalog: waxJacketCatalog(),
		brandConfig: &db.BrandConfig{
			Brand:       "barbour",
			WeightL1:    0.45,
			WeightL2:    0.25,
			WeightColor: 0.30,
			MinScore:    0.99,
			MinLead:     0.08,
		},
	}
	engine := newTestEngine(t, store, nil)

	result := engine.Resolve(context.Background(), ScrapedItem{
		Title:     "Barbour Classic Wax Jacket",
		ColorText: "navy",
		SiteName:  "outdoorsy",
		SourceURL: "https://outdoorsy.example.com/barbour-wax-jacket",
		Brand:     "barbour",
	})

	if result.Status != StatusUnmatched {
		t.Fatalf("status = %s, want %s under a 0.99 score floor", result.Status, StatusUnmatched)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()

	item := ScrapedItem{
		Title:     "Barbour Classic Wax Jacket",
		ColorText: "navy",
		SiteName:  "outdoorsy",
		SourceURL: "https://outdoorsy.example.com/barbour-wax-jacket",
		Brand:     "barbour",
	}

	var first MatchResult
	for run := 0; run < 5; run++ {
		store := &stubStore{catalog: waxJacketCatalog()}
		engine := newTestEngine(t, store, nil)
		result := engine.Resolve(context.Background(), item)
		if run == 0 {
			first = result
			continue
		}
		if result.Status != first.Status {
			t.Fatalf("run %d: status %s != %s", run, result.Status, first.Status)
		}
		if len(result.TopCandidates) != len(first.TopCandidates) {
			t.Fatalf("run %d: candidate count changed", run)
		}
		for i := range result.TopCandidates {
			if result.TopCandidates[i] != first.TopCandidates[i] {
				t.Fatalf("run %d: candidate %d differs: %+v vs %+v",
					run, i, result.TopCandidates[i], first.TopCandidates[i])
			}
		}
	}
}

func TestResolveBatchSummary(t *testing.T) {
	t.Parallel()

	store := &stubStore{catalog: waxJacketCatalog()}
	engine := newTestEngine(t, store, nil)

	items := []ScrapedItem{
		{
			Title:     "Barbour Classic Wax Jacket",
			ColorText: "navy",
			SiteName:  "outdoorsy",
			SourceURL: "https://outdoorsy.example.com/barbour-wax-jacket",
			Brand:     "barbour",
		},
		{
			Title:     "Silk Scarf",
			ColorText: "red",
			SiteName:  "outdoorsy",
			SourceURL: "https://outdoorsy.example.com/silk-scarf",
			Brand:     "hermes",
		},
	}

	results, summary := engine.ResolveBatch(context.Background(), items, 3)
	if len(results) != len(items) {
		t.Fatalf("results = %d, want %d", len(results), len(items))
	}
	if summary.Total != 2 || summary.Matched != 1 || summary.Unmatched != 1 {
		t.Fatalf("summary = %+v, want 1 matched and 1 unmatched of 2", summary)
	}
	if results[0].SourceURL != items[0].SourceURL || results[1].SourceURL != items[1].SourceURL {
		t.Fatalf("results out of input order")
	}
}
