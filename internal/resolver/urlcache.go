package resolver

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"thread.fit/stitch/internal/db"
)

var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
}

// WarmStore is the subset of the database pool scanned during cache warmup.
type WarmStore interface {
	ScanProductURLCodes(ctx context.Context) ([]db.URLCodePair, error)
	ScanOfferURLCodes(ctx context.Context) ([]db.URLCodePair, error)
}

// URLCache maps normalized source URLs to confirmed product codes. It is
// built once during a single-threaded warmup phase and read without
// coordination by resolver workers afterwards; Rewarm builds a fresh map
// and swaps it under the write lock rather than mutating in place.
type URLCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// WarmURLCache scans the confirmed-product and confirmed-offer tables in
// priority order. The first writer for a URL wins; later pairs for the
// same URL never overwrite earlier ones. A warmup failure is fatal to the
// caller: resolution must not start with a partially built cache.
func WarmURLCache(ctx context.Context, store WarmStore) (*URLCache, error) {
	entries, err := buildCacheEntries(ctx, store)
	if err != nil {
		return nil, err
	}
	return &URLCache{entries: entries}, nil
}

func buildCacheEntries(ctx context.Context, store WarmStore) (map[string]string, error) {
	productPairs, err := store.ScanProductURLCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache warmup: scan products: %w", err)
	}
	offerPairs, err := store.ScanOfferURLCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache warmup: scan offers: %w", err)
	}

	entries := make(map[string]string, len(productPairs)+len(offerPairs))
	for _, pairs := range [][]db.URLCodePair{productPairs, offerPairs} {
		for _, pair := range pairs {
			key := NormalizeURL(pair.SourceURL)
			if key == "" || pair.ProductCode == "" {
				continue
			}
			if _, taken := entries[key]; taken {
				continue
			}
			entries[key] = pair.ProductCode
		}
	}
	return entries, nil
}

// Lookup returns the confirmed code for a URL, if any.
func (c *URLCache) Lookup(rawURL string) (string, bool) {
	if c == nil {
		return "", false
	}
	key := NormalizeURL(rawURL)
	if key == "" {
		return "", false
	}
	c.mu.RLock()
	code, ok := c.entries[key]
	c.mu.RUnlock()
	return code, ok
}

// Len reports the number of cached URLs.
func (c *URLCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Rewarm rebuilds the cache from the store and swaps the map in one step.
// Intended for controlled moments such as after a code import, never
// during steady-state resolution.
func (c *URLCache) Rewarm(ctx context.Context, store WarmStore) error {
	entries, err := buildCacheEntries(ctx, store)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// NormalizeURL canonicalizes a source URL for use as a cache key: trimmed,
// scheme and host case-folded, default ports, fragments and tracking
// parameters stripped, query keys sorted. Unparseable input falls back to
// the trimmed raw string so lookups stay deterministic.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			parsed.Host = parsed.Host + ":" + port
		}
	}

	parsed.Fragment = ""
	path := strings.TrimSpace(parsed.EscapedPath())
	if path == "" {
		path = "/"
	}
	path = strings.ReplaceAll(path, "//", "/")
	if strings.HasSuffix(path, "/") && path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	parsed.Path = path
	parsed.RawPath = ""

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	if len(q) > 0 {
		keys := make([]string, 0, len(q))
		for key := range q {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		reordered := url.Values{}
		for _, key := range keys {
			values := q[key]
			sort.Strings(values)
			for _, value := range values {
				reordered.Add(key, value)
			}
		}
		parsed.RawQuery = reordered.Encode()
	} else {
		parsed.RawQuery = ""
	}

	return parsed.String()
}
