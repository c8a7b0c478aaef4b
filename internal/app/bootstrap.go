package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"thread.fit/stitch/internal/cli"
	"thread.fit/stitch/internal/config"
	"thread.fit/stitch/internal/db"
	"thread.fit/stitch/internal/lexicon"
	"thread.fit/stitch/internal/logging"
	"thread.fit/stitch/internal/resolver"
)

// runtime bundles the pieces every command needs after bootstrap.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
}

func openRuntime(ctx context.Context, envLoader *cli.EnvLoader) (*runtime, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, pool: pool}, nil
}

func (r *runtime) close() {
	if r != nil && r.pool != nil {
		_ = r.pool.Close()
	}
}

// warmEngine builds the warmed resolution stack. An empty brand list loads
// every brand that has lexicon rows. Warmup failures are fatal here; the
// engine must never start on a partial cache.
func (r *runtime) warmEngine(ctx context.Context, brands []string) (*resolver.Engine, *resolver.URLCache, *lexicon.Lexicon, error) {
	if len(brands) == 0 {
		listed, err := r.pool.ListLexiconBrands(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("list lexicon brands: %w", err)
		}
		brands = listed
	}

	lex, err := lexicon.Load(ctx, r.pool, brands)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("warm lexicon: %w", err)
	}

	cache, err := resolver.WarmURLCache(ctx, r.pool)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("warm url cache: %w", err)
	}

	r.logger.Info().
		Int("brands", len(brands)).
		Int("cached_urls", cache.Len()).
		Msg("resolution stack warmed")

	engine := resolver.New(r.pool, cache, lex, r.cfg, r.logger)
	return engine, cache, lex, nil
}

func splitBrandsFlag(value string) []string {
	var brands []string
	for _, brand := range strings.Split(value, ",") {
		brand = strings.TrimSpace(brand)
		if brand != "" {
			brands = append(brands, brand)
		}
	}
	return brands
}
