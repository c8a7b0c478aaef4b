package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"STITCH_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"STITCH_DB_MAX_CONNS" default:"8"`

	RecallLimit int `envconfig:"RECALL_LIMIT" default:"2000"`
	MinL1Hits   int `envconfig:"MIN_L1_HITS" default:"5"`
	TopK        int `envconfig:"TOP_CANDIDATES" default:"20"`

	WeightL1    float64 `envconfig:"WEIGHT_L1" default:"0.45"`
	WeightL2    float64 `envconfig:"WEIGHT_L2" default:"0.25"`
	WeightColor float64 `envconfig:"WEIGHT_COLOR" default:"0.30"`

	MinScore                float64 `envconfig:"MIN_SCORE" default:"0.55"`
	MinLead                 float64 `envconfig:"MIN_LEAD" default:"0.08"`
	LooseLeadBonus          float64 `envconfig:"LOOSE_LEAD_BONUS" default:"0.07"`
	ColorExactOverridesLead bool    `envconfig:"COLOR_EXACT_OVERRIDES_LEAD" default:"true"`

	ResolverWorkers   int           `envconfig:"RESOLVER_WORKERS" default:"4"`
	StoreQueryTimeout time.Duration `envconfig:"STORE_QUERY_TIMEOUT" default:"5s"`
	StoreQueryRetries int           `envconfig:"STORE_QUERY_RETRIES" default:"1"`
	StoreRetryBackoff time.Duration `envconfig:"STORE_RETRY_BACKOFF" default:"250ms"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("STITCH_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("STITCH_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("STITCH_DB_MIN_CONNS (%d) cannot exceed STITCH_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RecallLimit < 1 {
		return fmt.Errorf("RECALL_LIMIT must be >= 1")
	}
	if c.MinL1Hits < 1 {
		return fmt.Errorf("MIN_L1_HITS must be >= 1")
	}
	if c.TopK < 1 {
		return fmt.Errorf("TOP_CANDIDATES must be >= 1")
	}
	if c.WeightL1 < 0 || c.WeightL2 < 0 || c.WeightColor < 0 {
		return fmt.Errorf("scoring weights must not be negative")
	}
	if sum := c.WeightL1 + c.WeightL2 + c.WeightColor; math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1, got %f", sum)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("MIN_SCORE must be in [0,1]")
	}
	if c.MinLead < 0 || c.MinLead > 1 {
		return fmt.Errorf("MIN_LEAD must be in [0,1]")
	}
	if c.LooseLeadBonus < 0 {
		return fmt.Errorf("LOOSE_LEAD_BONUS must not be negative")
	}
	if c.ResolverWorkers < 1 {
		return fmt.Errorf("RESOLVER_WORKERS must be >= 1")
	}
	if c.StoreQueryTimeout <= 0 {
		return fmt.Errorf("STORE_QUERY_TIMEOUT must be positive")
	}
	if c.StoreQueryRetries < 0 {
		return fmt.Errorf("STORE_QUERY_RETRIES must not be negative")
	}
	return nil
}
