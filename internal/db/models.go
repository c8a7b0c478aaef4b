package db

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Source ranks recorded on catalog.products.
const (
	SourceRankAutomatic = 1
	SourceRankManual    = 2
)

// Product maps catalog.products.
type Product struct {
	ProductID       int64          `gorm:"column:product_id;primaryKey;autoIncrement"`
	ProductUUID     string         `gorm:"column:product_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProductCode     string         `gorm:"column:product_code;type:text;not null;uniqueIndex:idx_products_brand_code"`
	Brand           string         `gorm:"column:brand;type:text;not null;uniqueIndex:idx_products_brand_code"`
	Title           string         `gorm:"column:title;type:text;not null"`
	NormalizedTitle string         `gorm:"column:normalized_title;type:text;not null"`
	L1Tokens        pq.StringArray `gorm:"column:l1_tokens;type:text[];not null"`
	L2Tokens        pq.StringArray `gorm:"column:l2_tokens;type:text[];not null"`
	ColorName       string         `gorm:"column:color_name;type:text;not null;default:''"`
	ColorCode       string         `gorm:"column:color_code;type:text;not null;default:''"`
	SourceRank      int16          `gorm:"column:source_rank;type:smallint;not null;default:1"`
	SourceURL       *string        `gorm:"column:source_url;type:text"`
	CreatedAt       time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Product) TableName() string { return "catalog.products" }

// Offer maps catalog.offers: confirmed (url, code) pairs per site.
type Offer struct {
	OfferID     int64     `gorm:"column:offer_id;primaryKey;autoIncrement"`
	OfferUUID   string    `gorm:"column:offer_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProductCode string    `gorm:"column:product_code;type:text;not null"`
	Brand       string    `gorm:"column:brand;type:text;not null"`
	SiteName    string    `gorm:"column:site_name;type:text;not null"`
	SourceURL   string    `gorm:"column:source_url;type:text;not null;unique"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Offer) TableName() string { return "catalog.offers" }

// CandidatePoolEntry maps catalog.candidate_pool. No product code column by
// construction; a row leaves the pool only through a human code import.
type CandidatePoolEntry struct {
	PoolEntryID int64     `gorm:"column:pool_entry_id;primaryKey;autoIncrement"`
	PoolUUID    string    `gorm:"column:pool_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SiteName    string    `gorm:"column:site_name;type:text;not null;uniqueIndex:idx_pool_site_url"`
	SourceURL   string    `gorm:"column:source_url;type:text;not null;uniqueIndex:idx_pool_site_url"`
	Title       string    `gorm:"column:title;type:text;not null"`
	ColorText   string    `gorm:"column:color_text;type:text;not null;default:''"`
	Brand       string    `gorm:"column:brand;type:text;not null"`
	Reason      string    `gorm:"column:reason;type:text;not null;default:'unmatched'"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (CandidatePoolEntry) TableName() string { return "catalog.candidate_pool" }

// StyleToken maps catalog.style_tokens, the lexicon dictionary.
// Tier 1 holds coarse category words, tier 2 finer descriptors.
type StyleToken struct {
	StyleTokenID int64     `gorm:"column:style_token_id;primaryKey;autoIncrement"`
	Brand        string    `gorm:"column:brand;type:text;not null;uniqueIndex:idx_style_tokens_brand_token"`
	Token        string    `gorm:"column:token;type:text;not null;uniqueIndex:idx_style_tokens_brand_token"`
	Tier         int16     `gorm:"column:tier;type:smallint;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (StyleToken) TableName() string { return "catalog.style_tokens" }

// ColorSynonym maps catalog.color_synonyms. Grade "exact" counts as a full
// color match, "near" as a recognized near-synonym.
type ColorSynonym struct {
	ColorSynonymID int64     `gorm:"column:color_synonym_id;primaryKey;autoIncrement"`
	Brand          string    `gorm:"column:brand;type:text;not null;uniqueIndex:idx_color_synonyms_key"`
	Canonical      string    `gorm:"column:canonical;type:text;not null;uniqueIndex:idx_color_synonyms_key"`
	Synonym        string    `gorm:"column:synonym;type:text;not null;uniqueIndex:idx_color_synonyms_key"`
	Grade          string    `gorm:"column:grade;type:text;not null;default:'exact'"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ColorSynonym) TableName() string { return "catalog.color_synonyms" }

// BrandConfig maps catalog.brand_configs: per-brand overrides of the
// resolver defaults. A brand tweak is a data change, not a code change.
type BrandConfig struct {
	Brand                   string    `gorm:"column:brand;type:text;primaryKey"`
	WeightL1                float64   `gorm:"column:weight_l1;type:double precision;not null"`
	WeightL2                float64   `gorm:"column:weight_l2;type:double precision;not null"`
	WeightColor             float64   `gorm:"column:weight_color;type:double precision;not null"`
	MinScore                float64   `gorm:"column:min_score;type:double precision;not null"`
	MinLead                 float64   `gorm:"column:min_lead;type:double precision;not null"`
	LooseLeadBonus          float64   `gorm:"column:loose_lead_bonus;type:double precision;not null"`
	ColorExactOverridesLead bool      `gorm:"column:color_exact_overrides_lead;type:boolean;not null;default:true"`
	UpdatedAt               time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (BrandConfig) TableName() string { return "catalog.brand_configs" }

// ResolutionEvent maps catalog.resolution_events, the audit trail for every
// decision the match engine makes.
type ResolutionEvent struct {
	ResolutionEventID int64           `gorm:"column:resolution_event_id;primaryKey;autoIncrement"`
	EventUUID         string          `gorm:"column:event_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SiteName          string          `gorm:"column:site_name;type:text;not null"`
	SourceURL         string          `gorm:"column:source_url;type:text;not null"`
	Brand             string          `gorm:"column:brand;type:text;not null"`
	Decision          string          `gorm:"column:decision;type:text;not null"`
	ChosenCode        *string         `gorm:"column:chosen_code;type:text"`
	RecallStage       string          `gorm:"column:recall_stage;type:text;not null"`
	BestScore         *float64        `gorm:"column:best_score;type:double precision"`
	SecondScore       *float64        `gorm:"column:second_score;type:double precision"`
	Lead              *float64        `gorm:"column:lead;type:double precision"`
	Candidates        json.RawMessage `gorm:"column:candidates;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ResolutionEvent) TableName() string { return "catalog.resolution_events" }

func autoMigrateModels() []any {
	return []any{
		&Product{},
		&Offer{},
		&CandidatePoolEntry{},
		&StyleToken{},
		&ColorSynonym{},
		&BrandConfig{},
		&ResolutionEvent{},
	}
}
