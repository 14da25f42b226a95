package models

import "time"

// Card tiers, ordered weakest to strongest for ranking tie-breaks.
const (
	TierBasic        = "basic"
	TierPremium      = "premium"
	TierSuperPremium = "super-premium"
)

// Reward kinds.
const (
	RewardCashback = "cashback"
	RewardPoints   = "points"
	RewardMiles    = "miles"
)

// Cap periods.
const (
	CapPeriodMonthly = "monthly"
	CapPeriodAnnual  = "annual"
	CapPeriodNone    = "none"
)

// Spending categories tracked on every catalog card.
const (
	CategoryGeneral       = "general"
	CategoryDining        = "dining"
	CategoryGroceries     = "groceries"
	CategoryTravel        = "travel"
	CategoryOnline        = "online"
	CategoryFuel          = "fuel"
	CategoryEntertainment = "entertainment"
)

// Categories lists every recognized spending category.
var Categories = []string{
	CategoryGeneral,
	CategoryDining,
	CategoryGroceries,
	CategoryTravel,
	CategoryOnline,
	CategoryFuel,
	CategoryEntertainment,
}

// BaseRates holds a card's baseline reward rate (percent) per category.
type BaseRates struct {
	General       float64 `json:"general"`
	Dining        float64 `json:"dining"`
	Groceries     float64 `json:"groceries"`
	Travel        float64 `json:"travel"`
	Online        float64 `json:"online"`
	Fuel          float64 `json:"fuel"`
	Entertainment float64 `json:"entertainment"`
}

// ForCategory returns the baseline rate for a category, falling back to
// the general rate for unknown categories.
func (r BaseRates) ForCategory(category string) float64 {
	switch category {
	case CategoryDining:
		return r.Dining
	case CategoryGroceries:
		return r.Groceries
	case CategoryTravel:
		return r.Travel
	case CategoryOnline:
		return r.Online
	case CategoryFuel:
		return r.Fuel
	case CategoryEntertainment:
		return r.Entertainment
	default:
		return r.General
	}
}

// CatalogCard is a master-data credit card.
type CatalogCard struct {
	ID         string    `json:"id"` // uuid
	Bank       string    `json:"bank"`
	Name       string    `json:"name"`
	Tier       string    `json:"tier"`    // basic|premium|super-premium
	Network    string    `json:"network"` // visa|mastercard|amex|rupay
	JoiningFee float64   `json:"joining_fee"`
	AnnualFee  float64   `json:"annual_fee"`
	BaseRates  BaseRates `json:"base_rates"`
	IsActive   bool      `json:"is_active"`
}

// TierRank maps a tier to its ranking weight (higher is better).
func TierRank(tier string) int {
	switch tier {
	case TierSuperPremium:
		return 3
	case TierPremium:
		return 2
	case TierBasic:
		return 1
	default:
		return 0
	}
}

// CategoryRule is a per-category reward override on a catalog card.
type CategoryRule struct {
	ID         string  `json:"id"`
	CardID     string  `json:"card_id"`
	Category   string  `json:"category"`
	Rate       float64 `json:"rate"`                 // percent
	CapAmount  float64 `json:"cap_amount,omitempty"` // 0 means uncapped
	CapPeriod  string  `json:"cap_period"`           // monthly|annual|none
	RewardKind string  `json:"reward_kind"`          // cashback|points|miles
	Active     bool    `json:"active"`
}

// MerchantRule is a per-merchant reward override on a catalog card.
// It takes precedence over any category rule for that merchant.
type MerchantRule struct {
	ID          string  `json:"id"`
	CardID      string  `json:"card_id"`
	MerchantKey string  `json:"merchant_key"`
	Rate        float64 `json:"rate"`
	CapAmount   float64 `json:"cap_amount,omitempty"`
	CapPeriod   string  `json:"cap_period"`
	RewardKind  string  `json:"reward_kind"`
	Active      bool    `json:"active"`
}

// Merchant is a canonical merchant identity.
type Merchant struct {
	MerchantKey     string   `json:"merchant_key"` // canonical lowercase token
	DisplayName     string   `json:"display_name"`
	PrimaryCategory string   `json:"primary_category"`
	Aliases         []string `json:"aliases"`
	Active          bool     `json:"active"`
}

// UserCard is a card a user has declared they own.
type UserCard struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	CatalogCardID  string             `json:"catalog_card_id"`
	RateOverrides  map[string]float64 `json:"rate_overrides,omitempty"` // per-category user overrides
	CurrentBalance float64            `json:"current_balance"`
	CreditLimit    float64            `json:"credit_limit"`
	IsPrimary      bool               `json:"is_primary"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Utilization returns current_balance / credit_limit, or 0 when the
// limit is unknown.
func (uc UserCard) Utilization() float64 {
	if uc.CreditLimit <= 0 {
		return 0
	}
	return uc.CurrentBalance / uc.CreditLimit
}

// Review is a user review of a catalog card.
type Review struct {
	ID        string    `json:"id"`
	CardID    string    `json:"card_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"` // 1..5
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread is a community discussion thread.
type Thread struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadReply is a reply on a discussion thread.
type ThreadReply struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Envelope sources.
const (
	SourcePattern = "pattern"
	SourceCatalog = "catalog"
	SourceCache   = "cache"
	SourceLLM     = "llm"
	SourceError   = "error"
)

// Query types recognized by the classifier.
const (
	QueryBestCard  = "best_card_for_merchant"
	QueryListCards = "list_my_cards"
	QueryCompare   = "compare_two_cards"
	QueryFAQ       = "faq"
	QueryUnknown   = "unknown"
)

// Envelope is the uniform response record of the recommendation pipeline.
type Envelope struct {
	ResponseText    string         `json:"response_text"`
	Source          string         `json:"source"` // pattern|catalog|cache|llm|error
	Confidence      float64        `json:"confidence"`
	QueryType       string         `json:"query_type,omitempty"`
	APICallsSaved   int            `json:"api_calls_saved"`
	ProcessingTimeS float64        `json:"processing_time_s"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	UseCache       *bool  `json:"use_cache,omitempty"` // nil means enabled
}

// AddUserCardRequest is the request body for adding a card to a user.
type AddUserCardRequest struct {
	CatalogCardID  string             `json:"catalog_card_id"`
	RateOverrides  map[string]float64 `json:"rate_overrides,omitempty"`
	CurrentBalance float64            `json:"current_balance"`
	CreditLimit    float64            `json:"credit_limit"`
	IsPrimary      bool               `json:"is_primary"`
}

// UpsertCatalogCardRequest is the admin/seed payload: a catalog card
// together with its rules.
type UpsertCatalogCardRequest struct {
	Card          CatalogCard    `json:"card"`
	CategoryRules []CategoryRule `json:"category_rules,omitempty"`
	MerchantRules []MerchantRule `json:"merchant_rules,omitempty"`
}

// CardDetailResponse is a catalog card with its reward rules.
type CardDetailResponse struct {
	Card          CatalogCard    `json:"card"`
	CategoryRules []CategoryRule `json:"category_rules"`
	MerchantRules []MerchantRule `json:"merchant_rules"`
}

// AskRequest is the request body of the NL-to-SQL agent.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries the generated SQL and its result rows.
type AskResponse struct {
	Question string           `json:"question"`
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
