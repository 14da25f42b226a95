package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"card-advisor-api/internal/models"
)

var (
	uuidRegex        = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	merchantKeyRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func ValidateCatalogCard(card models.CatalogCard) error {
	if err := ValidateUUID(card.ID, "id"); err != nil {
		return err
	}

	if strings.TrimSpace(card.Bank) == "" {
		return &ValidationError{Field: "bank", Message: "is required"}
	}

	if strings.TrimSpace(card.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}

	if err := validateTier(card.Tier); err != nil {
		return err
	}

	if card.JoiningFee < 0 {
		return &ValidationError{Field: "joining_fee", Message: "must be non-negative"}
	}

	if card.AnnualFee < 0 {
		return &ValidationError{Field: "annual_fee", Message: "must be non-negative"}
	}

	rates := map[string]float64{
		"base_rates.general":       card.BaseRates.General,
		"base_rates.dining":        card.BaseRates.Dining,
		"base_rates.groceries":     card.BaseRates.Groceries,
		"base_rates.travel":        card.BaseRates.Travel,
		"base_rates.online":        card.BaseRates.Online,
		"base_rates.fuel":          card.BaseRates.Fuel,
		"base_rates.entertainment": card.BaseRates.Entertainment,
	}
	for field, rate := range rates {
		if err := validateRate(rate, field); err != nil {
			return err
		}
	}

	return nil
}

func ValidateCategoryRule(rule models.CategoryRule) error {
	if err := ValidateUUID(rule.CardID, "card_id"); err != nil {
		return err
	}

	if err := ValidateCategory(rule.Category); err != nil {
		return err
	}

	if err := validateRate(rule.Rate, "rate"); err != nil {
		return err
	}

	if err := validateCap(rule.CapAmount, rule.CapPeriod); err != nil {
		return err
	}

	return validateRewardKind(rule.RewardKind)
}

func ValidateMerchantRule(rule models.MerchantRule) error {
	if err := ValidateUUID(rule.CardID, "card_id"); err != nil {
		return err
	}

	if err := ValidateMerchantKey(rule.MerchantKey); err != nil {
		return err
	}

	if err := validateRate(rule.Rate, "rate"); err != nil {
		return err
	}

	if err := validateCap(rule.CapAmount, rule.CapPeriod); err != nil {
		return err
	}

	return validateRewardKind(rule.RewardKind)
}

func ValidateMerchant(m models.Merchant) error {
	if err := ValidateMerchantKey(m.MerchantKey); err != nil {
		return err
	}

	if strings.TrimSpace(m.DisplayName) == "" {
		return &ValidationError{Field: "display_name", Message: "is required"}
	}

	if err := ValidateCategory(m.PrimaryCategory); err != nil {
		return err
	}

	if len(m.Aliases) > 50 {
		return &ValidationError{Field: "aliases", Message: "cannot contain more than 50 aliases"}
	}

	seen := make(map[string]bool)
	for i, alias := range m.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("aliases[%d]", i),
				Message: "must not be empty",
			}
		}
		if seen[alias] {
			return &ValidationError{
				Field:   "aliases",
				Message: fmt.Sprintf("duplicate alias: %s", alias),
			}
		}
		seen[alias] = true
	}

	return nil
}

func ValidateAddUserCard(req models.AddUserCardRequest) error {
	if err := ValidateUUID(req.CatalogCardID, "catalog_card_id"); err != nil {
		return err
	}

	for category, rate := range req.RateOverrides {
		if err := ValidateCategory(category); err != nil {
			return &ValidationError{
				Field:   "rate_overrides",
				Message: fmt.Sprintf("unknown category: %s", category),
			}
		}
		if err := validateRate(rate, "rate_overrides."+category); err != nil {
			return err
		}
	}

	if req.CurrentBalance < 0 {
		return &ValidationError{Field: "current_balance", Message: "must be non-negative"}
	}

	if req.CreditLimit < 0 {
		return &ValidationError{Field: "credit_limit", Message: "must be non-negative"}
	}

	return nil
}

func ValidateReview(review models.Review) error {
	if err := ValidateUUID(review.CardID, "card_id"); err != nil {
		return err
	}

	if review.Rating < 1 || review.Rating > 5 {
		return &ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}

	if strings.TrimSpace(review.Body) == "" {
		return &ValidationError{Field: "body", Message: "is required"}
	}

	if len(review.Body) > 10000 {
		return &ValidationError{Field: "body", Message: "cannot exceed 10000 characters"}
	}

	return nil
}

func ValidateThread(thread models.Thread) error {
	if strings.TrimSpace(thread.Title) == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}

	if len(thread.Title) > 300 {
		return &ValidationError{Field: "title", Message: "cannot exceed 300 characters"}
	}

	if strings.TrimSpace(thread.Body) == "" {
		return &ValidationError{Field: "body", Message: "is required"}
	}

	return nil
}

// SanitizeString strips control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{Field: fieldName, Message: "must be a valid UUID v4"}
	}

	return nil
}

func ValidateMerchantKey(key string) error {
	if key == "" {
		return &ValidationError{Field: "merchant_key", Message: "is required"}
	}

	if !merchantKeyRegex.MatchString(key) {
		return &ValidationError{
			Field:   "merchant_key",
			Message: "must be a lowercase token (letters, digits, '-', '_')",
		}
	}

	return nil
}

func ValidateCategory(category string) error {
	for _, c := range models.Categories {
		if category == c {
			return nil
		}
	}
	return &ValidationError{
		Field:   "category",
		Message: fmt.Sprintf("must be one of: %s", strings.Join(models.Categories, ", ")),
	}
}

func validateTier(tier string) error {
	switch tier {
	case models.TierBasic, models.TierPremium, models.TierSuperPremium:
		return nil
	}
	return &ValidationError{
		Field:   "tier",
		Message: "must be one of: basic, premium, super-premium",
	}
}

func validateRewardKind(kind string) error {
	switch kind {
	case models.RewardCashback, models.RewardPoints, models.RewardMiles:
		return nil
	}
	return &ValidationError{
		Field:   "reward_kind",
		Message: "must be one of: cashback, points, miles",
	}
}

// validateRate enforces 0 <= rate <= 100 (percent).
func validateRate(rate float64, fieldName string) error {
	if rate < 0 || rate > 100 {
		return &ValidationError{Field: fieldName, Message: "must be between 0 and 100"}
	}
	return nil
}

// validateCap enforces that a cap amount is strictly positive and
// carries a tracked period, and that an uncapped rule has period none.
func validateCap(capAmount float64, capPeriod string) error {
	switch capPeriod {
	case models.CapPeriodMonthly, models.CapPeriodAnnual:
		if capAmount <= 0 {
			return &ValidationError{Field: "cap_amount", Message: "must be positive when a cap period is set"}
		}
	case models.CapPeriodNone, "":
		if capAmount != 0 {
			return &ValidationError{Field: "cap_period", Message: "is required when cap_amount is set"}
		}
	default:
		return &ValidationError{Field: "cap_period", Message: "must be one of: monthly, annual, none"}
	}
	return nil
}
