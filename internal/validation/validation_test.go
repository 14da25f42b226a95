package validation

import (
	"testing"

	"github.com/google/uuid"

	"card-advisor-api/internal/models"
)

func validCard() models.CatalogCard {
	return models.CatalogCard{
		ID:   uuid.New().String(),
		Bank: "HDFC",
		Name: "Millennia",
		Tier: models.TierPremium,
		BaseRates: models.BaseRates{
			General: 1.0, Dining: 2.0,
		},
	}
}

func TestValidateCatalogCard(t *testing.T) {
	if err := ValidateCatalogCard(validCard()); err != nil {
		t.Errorf("Valid card rejected: %v", err)
	}

	card := validCard()
	card.ID = "not-a-uuid"
	if err := ValidateCatalogCard(card); err == nil {
		t.Error("Expected rejection for bad id")
	}

	card = validCard()
	card.Bank = "  "
	if err := ValidateCatalogCard(card); err == nil {
		t.Error("Expected rejection for blank bank")
	}

	card = validCard()
	card.Tier = "diamond"
	if err := ValidateCatalogCard(card); err == nil {
		t.Error("Expected rejection for unknown tier")
	}

	card = validCard()
	card.AnnualFee = -1
	if err := ValidateCatalogCard(card); err == nil {
		t.Error("Expected rejection for negative fee")
	}

	card = validCard()
	card.BaseRates.Online = 150
	if err := ValidateCatalogCard(card); err == nil {
		t.Error("Expected rejection for rate above 100")
	}
}

func TestValidateCategoryRule(t *testing.T) {
	rule := models.CategoryRule{
		CardID:     uuid.New().String(),
		Category:   models.CategoryDining,
		Rate:       5.0,
		CapAmount:  500,
		CapPeriod:  models.CapPeriodMonthly,
		RewardKind: models.RewardCashback,
		Active:     true,
	}
	if err := ValidateCategoryRule(rule); err != nil {
		t.Errorf("Valid rule rejected: %v", err)
	}

	bad := rule
	bad.Category = "gambling"
	if err := ValidateCategoryRule(bad); err == nil {
		t.Error("Expected rejection for unknown category")
	}

	bad = rule
	bad.CapAmount = 0
	if err := ValidateCategoryRule(bad); err == nil {
		t.Error("Expected rejection: tracked period needs a positive cap")
	}

	bad = rule
	bad.CapPeriod = models.CapPeriodNone
	if err := ValidateCategoryRule(bad); err == nil {
		t.Error("Expected rejection: cap amount with period none")
	}

	bad = rule
	bad.RewardKind = "gold"
	if err := ValidateCategoryRule(bad); err == nil {
		t.Error("Expected rejection for unknown reward kind")
	}
}

func TestValidateMerchantRule(t *testing.T) {
	rule := models.MerchantRule{
		CardID:      uuid.New().String(),
		MerchantKey: "amazon",
		Rate:        5.0,
		CapPeriod:   models.CapPeriodNone,
		RewardKind:  models.RewardCashback,
	}
	if err := ValidateMerchantRule(rule); err != nil {
		t.Errorf("Valid rule rejected: %v", err)
	}

	rule.MerchantKey = "Has Spaces"
	if err := ValidateMerchantRule(rule); err == nil {
		t.Error("Expected rejection for bad merchant key")
	}
}

func TestValidateMerchant(t *testing.T) {
	m := models.Merchant{
		MerchantKey:     "big-bazaar",
		DisplayName:     "Big Bazaar",
		PrimaryCategory: models.CategoryGroceries,
		Aliases:         []string{"bigbazaar", "bb"},
	}
	if err := ValidateMerchant(m); err != nil {
		t.Errorf("Valid merchant rejected: %v", err)
	}

	m.Aliases = []string{"bb", "BB"}
	if err := ValidateMerchant(m); err == nil {
		t.Error("Expected rejection for case-insensitive duplicate aliases")
	}

	m.Aliases = make([]string, 51)
	for i := range m.Aliases {
		m.Aliases[i] = uuid.New().String()
	}
	if err := ValidateMerchant(m); err == nil {
		t.Error("Expected rejection for too many aliases")
	}
}

func TestValidateAddUserCard(t *testing.T) {
	req := models.AddUserCardRequest{
		CatalogCardID: uuid.New().String(),
		RateOverrides: map[string]float64{models.CategoryDining: 10},
		CreditLimit:   100000,
	}
	if err := ValidateAddUserCard(req); err != nil {
		t.Errorf("Valid request rejected: %v", err)
	}

	req.RateOverrides = map[string]float64{"gambling": 5}
	if err := ValidateAddUserCard(req); err == nil {
		t.Error("Expected rejection for unknown override category")
	}

	req.RateOverrides = nil
	req.CreditLimit = -1
	if err := ValidateAddUserCard(req); err == nil {
		t.Error("Expected rejection for negative credit limit")
	}
}

func TestValidateReview(t *testing.T) {
	review := models.Review{
		CardID: uuid.New().String(),
		Rating: 3,
		Body:   "decent",
	}
	if err := ValidateReview(review); err != nil {
		t.Errorf("Valid review rejected: %v", err)
	}

	review.Rating = 0
	if err := ValidateReview(review); err == nil {
		t.Error("Expected rejection for rating below 1")
	}
	review.Rating = 6
	if err := ValidateReview(review); err == nil {
		t.Error("Expected rejection for rating above 5")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world  "); got != "helloworld" {
		t.Errorf("Expected control characters stripped, got %q", got)
	}
	if got := SanitizeString("line1\nline2"); got != "line1\nline2" {
		t.Errorf("Newlines should survive, got %q", got)
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID(uuid.New().String(), "id"); err != nil {
		t.Errorf("Valid UUID rejected: %v", err)
	}
	if err := ValidateUUID("", "id"); err == nil {
		t.Error("Expected rejection for empty id")
	}
	if err := ValidateUUID("11111111-1111-1111-1111-111111111111", "id"); err == nil {
		t.Error("Expected rejection for non-v4 UUID")
	}
}
