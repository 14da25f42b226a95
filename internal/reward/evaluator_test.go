package reward

import (
	"testing"

	"card-advisor-api/internal/models"
)

func testCard() models.CatalogCard {
	return models.CatalogCard{
		ID:   "11111111-1111-4111-8111-111111111111",
		Bank: "HDFC",
		Name: "Millennia",
		Tier: models.TierPremium,
		BaseRates: models.BaseRates{
			General: 1.0,
			Dining:  2.0,
			Online:  2.5,
		},
		IsActive: true,
	}
}

func TestEvaluate_MerchantRuleWins(t *testing.T) {
	result := Evaluate(Request{
		Card: testCard(),
		MerchantRule: &models.MerchantRule{
			MerchantKey: "amazon",
			Rate:        5.0,
			CapPeriod:   models.CapPeriodNone,
			RewardKind:  models.RewardCashback,
			Active:      true,
		},
		CategoryRule: &models.CategoryRule{
			Category:   models.CategoryOnline,
			Rate:       3.0,
			CapPeriod:  models.CapPeriodNone,
			RewardKind: models.RewardCashback,
			Active:     true,
		},
		Category: models.CategoryOnline,
		Amount:   1000,
	})

	if result.RuleSource != SourceMerchantRule {
		t.Errorf("Expected rule source %s, got %s", SourceMerchantRule, result.RuleSource)
	}
	if result.EffectiveRate != 5.0 {
		t.Errorf("Expected effective rate 5.0, got %v", result.EffectiveRate)
	}
	if result.GrossReward != 50.0 {
		t.Errorf("Expected gross reward 50.0, got %v", result.GrossReward)
	}
	if result.CapHit {
		t.Error("Uncapped rule should not hit a cap")
	}
}

func TestEvaluate_InactiveMerchantRuleIgnored(t *testing.T) {
	result := Evaluate(Request{
		Card: testCard(),
		MerchantRule: &models.MerchantRule{
			MerchantKey: "amazon",
			Rate:        5.0,
			Active:      false,
		},
		CategoryRule: &models.CategoryRule{
			Category:   models.CategoryOnline,
			Rate:       3.0,
			CapPeriod:  models.CapPeriodNone,
			RewardKind: models.RewardCashback,
			Active:     true,
		},
		Category: models.CategoryOnline,
		Amount:   100,
	})

	if result.RuleSource != SourceCategoryRule {
		t.Errorf("Expected rule source %s, got %s", SourceCategoryRule, result.RuleSource)
	}
	if result.EffectiveRate != 3.0 {
		t.Errorf("Expected effective rate 3.0, got %v", result.EffectiveRate)
	}
}

func TestEvaluate_CategoryRuleWithUserOverride(t *testing.T) {
	result := Evaluate(Request{
		Card: testCard(),
		CategoryRule: &models.CategoryRule{
			Category:   models.CategoryDining,
			Rate:       3.0,
			CapPeriod:  models.CapPeriodNone,
			RewardKind: models.RewardPoints,
			Active:     true,
		},
		Category:      models.CategoryDining,
		RateOverrides: map[string]float64{models.CategoryDining: 10.0},
		Amount:        200,
	})

	if result.EffectiveRate != 10.0 {
		t.Errorf("Expected overridden rate 10.0, got %v", result.EffectiveRate)
	}
	if result.GrossReward != 20.0 {
		t.Errorf("Expected gross reward 20.0, got %v", result.GrossReward)
	}
	if result.RewardKind != models.RewardPoints {
		t.Errorf("Expected reward kind %s, got %s", models.RewardPoints, result.RewardKind)
	}
}

func TestEvaluate_BaselineFallback(t *testing.T) {
	result := Evaluate(Request{
		Card:     testCard(),
		Category: models.CategoryDining,
		Amount:   100,
	})

	if result.RuleSource != SourceBaseline {
		t.Errorf("Expected rule source %s, got %s", SourceBaseline, result.RuleSource)
	}
	if result.EffectiveRate != 2.0 {
		t.Errorf("Expected dining baseline 2.0, got %v", result.EffectiveRate)
	}
}

func TestEvaluate_BaselineUnknownCategoryUsesGeneral(t *testing.T) {
	result := Evaluate(Request{
		Card:     testCard(),
		Category: "something-else",
		Amount:   100,
	})

	if result.EffectiveRate != 1.0 {
		t.Errorf("Expected general baseline 1.0, got %v", result.EffectiveRate)
	}
}

func TestEvaluate_CapLimitsReward(t *testing.T) {
	result := Evaluate(Request{
		Card: testCard(),
		MerchantRule: &models.MerchantRule{
			MerchantKey: "swiggy",
			Rate:        5.0,
			CapAmount:   500,
			CapPeriod:   models.CapPeriodMonthly,
			RewardKind:  models.RewardCashback,
			Active:      true,
		},
		Amount:   1000,
		Consumed: 480,
	})

	if result.GrossReward != 50.0 {
		t.Errorf("Expected gross reward 50.0, got %v", result.GrossReward)
	}
	if result.CappedReward != 20.0 {
		t.Errorf("Expected capped reward 20.0, got %v", result.CappedReward)
	}
	if !result.CapHit {
		t.Error("Expected cap_hit to be true")
	}
}

func TestEvaluate_CapExhausted(t *testing.T) {
	result := Evaluate(Request{
		Card: testCard(),
		MerchantRule: &models.MerchantRule{
			MerchantKey: "swiggy",
			Rate:        5.0,
			CapAmount:   500,
			CapPeriod:   models.CapPeriodMonthly,
			RewardKind:  models.RewardCashback,
			Active:      true,
		},
		Amount:   1000,
		Consumed: 600,
	})

	if result.CappedReward != 0 {
		t.Errorf("Expected capped reward 0, got %v", result.CappedReward)
	}
	if !result.CapHit {
		t.Error("Expected cap_hit to be true")
	}
}

func TestEvaluate_UntrackedPeriodIgnoresCap(t *testing.T) {
	result := Evaluate(Request{
		Card: testCard(),
		CategoryRule: &models.CategoryRule{
			Category:   models.CategoryOnline,
			Rate:       4.0,
			CapPeriod:  models.CapPeriodNone,
			RewardKind: models.RewardCashback,
			Active:     true,
		},
		Category: models.CategoryOnline,
		Amount:   100000,
	})

	if result.CapHit {
		t.Error("Rule with period none should never hit a cap")
	}
	if result.CappedReward != result.GrossReward {
		t.Errorf("Expected capped == gross, got %v vs %v", result.CappedReward, result.GrossReward)
	}
}

func TestEvaluate_CappedNeverExceedsGross(t *testing.T) {
	for _, consumed := range []float64{0, 100, 480, 500, 900} {
		result := Evaluate(Request{
			Card: testCard(),
			MerchantRule: &models.MerchantRule{
				MerchantKey: "amazon",
				Rate:        5.0,
				CapAmount:   500,
				CapPeriod:   models.CapPeriodMonthly,
				RewardKind:  models.RewardCashback,
				Active:      true,
			},
			Amount:   1000,
			Consumed: consumed,
		})

		if result.CappedReward > result.GrossReward {
			t.Errorf("consumed=%v: capped %v exceeds gross %v", consumed, result.CappedReward, result.GrossReward)
		}
		if result.CappedReward < 0 {
			t.Errorf("consumed=%v: capped reward is negative: %v", consumed, result.CappedReward)
		}
	}
}

func TestEvaluate_ZeroAmount(t *testing.T) {
	result := Evaluate(Request{
		Card:     testCard(),
		Category: models.CategoryGeneral,
		Amount:   0,
	})

	if result.GrossReward != 0 || result.CappedReward != 0 {
		t.Errorf("Expected zero rewards for zero amount, got %v / %v", result.GrossReward, result.CappedReward)
	}
	if result.CapHit {
		t.Error("Zero spend should not hit a cap")
	}
}
