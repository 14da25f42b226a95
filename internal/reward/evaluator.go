package reward

import (
	"fmt"

	"card-advisor-api/internal/models"
)

// Rule sources, in precedence order.
const (
	SourceMerchantRule = "merchant_rule"
	SourceCategoryRule = "category_rule"
	SourceBaseline     = "baseline"
)

// Request carries everything Evaluate needs. The caller looks up the
// applicable rules from the catalog snapshot; the evaluator itself
// holds no state. Consumed is the amount already spent against the
// rule's cap in the current period; accrual tracking lives with the
// caller.
type Request struct {
	Card          models.CatalogCard
	MerchantRule  *models.MerchantRule
	CategoryRule  *models.CategoryRule
	Category      string
	RateOverrides map[string]float64 // user's per-category overrides
	Amount        float64
	Consumed      float64
}

// Result is the outcome of evaluating one card for one spend.
type Result struct {
	EffectiveRate float64 `json:"effective_rate"` // percent
	GrossReward   float64 `json:"gross_reward"`
	CappedReward  float64 `json:"capped_reward"`
	CapHit        bool    `json:"cap_hit"`
	RewardKind    string  `json:"reward_kind"`
	RuleSource    string  `json:"rule_source"` // merchant_rule|category_rule|baseline
	Reason        string  `json:"reason"`
}

// Evaluate selects the applicable reward rule for a card and computes
// the reward for the given amount. Precedence: merchant rule, then
// category rule, then the card's baseline rate.
func Evaluate(req Request) Result {
	rate, kind, source, reason := selectRule(req)

	gross := req.Amount * rate / 100

	capped := gross
	capHit := false
	if capAmount, capPeriod := ruleCap(req, source); capAmount > 0 && trackedPeriod(capPeriod) {
		headroom := capAmount - req.Consumed
		if headroom < 0 {
			headroom = 0
		}
		if gross > headroom {
			capped = headroom
			capHit = true
		}
	}

	return Result{
		EffectiveRate: rate,
		GrossReward:   gross,
		CappedReward:  capped,
		CapHit:        capHit,
		RewardKind:    kind,
		RuleSource:    source,
		Reason:        reason,
	}
}

func selectRule(req Request) (rate float64, kind, source, reason string) {
	if req.MerchantRule != nil && req.MerchantRule.Active {
		r := req.MerchantRule
		return r.Rate, r.RewardKind, SourceMerchantRule,
			fmt.Sprintf("%.4g%% %s via merchant offer on %s", r.Rate, r.RewardKind, r.MerchantKey)
	}

	if req.Category != "" && req.CategoryRule != nil && req.CategoryRule.Active {
		r := req.CategoryRule
		rate := r.Rate
		if override, ok := req.RateOverrides[r.Category]; ok {
			rate = override
		}
		return rate, r.RewardKind, SourceCategoryRule,
			fmt.Sprintf("%.4g%% %s on %s spends", rate, r.RewardKind, r.Category)
	}

	category := req.Category
	if category == "" {
		category = models.CategoryGeneral
	}
	rate = req.Card.BaseRates.ForCategory(category)
	if override, ok := req.RateOverrides[category]; ok {
		rate = override
	}
	return rate, models.RewardCashback, SourceBaseline,
		fmt.Sprintf("%.4g%% baseline rate on %s spends", rate, category)
}

// ruleCap returns the cap of the rule that was selected.
func ruleCap(req Request, source string) (float64, string) {
	switch source {
	case SourceMerchantRule:
		return req.MerchantRule.CapAmount, req.MerchantRule.CapPeriod
	case SourceCategoryRule:
		return req.CategoryRule.CapAmount, req.CategoryRule.CapPeriod
	default:
		return 0, models.CapPeriodNone
	}
}

func trackedPeriod(period string) bool {
	return period == models.CapPeriodMonthly || period == models.CapPeriodAnnual
}
