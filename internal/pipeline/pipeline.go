package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"card-advisor-api/internal/cache"
	"card-advisor-api/internal/catalog"
	"card-advisor-api/internal/classify"
	"card-advisor-api/internal/database"
	"card-advisor-api/internal/events"
	"card-advisor-api/internal/llm"
	"card-advisor-api/internal/merchant"
	"card-advisor-api/internal/metrics"
	"card-advisor-api/internal/models"
	"card-advisor-api/internal/reward"
)

// TTL for answers produced by the LLM path. Kept short: these answers
// are not derived from the catalog snapshot.
const llmCacheTTL = 5 * time.Minute

// Canned responses for deterministic outcomes.
const (
	msgNoCards = "You haven't added any cards yet. Add a card from the catalog first and I can recommend the best one for every merchant."
	msgRetry   = "I couldn't answer that right now. Please try again shortly."
)

// Config holds the pipeline's tunables.
type Config struct {
	CacheTTL          time.Duration
	FallbackThreshold float64 // minimum classifier confidence to skip the LLM
	Deadline          time.Duration
	CatalogVersionTag string
}

// Pipeline orchestrates classify -> resolve -> evaluate -> cache -> LLM
// and always returns an envelope; no failure escapes it.
type Pipeline struct {
	cfg      Config
	db       *database.DB
	catalog  *catalog.Store
	resolver *merchant.Resolver
	cache    cache.Cache
	gateway  *llm.Gateway
	metrics  *metrics.Collector
	events   *events.Manager
}

// New wires the pipeline. The merchant resolver is built once from the
// boot snapshot; merchant table changes require a restart.
func New(cfg Config, db *database.DB, store *catalog.Store, resolver *merchant.Resolver, c cache.Cache, gateway *llm.Gateway, met *metrics.Collector, ev *events.Manager) *Pipeline {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 30 * time.Second
	}
	return &Pipeline{
		cfg:      cfg,
		db:       db,
		catalog:  store,
		resolver: resolver,
		cache:    c,
		gateway:  gateway,
		metrics:  met,
		events:   ev,
	}
}

// Answer runs one query through the pipeline and returns an envelope.
func (p *Pipeline) Answer(ctx context.Context, userID, query string, conversationID int64, useCache bool) models.Envelope {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Deadline)
	defer cancel()

	env := p.answer(ctx, userID, query, useCache)
	env.ProcessingTimeS = time.Since(start).Seconds()

	p.metrics.ObserveAnswer(env.Source, env.APICallsSaved)
	p.events.PublishChatAnswered(ctx, userID, query, env)

	if err := p.db.LogConversation(ctx, userID, conversationID, query, env.ResponseText, env.Source); err != nil {
		log.Printf("WARN: failed to log conversation: %v", err)
	}

	return env
}

func (p *Pipeline) answer(ctx context.Context, userID, query string, useCache bool) models.Envelope {
	fingerprint := cache.Fingerprint(userID, query, p.cfg.CatalogVersionTag)

	if useCache {
		if env, ok := p.cacheGet(ctx, fingerprint); ok {
			return env
		}
	}

	snap, err := p.catalog.Snapshot(ctx, p.cfg.CatalogVersionTag)
	if err != nil {
		log.Printf("ERROR: catalog unavailable: %v", err)
		return errorEnvelope(msgRetry)
	}

	intent := p.classifier(snap).Classify(query)

	var env models.Envelope
	switch {
	case intent.Type != models.QueryUnknown && intent.Confidence >= p.cfg.FallbackThreshold:
		env = p.handleIntent(ctx, snap, userID, intent)
		if env.Source != models.SourceError && useCache {
			p.cachePut(ctx, fingerprint, env, p.cfg.CacheTTL)
		}
	default:
		env = p.handleLLM(ctx, snap, userID, query)
		if env.Source == models.SourceLLM && useCache {
			p.cachePut(ctx, fingerprint, env, llmCacheTTL)
		}
	}

	if ctx.Err() != nil {
		// Deadline hit somewhere along the way; discard partial work.
		return errorEnvelope(msgRetry)
	}

	return env
}

// classifier builds an intent classifier over the snapshot's card
// names. Rebuilt per request so a catalog refresh is picked up.
func (p *Pipeline) classifier(snap *catalog.Snapshot) *classify.Classifier {
	cards := snap.Cards()
	names := make([]string, 0, len(cards))
	for _, card := range cards {
		if card.IsActive {
			names = append(names, card.Name)
		}
	}
	return classify.New(names)
}

func (p *Pipeline) handleIntent(ctx context.Context, snap *catalog.Snapshot, userID string, intent classify.Intent) models.Envelope {
	switch intent.Type {
	case models.QueryBestCard:
		return p.handleBestCard(ctx, snap, userID, intent)
	case models.QueryListCards:
		return p.handleListCards(ctx, snap, userID)
	case models.QueryCompare:
		return p.handleCompare(snap, intent)
	case models.QueryFAQ:
		return models.Envelope{
			ResponseText:  intent.Answer,
			Source:        models.SourcePattern,
			Confidence:    1.0,
			QueryType:     models.QueryFAQ,
			APICallsSaved: 1,
		}
	default:
		return errorEnvelope(msgRetry)
	}
}

// rankedCard pairs a user's card with its evaluation for ranking.
type rankedCard struct {
	userCard models.UserCard
	card     models.CatalogCard
	result   reward.Result
}

func (p *Pipeline) handleBestCard(ctx context.Context, snap *catalog.Snapshot, userID string, intent classify.Intent) models.Envelope {
	userCards, err := p.db.GetUserCards(ctx, userID)
	if err != nil {
		log.Printf("ERROR: failed to load user cards: %v", err)
		return errorEnvelope(msgRetry)
	}

	res, resolved := p.resolver.Resolve(intent.MerchantText)

	merchantKey := ""
	category := ""
	displayName := strings.TrimSpace(intent.MerchantText)
	source := models.SourcePattern
	if resolved {
		merchantKey = res.MerchantKey
		category = res.PrimaryCategory
		displayName = res.DisplayName
	} else {
		// The mention may itself be a spending category.
		category = categoryFromText(intent.MerchantText)
		if category == "" {
			return models.Envelope{
				ResponseText: fmt.Sprintf(
					"I couldn't identify %q. Which store is it, or which category does it fall under (%s)?",
					strings.TrimSpace(intent.MerchantText), strings.Join(models.Categories, ", ")),
				Source:        models.SourcePattern,
				Confidence:    0.4,
				QueryType:     models.QueryBestCard,
				APICallsSaved: 1,
			}
		}
		displayName = category + " spends"
		source = models.SourceCatalog
	}

	ranked := p.rankCards(snap, userCards, merchantKey, category)
	if len(ranked) == 0 {
		return models.Envelope{
			ResponseText:  msgNoCards,
			Source:        models.SourcePattern,
			Confidence:    1.0,
			QueryType:     models.QueryBestCard,
			APICallsSaved: 1,
		}
	}

	top := ranked[0]
	return models.Envelope{
		ResponseText: fmt.Sprintf("Use your %s %s for %s: %s.",
			top.card.Bank, top.card.Name, displayName, top.result.Reason),
		Source:        source,
		Confidence:    1.0,
		QueryType:     models.QueryBestCard,
		APICallsSaved: 1,
		Metadata: map[string]any{
			"card_id":        top.card.ID,
			"effective_rate": top.result.EffectiveRate,
			"rule_source":    top.result.RuleSource,
			"merchant_key":   merchantKey,
			"category":       category,
		},
	}
}

// rankCards evaluates each of the user's active cards at amount 1
// (rate-only) and orders them by the documented tie-breaks: effective
// rate desc, annual fee asc, tier desc, name asc. Cards above 90%
// utilization are demoted one step afterwards.
func (p *Pipeline) rankCards(snap *catalog.Snapshot, userCards []models.UserCard, merchantKey, category string) []rankedCard {
	var ranked []rankedCard
	for _, uc := range userCards {
		card, ok := snap.Card(uc.CatalogCardID)
		if !ok || !card.IsActive {
			continue
		}

		req := reward.Request{
			Card:          card,
			Category:      category,
			RateOverrides: uc.RateOverrides,
			Amount:        1,
		}
		if merchantKey != "" {
			if rule, ok := snap.MerchantRule(card.ID, merchantKey); ok {
				req.MerchantRule = &rule
			}
		}
		if category != "" {
			if rule, ok := snap.CategoryRule(card.ID, category); ok {
				req.CategoryRule = &rule
			}
		}

		ranked = append(ranked, rankedCard{userCard: uc, card: card, result: reward.Evaluate(req)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.result.EffectiveRate != b.result.EffectiveRate {
			return a.result.EffectiveRate > b.result.EffectiveRate
		}
		if a.card.AnnualFee != b.card.AnnualFee {
			return a.card.AnnualFee < b.card.AnnualFee
		}
		if models.TierRank(a.card.Tier) != models.TierRank(b.card.Tier) {
			return models.TierRank(a.card.Tier) > models.TierRank(b.card.Tier)
		}
		return a.card.Name < b.card.Name
	})

	// Utilization guard: a single pass moves each overextended card
	// down exactly one step.
	for i := 0; i+1 < len(ranked); i++ {
		if ranked[i].userCard.Utilization() > 0.9 && ranked[i+1].userCard.Utilization() <= 0.9 {
			ranked[i], ranked[i+1] = ranked[i+1], ranked[i]
		}
	}

	return ranked
}

func (p *Pipeline) handleListCards(ctx context.Context, snap *catalog.Snapshot, userID string) models.Envelope {
	userCards, err := p.db.GetUserCards(ctx, userID)
	if err != nil {
		log.Printf("ERROR: failed to load user cards: %v", err)
		return errorEnvelope(msgRetry)
	}

	type entry struct {
		uc   models.UserCard
		card models.CatalogCard
	}
	var entries []entry
	for _, uc := range userCards {
		card, ok := snap.Card(uc.CatalogCardID)
		if !ok {
			continue
		}
		entries = append(entries, entry{uc: uc, card: card})
	}

	if len(entries) == 0 {
		return models.Envelope{
			ResponseText:  msgNoCards,
			Source:        models.SourcePattern,
			Confidence:    1.0,
			QueryType:     models.QueryListCards,
			APICallsSaved: 1,
		}
	}

	// Deterministic ordering: primary first, then name asc.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].uc.IsPrimary != entries[j].uc.IsPrimary {
			return entries[i].uc.IsPrimary
		}
		return entries[i].card.Name < entries[j].card.Name
	})

	var b strings.Builder
	b.WriteString("Your cards:")
	for i, e := range entries {
		fmt.Fprintf(&b, "\n%d. %s %s (%s)", i+1, e.card.Bank, e.card.Name, e.card.Tier)
		if e.uc.IsPrimary {
			b.WriteString(" — primary")
		}
	}

	return models.Envelope{
		ResponseText:  b.String(),
		Source:        models.SourcePattern,
		Confidence:    1.0,
		QueryType:     models.QueryListCards,
		APICallsSaved: 1,
	}
}

func (p *Pipeline) handleCompare(snap *catalog.Snapshot, intent classify.Intent) models.Envelope {
	var cards []models.CatalogCard
	for _, name := range intent.CardNames {
		for _, card := range snap.Cards() {
			if strings.EqualFold(card.Name, name) {
				cards = append(cards, card)
				break
			}
		}
	}
	if len(cards) < 2 {
		return errorEnvelope(msgRetry)
	}
	a, b := cards[0], cards[1]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s vs %s %s:", a.Bank, a.Name, b.Bank, b.Name)
	fmt.Fprintf(&sb, "\nAnnual fee: %.0f vs %.0f", a.AnnualFee, b.AnnualFee)
	for _, cat := range models.Categories {
		ra := a.BaseRates.ForCategory(cat)
		rb := b.BaseRates.ForCategory(cat)
		fmt.Fprintf(&sb, "\n%s: %.4g%% vs %.4g%%", cat, ra, rb)
	}

	// Category rules that differ between the two cards.
	for _, cat := range models.Categories {
		ruleA, okA := snap.CategoryRule(a.ID, cat)
		ruleB, okB := snap.CategoryRule(b.ID, cat)
		switch {
		case okA && !okB:
			fmt.Fprintf(&sb, "\nOnly %s has a %s rule: %.4g%% %s", a.Name, cat, ruleA.Rate, ruleA.RewardKind)
		case okB && !okA:
			fmt.Fprintf(&sb, "\nOnly %s has a %s rule: %.4g%% %s", b.Name, cat, ruleB.Rate, ruleB.RewardKind)
		case okA && okB && ruleA.Rate != ruleB.Rate:
			fmt.Fprintf(&sb, "\n%s rule: %.4g%% vs %.4g%%", cat, ruleA.Rate, ruleB.Rate)
		}
	}

	return models.Envelope{
		ResponseText:  sb.String(),
		Source:        models.SourceCatalog,
		Confidence:    1.0,
		QueryType:     models.QueryCompare,
		APICallsSaved: 1,
		Metadata:      map[string]any{"card_ids": []string{a.ID, b.ID}},
	}
}

func (p *Pipeline) handleLLM(ctx context.Context, snap *catalog.Snapshot, userID, query string) models.Envelope {
	if p.gateway == nil {
		return errorEnvelope(msgRetry)
	}

	pack := llm.ContextPack{}
	if userCards, err := p.db.GetUserCards(ctx, userID); err == nil {
		for _, uc := range userCards {
			if card, ok := snap.Card(uc.CatalogCardID); ok {
				pack.Cards = append(pack.Cards, llm.CardSummary{
					Bank: card.Bank, Name: card.Name, Tier: card.Tier,
				})
			}
		}
	}
	if res, ok := p.resolver.Resolve(query); ok {
		pack.Merchant = res.DisplayName
		pack.Category = res.PrimaryCategory
	}

	completion, err := p.gateway.Complete(ctx, userID, query, pack)
	if err != nil {
		if errors.Is(err, llm.ErrQuotaExceeded) {
			env := errorEnvelope("You've asked a lot in the last minute. Please try again shortly.")
			env.Metadata = map[string]any{"reason": "quota"}
			return env
		}
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return errorEnvelope(msgRetry)
		}
		log.Printf("ERROR: llm completion failed: %v", err)
		return errorEnvelope(msgRetry)
	}

	p.metrics.ObserveLLMCall(completion.LatencyS, completion.TokensUsed)

	return models.Envelope{
		ResponseText: completion.Text,
		Source:       models.SourceLLM,
		Confidence:   0.5,
		QueryType:    models.QueryUnknown,
		Metadata: map[string]any{
			"model":       completion.Model,
			"tokens_used": completion.TokensUsed,
		},
	}
}

func (p *Pipeline) cacheGet(ctx context.Context, fingerprint string) (models.Envelope, bool) {
	if p.cache == nil {
		return models.Envelope{}, false
	}

	var env models.Envelope
	err := cache.GetJSON(ctx, p.cache, fingerprint, &env)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Printf("WARN: cache read failed: %v", err)
		}
		return models.Envelope{}, false
	}

	env.Source = models.SourceCache
	env.APICallsSaved = 1
	return env, true
}

func (p *Pipeline) cachePut(ctx context.Context, fingerprint string, env models.Envelope, ttl time.Duration) {
	if p.cache == nil || ctx.Err() != nil {
		return
	}
	if err := cache.SetJSON(ctx, p.cache, fingerprint, env, ttl); err != nil {
		log.Printf("WARN: cache write failed: %v", err)
	}
}

// categoryFromText reports whether the mention names a known spending
// category.
func categoryFromText(text string) string {
	norm := merchant.Normalize(text)
	for _, cat := range models.Categories {
		if norm == cat || strings.HasPrefix(norm, cat+" ") || strings.HasSuffix(norm, " "+cat) {
			return cat
		}
	}
	return ""
}

func errorEnvelope(message string) models.Envelope {
	return models.Envelope{
		ResponseText: message,
		Source:       models.SourceError,
		Confidence:   0,
	}
}
