package catalog

import (
	"context"
	"fmt"
	"sync"

	"card-advisor-api/internal/database"
	"card-advisor-api/internal/models"
)

// Snapshot is an immutable view of the card catalog at one version tag.
// Consumers read it without locking; refreshes swap the whole value.
type Snapshot struct {
	VersionTag string

	cards         map[string]models.CatalogCard
	categoryRules map[string]map[string]models.CategoryRule // card_id -> category
	merchantRules map[string]map[string]models.MerchantRule // card_id -> merchant_key
	merchants     []models.Merchant
}

// Card returns the catalog card with the given id.
func (s *Snapshot) Card(id string) (models.CatalogCard, bool) {
	card, ok := s.cards[id]
	return card, ok
}

// Cards returns every card in the snapshot.
func (s *Snapshot) Cards() []models.CatalogCard {
	out := make([]models.CatalogCard, 0, len(s.cards))
	for _, card := range s.cards {
		out = append(out, card)
	}
	return out
}

// CategoryRule returns the active category rule for (card, category).
func (s *Snapshot) CategoryRule(cardID, category string) (models.CategoryRule, bool) {
	rule, ok := s.categoryRules[cardID][category]
	return rule, ok
}

// MerchantRule returns the active merchant rule for (card, merchant).
func (s *Snapshot) MerchantRule(cardID, merchantKey string) (models.MerchantRule, bool) {
	rule, ok := s.merchantRules[cardID][merchantKey]
	return rule, ok
}

// CategoryRules returns all active category rules for a card.
func (s *Snapshot) CategoryRules(cardID string) []models.CategoryRule {
	rules := make([]models.CategoryRule, 0, len(s.categoryRules[cardID]))
	for _, rule := range s.categoryRules[cardID] {
		rules = append(rules, rule)
	}
	return rules
}

// Merchants returns the canonical merchant table.
func (s *Snapshot) Merchants() []models.Merchant {
	return s.merchants
}

// Store serves catalog snapshots. The snapshot is loaded once and
// reloaded only when the requested version tag differs from the loaded
// one (bumping the tag is how master-data changes become visible).
type Store struct {
	db *database.DB

	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore creates a snapshot store over the database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Snapshot returns the catalog snapshot for the given version tag,
// reloading from the database when the tag has changed.
func (s *Store) Snapshot(ctx context.Context, versionTag string) (*Snapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap != nil && snap.VersionTag == versionTag {
		return snap, nil
	}

	return s.reload(ctx, versionTag)
}

func (s *Store) reload(ctx context.Context, versionTag string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have reloaded while we waited for the lock.
	if s.snap != nil && s.snap.VersionTag == versionTag {
		return s.snap, nil
	}

	cards, err := s.db.GetCatalogCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog cards: %w", err)
	}

	merchants, err := s.db.GetMerchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load merchants: %w", err)
	}

	snap := &Snapshot{
		VersionTag:    versionTag,
		cards:         make(map[string]models.CatalogCard, len(cards)),
		categoryRules: make(map[string]map[string]models.CategoryRule),
		merchantRules: make(map[string]map[string]models.MerchantRule),
		merchants:     merchants,
	}

	for _, card := range cards {
		snap.cards[card.ID] = card

		categoryRules, err := s.db.GetCategoryRules(ctx, card.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load category rules for %s: %w", card.ID, err)
		}
		for _, rule := range categoryRules {
			if !rule.Active {
				continue
			}
			if snap.categoryRules[card.ID] == nil {
				snap.categoryRules[card.ID] = make(map[string]models.CategoryRule)
			}
			snap.categoryRules[card.ID][rule.Category] = rule
		}

		merchantRules, err := s.db.GetMerchantRules(ctx, card.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load merchant rules for %s: %w", card.ID, err)
		}
		for _, rule := range merchantRules {
			if !rule.Active {
				continue
			}
			if snap.merchantRules[card.ID] == nil {
				snap.merchantRules[card.ID] = make(map[string]models.MerchantRule)
			}
			snap.merchantRules[card.ID][rule.MerchantKey] = rule
		}
	}

	s.snap = snap
	return snap, nil
}
