package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"card-advisor-api/internal/database"
	"card-advisor-api/internal/events"
	"card-advisor-api/internal/models"
	"card-advisor-api/internal/validation"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = database.ErrNotFound

// Service provides business logic for the card advisory API.
type Service struct {
	db     *database.DB
	events *events.Manager
}

// NewService creates a new service instance.
func NewService(db *database.DB, ev *events.Manager) *Service {
	return &Service{db: db, events: ev}
}

// UpsertCatalogCard creates or updates a catalog card with its rules
// (admin/seed flow). Rule card_ids are forced to the card's id and
// missing rule ids are generated.
func (s *Service) UpsertCatalogCard(ctx context.Context, req models.UpsertCatalogCardRequest) error {
	if err := validation.ValidateCatalogCard(req.Card); err != nil {
		return err
	}

	seenCategories := make(map[string]bool)
	for i := range req.CategoryRules {
		rule := &req.CategoryRules[i]
		rule.CardID = req.Card.ID
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		if err := validation.ValidateCategoryRule(*rule); err != nil {
			return err
		}
		if rule.Active && seenCategories[rule.Category] {
			return &validation.ValidationError{
				Field:   "category_rules",
				Message: fmt.Sprintf("duplicate active rule for category %s", rule.Category),
			}
		}
		if rule.Active {
			seenCategories[rule.Category] = true
		}
	}

	seenMerchants := make(map[string]bool)
	for i := range req.MerchantRules {
		rule := &req.MerchantRules[i]
		rule.CardID = req.Card.ID
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		if err := validation.ValidateMerchantRule(*rule); err != nil {
			return err
		}
		if rule.Active && seenMerchants[rule.MerchantKey] {
			return &validation.ValidationError{
				Field:   "merchant_rules",
				Message: fmt.Sprintf("duplicate active rule for merchant %s", rule.MerchantKey),
			}
		}
		if rule.Active {
			seenMerchants[rule.MerchantKey] = true
		}
	}

	if err := s.db.UpsertCatalogCard(ctx, req.Card, req.CategoryRules, req.MerchantRules); err != nil {
		return err
	}

	s.events.PublishCatalogUpserted(ctx, req.Card)
	return nil
}

// UpsertMerchant creates or updates a canonical merchant (admin/seed flow).
func (s *Service) UpsertMerchant(ctx context.Context, m models.Merchant) error {
	if err := validation.ValidateMerchant(m); err != nil {
		return err
	}
	return s.db.UpsertMerchant(ctx, m)
}

// GetCatalogCards returns the card catalog.
func (s *Service) GetCatalogCards(ctx context.Context) ([]models.CatalogCard, error) {
	return s.db.GetCatalogCards(ctx)
}

// GetCardDetail returns a card with its reward rules.
func (s *Service) GetCardDetail(ctx context.Context, cardID string) (models.CardDetailResponse, error) {
	if err := validation.ValidateUUID(cardID, "card_id"); err != nil {
		return models.CardDetailResponse{}, err
	}

	card, err := s.db.GetCatalogCard(ctx, cardID)
	if err != nil {
		return models.CardDetailResponse{}, err
	}

	categoryRules, err := s.db.GetCategoryRules(ctx, cardID)
	if err != nil {
		return models.CardDetailResponse{}, fmt.Errorf("failed to get category rules: %w", err)
	}

	merchantRules, err := s.db.GetMerchantRules(ctx, cardID)
	if err != nil {
		return models.CardDetailResponse{}, fmt.Errorf("failed to get merchant rules: %w", err)
	}

	if categoryRules == nil {
		categoryRules = []models.CategoryRule{}
	}
	if merchantRules == nil {
		merchantRules = []models.MerchantRule{}
	}

	return models.CardDetailResponse{
		Card:          card,
		CategoryRules: categoryRules,
		MerchantRules: merchantRules,
	}, nil
}

// AddUserCard registers a catalog card as owned by the user. The
// referenced catalog card must exist and be active.
func (s *Service) AddUserCard(ctx context.Context, userID string, req models.AddUserCardRequest) (models.UserCard, error) {
	if err := validation.ValidateAddUserCard(req); err != nil {
		return models.UserCard{}, err
	}

	card, err := s.db.GetCatalogCard(ctx, req.CatalogCardID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.UserCard{}, &validation.ValidationError{
				Field: "catalog_card_id", Message: "no such catalog card",
			}
		}
		return models.UserCard{}, err
	}
	if !card.IsActive {
		return models.UserCard{}, &validation.ValidationError{
			Field: "catalog_card_id", Message: "catalog card is not active",
		}
	}

	uc := models.UserCard{
		ID:             uuid.New().String(),
		UserID:         userID,
		CatalogCardID:  req.CatalogCardID,
		RateOverrides:  req.RateOverrides,
		CurrentBalance: req.CurrentBalance,
		CreditLimit:    req.CreditLimit,
		IsPrimary:      req.IsPrimary,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.db.AddUserCard(ctx, uc); err != nil {
		return models.UserCard{}, err
	}

	s.events.PublishCardAdded(ctx, uc)
	return uc, nil
}

// GetUserCards returns the user's registered cards.
func (s *Service) GetUserCards(ctx context.Context, userID string) ([]models.UserCard, error) {
	return s.db.GetUserCards(ctx, userID)
}

// DeleteUserCard removes a card from the user's registry.
func (s *Service) DeleteUserCard(ctx context.Context, userID, userCardID string) error {
	if err := validation.ValidateUUID(userCardID, "id"); err != nil {
		return err
	}
	return s.db.DeleteUserCard(ctx, userID, userCardID)
}

// CreateReview posts a review of a catalog card.
func (s *Service) CreateReview(ctx context.Context, userID string, review models.Review) (models.Review, error) {
	review.ID = uuid.New().String()
	review.UserID = userID
	review.CreatedAt = time.Now().UTC()

	if err := validation.ValidateReview(review); err != nil {
		return models.Review{}, err
	}

	if _, err := s.db.GetCatalogCard(ctx, review.CardID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Review{}, &validation.ValidationError{
				Field: "card_id", Message: "no such catalog card",
			}
		}
		return models.Review{}, err
	}

	if err := s.db.InsertReview(ctx, review); err != nil {
		return models.Review{}, err
	}

	s.events.PublishReviewCreated(ctx, review)
	return review, nil
}

// GetReviews returns the reviews of a card.
func (s *Service) GetReviews(ctx context.Context, cardID string) ([]models.Review, error) {
	if err := validation.ValidateUUID(cardID, "card_id"); err != nil {
		return nil, err
	}
	return s.db.GetReviews(ctx, cardID)
}

// CreateThread opens a discussion thread.
func (s *Service) CreateThread(ctx context.Context, userID string, thread models.Thread) (models.Thread, error) {
	thread.ID = uuid.New().String()
	thread.UserID = userID
	thread.CreatedAt = time.Now().UTC()

	if err := validation.ValidateThread(thread); err != nil {
		return models.Thread{}, err
	}

	if err := s.db.InsertThread(ctx, thread); err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}

// GetThreads returns recent discussion threads.
func (s *Service) GetThreads(ctx context.Context) ([]models.Thread, error) {
	return s.db.GetThreads(ctx)
}

// CreateThreadReply posts a reply on a thread.
func (s *Service) CreateThreadReply(ctx context.Context, userID, threadID, body string) (models.ThreadReply, error) {
	if err := validation.ValidateUUID(threadID, "thread_id"); err != nil {
		return models.ThreadReply{}, err
	}
	if body == "" {
		return models.ThreadReply{}, &validation.ValidationError{Field: "body", Message: "is required"}
	}

	reply := models.ThreadReply{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.InsertThreadReply(ctx, reply); err != nil {
		return models.ThreadReply{}, err
	}
	return reply, nil
}

// GetThreadReplies returns the replies on a thread.
func (s *Service) GetThreadReplies(ctx context.Context, threadID string) ([]models.ThreadReply, error) {
	if err := validation.ValidateUUID(threadID, "thread_id"); err != nil {
		return nil, err
	}
	return s.db.GetThreadReplies(ctx, threadID)
}
