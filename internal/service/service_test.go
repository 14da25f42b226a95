package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"card-advisor-api/internal/database"
	"card-advisor-api/internal/events"
	"card-advisor-api/internal/models"
	"card-advisor-api/internal/validation"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	dbPath := "./test_" + uuid.New().String() + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

func newTestService(db *database.DB) *Service {
	return NewService(db, events.NewManager(false))
}

func validCard() models.CatalogCard {
	return models.CatalogCard{
		ID:      uuid.New().String(),
		Bank:    "HDFC",
		Name:    "Millennia",
		Tier:    models.TierPremium,
		Network: "visa",
		BaseRates: models.BaseRates{
			General: 1.0, Dining: 2.0, Online: 2.5,
		},
		IsActive: true,
	}
}

func TestUpsertCatalogCard_Success(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	card := validCard()
	req := models.UpsertCatalogCardRequest{
		Card: card,
		CategoryRules: []models.CategoryRule{{
			Category:   models.CategoryDining,
			Rate:       5.0,
			CapAmount:  500,
			CapPeriod:  models.CapPeriodMonthly,
			RewardKind: models.RewardCashback,
			Active:     true,
		}},
		MerchantRules: []models.MerchantRule{{
			MerchantKey: "amazon",
			Rate:        5.0,
			CapPeriod:   models.CapPeriodNone,
			RewardKind:  models.RewardCashback,
			Active:      true,
		}},
	}

	if err := svc.UpsertCatalogCard(ctx, req); err != nil {
		t.Fatalf("UpsertCatalogCard failed: %v", err)
	}

	detail, err := svc.GetCardDetail(ctx, card.ID)
	if err != nil {
		t.Fatalf("GetCardDetail failed: %v", err)
	}
	if detail.Card.Name != "Millennia" {
		t.Errorf("Expected card name Millennia, got %s", detail.Card.Name)
	}
	if len(detail.CategoryRules) != 1 {
		t.Errorf("Expected 1 category rule, got %d", len(detail.CategoryRules))
	}
	if len(detail.MerchantRules) != 1 {
		t.Errorf("Expected 1 merchant rule, got %d", len(detail.MerchantRules))
	}
	if detail.CategoryRules[0].CardID != card.ID {
		t.Error("Rule card_id should be forced to the card's id")
	}
	if detail.CategoryRules[0].ID == "" {
		t.Error("Missing rule ids should be generated")
	}
}

func TestUpsertCatalogCard_ReplacesRules(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	card := validCard()
	first := models.UpsertCatalogCardRequest{
		Card: card,
		CategoryRules: []models.CategoryRule{{
			Category: models.CategoryDining, Rate: 5.0,
			CapPeriod: models.CapPeriodNone, RewardKind: models.RewardCashback, Active: true,
		}},
	}
	if err := svc.UpsertCatalogCard(ctx, first); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	second := models.UpsertCatalogCardRequest{
		Card: card,
		CategoryRules: []models.CategoryRule{{
			Category: models.CategoryTravel, Rate: 3.0,
			CapPeriod: models.CapPeriodNone, RewardKind: models.RewardMiles, Active: true,
		}},
	}
	if err := svc.UpsertCatalogCard(ctx, second); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	detail, err := svc.GetCardDetail(ctx, card.ID)
	if err != nil {
		t.Fatalf("GetCardDetail failed: %v", err)
	}
	if len(detail.CategoryRules) != 1 || detail.CategoryRules[0].Category != models.CategoryTravel {
		t.Errorf("Expected rules replaced on upsert, got %+v", detail.CategoryRules)
	}
}

func TestUpsertCatalogCard_DuplicateActiveCategoryRule(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)

	req := models.UpsertCatalogCardRequest{
		Card: validCard(),
		CategoryRules: []models.CategoryRule{
			{Category: models.CategoryDining, Rate: 5.0, CapPeriod: models.CapPeriodNone, RewardKind: models.RewardCashback, Active: true},
			{Category: models.CategoryDining, Rate: 3.0, CapPeriod: models.CapPeriodNone, RewardKind: models.RewardCashback, Active: true},
		},
	}

	err := svc.UpsertCatalogCard(context.Background(), req)
	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestUpsertCatalogCard_InvalidCard(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)

	card := validCard()
	card.Tier = "platinum-ultra"

	err := svc.UpsertCatalogCard(context.Background(), models.UpsertCatalogCardRequest{Card: card})
	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected validation error for bad tier, got %v", err)
	}
}

func TestGetCardDetail_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)

	_, err := svc.GetCardDetail(context.Background(), uuid.New().String())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAddUserCard_Success(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	card := validCard()
	if err := svc.UpsertCatalogCard(ctx, models.UpsertCatalogCardRequest{Card: card}); err != nil {
		t.Fatalf("Failed to seed card: %v", err)
	}

	userID := uuid.New().String()
	uc, err := svc.AddUserCard(ctx, userID, models.AddUserCardRequest{
		CatalogCardID:  card.ID,
		RateOverrides:  map[string]float64{models.CategoryDining: 10.0},
		CurrentBalance: 5000,
		CreditLimit:    100000,
		IsPrimary:      true,
	})
	if err != nil {
		t.Fatalf("AddUserCard failed: %v", err)
	}
	if uc.ID == "" {
		t.Error("Expected a generated user card id")
	}
	if uc.UserID != userID {
		t.Errorf("Expected user_id %s, got %s", userID, uc.UserID)
	}

	cards, err := svc.GetUserCards(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserCards failed: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("Expected 1 user card, got %d", len(cards))
	}
	if cards[0].RateOverrides[models.CategoryDining] != 10.0 {
		t.Errorf("Expected dining override 10.0, got %v", cards[0].RateOverrides)
	}
}

func TestAddUserCard_UnknownCatalogCard(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)

	_, err := svc.AddUserCard(context.Background(), uuid.New().String(), models.AddUserCardRequest{
		CatalogCardID: uuid.New().String(),
	})
	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestAddUserCard_InactiveCatalogCard(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	card := validCard()
	card.IsActive = false
	if err := svc.UpsertCatalogCard(ctx, models.UpsertCatalogCardRequest{Card: card}); err != nil {
		t.Fatalf("Failed to seed card: %v", err)
	}

	_, err := svc.AddUserCard(ctx, uuid.New().String(), models.AddUserCardRequest{CatalogCardID: card.ID})
	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected validation error for inactive card, got %v", err)
	}
}

func TestDeleteUserCard(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	card := validCard()
	if err := svc.UpsertCatalogCard(ctx, models.UpsertCatalogCardRequest{Card: card}); err != nil {
		t.Fatalf("Failed to seed card: %v", err)
	}

	userID := uuid.New().String()
	uc, err := svc.AddUserCard(ctx, userID, models.AddUserCardRequest{CatalogCardID: card.ID})
	if err != nil {
		t.Fatalf("AddUserCard failed: %v", err)
	}

	if err := svc.DeleteUserCard(ctx, userID, uc.ID); err != nil {
		t.Fatalf("DeleteUserCard failed: %v", err)
	}

	cards, _ := svc.GetUserCards(ctx, userID)
	if len(cards) != 0 {
		t.Errorf("Expected no cards after delete, got %d", len(cards))
	}

	if err := svc.DeleteUserCard(ctx, userID, uc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteUserCard_OtherUsersCard(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	card := validCard()
	if err := svc.UpsertCatalogCard(ctx, models.UpsertCatalogCardRequest{Card: card}); err != nil {
		t.Fatalf("Failed to seed card: %v", err)
	}

	owner := uuid.New().String()
	uc, err := svc.AddUserCard(ctx, owner, models.AddUserCardRequest{CatalogCardID: card.ID})
	if err != nil {
		t.Fatalf("AddUserCard failed: %v", err)
	}

	if err := svc.DeleteUserCard(ctx, uuid.New().String(), uc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deleting another user's card should be ErrNotFound, got %v", err)
	}

	cards, _ := svc.GetUserCards(ctx, owner)
	if len(cards) != 1 {
		t.Error("Owner's card must survive the foreign delete attempt")
	}
}

func TestCreateReview(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	card := validCard()
	if err := svc.UpsertCatalogCard(ctx, models.UpsertCatalogCardRequest{Card: card}); err != nil {
		t.Fatalf("Failed to seed card: %v", err)
	}

	review, err := svc.CreateReview(ctx, uuid.New().String(), models.Review{
		CardID: card.ID,
		Rating: 4,
		Title:  "Solid daily driver",
		Body:   "Good online rates, fee is fair.",
	})
	if err != nil {
		t.Fatalf("CreateReview failed: %v", err)
	}
	if review.ID == "" {
		t.Error("Expected a generated review id")
	}

	reviews, err := svc.GetReviews(ctx, card.ID)
	if err != nil {
		t.Fatalf("GetReviews failed: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Rating != 4 {
		t.Errorf("Unexpected reviews: %+v", reviews)
	}
}

func TestCreateReview_InvalidRating(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)

	_, err := svc.CreateReview(context.Background(), uuid.New().String(), models.Review{
		CardID: uuid.New().String(),
		Rating: 6,
		Body:   "too good",
	})
	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestThreadsAndReplies(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	userID := uuid.New().String()
	thread, err := svc.CreateThread(ctx, userID, models.Thread{
		Title: "Fuel surcharge waivers",
		Body:  "Which cards waive fuel surcharges entirely?",
	})
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	reply, err := svc.CreateThreadReply(ctx, uuid.New().String(), thread.ID, "Most basic tier cards do, up to a monthly cap.")
	if err != nil {
		t.Fatalf("CreateThreadReply failed: %v", err)
	}
	if reply.ThreadID != thread.ID {
		t.Errorf("Expected reply on thread %s, got %s", thread.ID, reply.ThreadID)
	}

	threads, err := svc.GetThreads(ctx)
	if err != nil {
		t.Fatalf("GetThreads failed: %v", err)
	}
	if len(threads) != 1 {
		t.Errorf("Expected 1 thread, got %d", len(threads))
	}

	replies, err := svc.GetThreadReplies(ctx, thread.ID)
	if err != nil {
		t.Fatalf("GetThreadReplies failed: %v", err)
	}
	if len(replies) != 1 {
		t.Errorf("Expected 1 reply, got %d", len(replies))
	}
}

func TestCreateThreadReply_UnknownThread(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)

	_, err := svc.CreateThreadReply(context.Background(), uuid.New().String(), uuid.New().String(), "hello")
	if err == nil {
		t.Fatal("Expected an error replying to a missing thread")
	}
}

func TestUpsertMerchant(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newTestService(db)
	ctx := context.Background()

	err := svc.UpsertMerchant(ctx, models.Merchant{
		MerchantKey:     "amazon",
		DisplayName:     "Amazon",
		PrimaryCategory: models.CategoryOnline,
		Aliases:         []string{"amzn", "amazon.in"},
		Active:          true,
	})
	if err != nil {
		t.Fatalf("UpsertMerchant failed: %v", err)
	}

	err = svc.UpsertMerchant(ctx, models.Merchant{
		MerchantKey:     "Bad Key!",
		DisplayName:     "Bad",
		PrimaryCategory: models.CategoryGeneral,
	})
	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected validation error for bad merchant key, got %v", err)
	}
}
