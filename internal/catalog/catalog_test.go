package catalog

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"card-advisor-api/internal/database"
	"card-advisor-api/internal/models"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	dbPath := "./test_" + uuid.New().String() + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db, func() {
		db.Close()
		os.Remove(dbPath)
	}
}

func seedCard(t *testing.T, db *database.DB, name string, active bool) string {
	id := uuid.New().String()
	card := models.CatalogCard{
		ID: id, Bank: "HDFC", Name: name, Tier: models.TierBasic,
		Network: "visa", BaseRates: models.BaseRates{General: 1.0}, IsActive: active,
	}
	rules := []models.CategoryRule{{
		ID: uuid.New().String(), CardID: id, Category: models.CategoryDining,
		Rate: 3.0, CapPeriod: models.CapPeriodNone,
		RewardKind: models.RewardCashback, Active: active,
	}}
	if err := db.UpsertCatalogCard(context.Background(), card, rules, nil); err != nil {
		t.Fatalf("Failed to seed card: %v", err)
	}
	return id
}

func TestSnapshot_LoadsCardsAndRules(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := seedCard(t, db, "Millennia", true)
	store := NewStore(db)

	snap, err := store.Snapshot(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	card, ok := snap.Card(id)
	if !ok || card.Name != "Millennia" {
		t.Fatalf("Expected seeded card in snapshot, got %+v (ok=%v)", card, ok)
	}
	if _, ok := snap.CategoryRule(id, models.CategoryDining); !ok {
		t.Error("Expected the dining rule in the snapshot")
	}
}

func TestSnapshot_InactiveRulesExcluded(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := seedCard(t, db, "Dormant", false)
	store := NewStore(db)

	snap, err := store.Snapshot(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if _, ok := snap.CategoryRule(id, models.CategoryDining); ok {
		t.Error("Inactive rules must not be in the snapshot")
	}
}

func TestSnapshot_ReusedUntilVersionBump(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedCard(t, db, "First", true)
	store := NewStore(db)
	ctx := context.Background()

	snap, err := store.Snapshot(ctx, "v1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Cards()) != 1 {
		t.Fatalf("Expected 1 card, got %d", len(snap.Cards()))
	}

	// New data lands, but the tag is unchanged: the snapshot is stable.
	seedCard(t, db, "Second", true)
	snap, err = store.Snapshot(ctx, "v1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Cards()) != 1 {
		t.Errorf("Snapshot must not pick up new rows without a tag bump, got %d cards", len(snap.Cards()))
	}

	// Bumping the tag triggers a reload.
	snap, err = store.Snapshot(ctx, "v2")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Cards()) != 2 {
		t.Errorf("Expected reload on tag bump, got %d cards", len(snap.Cards()))
	}
}

func TestSnapshot_Merchants(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := db.UpsertMerchant(context.Background(), models.Merchant{
		MerchantKey: "amazon", DisplayName: "Amazon",
		PrimaryCategory: models.CategoryOnline, Active: true,
	})
	if err != nil {
		t.Fatalf("Failed to seed merchant: %v", err)
	}

	snap, err := NewStore(db).Snapshot(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Merchants()) != 1 {
		t.Errorf("Expected 1 merchant, got %d", len(snap.Merchants()))
	}
}
