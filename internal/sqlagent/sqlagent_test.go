package sqlagent

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"card-advisor-api/internal/database"
	"card-advisor-api/internal/llm"
	"card-advisor-api/internal/models"
)

type fakeClient struct {
	response string
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	return llm.Completion{Text: f.response, Model: "fake"}, nil
}

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

func TestValidateQuery_AllowsSelect(t *testing.T) {
	query, err := ValidateQuery("SELECT name, annual_fee FROM catalog_cards WHERE is_active = 1")
	if err != nil {
		t.Fatalf("Expected query to pass, got %v", err)
	}
	if !strings.Contains(query, "LIMIT 100") {
		t.Errorf("Expected a row limit to be applied, got: %s", query)
	}
}

func TestValidateQuery_KeepsExistingLimit(t *testing.T) {
	query, err := ValidateQuery("SELECT name FROM catalog_cards LIMIT 5")
	if err != nil {
		t.Fatalf("Expected query to pass, got %v", err)
	}
	if strings.Count(query, "LIMIT") != 1 {
		t.Errorf("Expected the original limit kept, got: %s", query)
	}
}

func TestValidateQuery_RejectsNonSelect(t *testing.T) {
	cases := []string{
		"UPDATE catalog_cards SET annual_fee = 0",
		"DELETE FROM merchants",
		"DROP TABLE catalog_cards",
		"SELECT 1; DROP TABLE catalog_cards",
		"SELECT name FROM catalog_cards; SELECT 1",
		"PRAGMA table_info(catalog_cards)",
		"",
	}
	for _, q := range cases {
		if _, err := ValidateQuery(q); err == nil {
			t.Errorf("Expected rejection for %q", q)
		}
	}
}

func TestValidateQuery_RejectsForbiddenTables(t *testing.T) {
	cases := []string{
		"SELECT * FROM user_cards",
		"SELECT * FROM conversation_log",
		"SELECT c.name FROM catalog_cards c JOIN user_cards u ON u.catalog_card_id = c.id",
	}
	for _, q := range cases {
		if _, err := ValidateQuery(q); err == nil {
			t.Errorf("Expected rejection for %q", q)
		}
	}
}

func TestValidateQuery_TrailingSemicolonOK(t *testing.T) {
	if _, err := ValidateQuery("SELECT name FROM merchants;"); err != nil {
		t.Errorf("Trailing semicolon should be tolerated: %v", err)
	}
}

func TestExtractSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT 1": "SELECT 1",
		"```sql\nSELECT name FROM merchants\n```":      "SELECT name FROM merchants",
		"Here you go:\n```\nSELECT 1\n```\nEnjoy!":     "SELECT 1",
		"  \n```sql\nSELECT a FROM b WHERE c = 1\n```": "SELECT a FROM b WHERE c = 1",
	}
	for in, want := range cases {
		if got := ExtractSQL(in); got != want {
			t.Errorf("ExtractSQL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAsk_EndToEnd(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	card := models.CatalogCard{
		ID:   uuid.New().String(),
		Bank: "HDFC", Name: "Millennia", Tier: models.TierPremium,
		Network: "visa", AnnualFee: 1000,
		BaseRates: models.BaseRates{General: 1.0},
		IsActive:  true,
	}
	if err := db.UpsertCatalogCard(context.Background(), card, nil, nil); err != nil {
		t.Fatalf("Failed to seed card: %v", err)
	}

	agent := New(db.Conn(), &fakeClient{
		response: "```sql\nSELECT name, annual_fee FROM catalog_cards WHERE is_active = 1\n```",
	})

	resp, err := agent.Ask(context.Background(), "which active cards are there and what do they cost?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(resp.Rows))
	}
	if resp.Rows[0]["name"] != "Millennia" {
		t.Errorf("Expected name Millennia, got %v", resp.Rows[0]["name"])
	}
	if len(resp.Columns) != 2 {
		t.Errorf("Expected 2 columns, got %v", resp.Columns)
	}
	if !strings.Contains(resp.SQL, "LIMIT") {
		t.Errorf("Expected executed SQL to carry a limit, got: %s", resp.SQL)
	}
}

func TestAsk_RejectsMutation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	agent := New(db.Conn(), &fakeClient{response: "DELETE FROM catalog_cards"})

	if _, err := agent.Ask(context.Background(), "clean everything up"); err == nil {
		t.Fatal("Expected mutation to be rejected")
	}
}
