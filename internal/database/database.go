package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"card-advisor-api/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = fmt.Errorf("database: not found")

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying connection for read-only consumers
// (the NL-to-SQL agent executes validated SELECTs directly).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS catalog_cards (
			id TEXT PRIMARY KEY,
			bank TEXT NOT NULL,
			name TEXT NOT NULL,
			tier TEXT NOT NULL,
			network TEXT NOT NULL,
			joining_fee REAL NOT NULL,
			annual_fee REAL NOT NULL,
			rate_general REAL NOT NULL DEFAULT 0,
			rate_dining REAL NOT NULL DEFAULT 0,
			rate_groceries REAL NOT NULL DEFAULT 0,
			rate_travel REAL NOT NULL DEFAULT 0,
			rate_online REAL NOT NULL DEFAULT 0,
			rate_fuel REAL NOT NULL DEFAULT 0,
			rate_entertainment REAL NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS category_rules (
			id TEXT PRIMARY KEY,
			card_id TEXT NOT NULL REFERENCES catalog_cards(id),
			category TEXT NOT NULL,
			rate REAL NOT NULL,
			cap_amount REAL NOT NULL DEFAULT 0,
			cap_period TEXT NOT NULL DEFAULT 'none',
			reward_kind TEXT NOT NULL DEFAULT 'cashback',
			active INTEGER NOT NULL DEFAULT 1
		)`,
		// At most one active rule per (card, category).
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_category_rules_active
			ON category_rules(card_id, category) WHERE active = 1`,
		`CREATE TABLE IF NOT EXISTS merchant_rules (
			id TEXT PRIMARY KEY,
			card_id TEXT NOT NULL REFERENCES catalog_cards(id),
			merchant_key TEXT NOT NULL,
			rate REAL NOT NULL,
			cap_amount REAL NOT NULL DEFAULT 0,
			cap_period TEXT NOT NULL DEFAULT 'none',
			reward_kind TEXT NOT NULL DEFAULT 'cashback',
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_merchant_rules_active
			ON merchant_rules(card_id, merchant_key) WHERE active = 1`,
		`CREATE TABLE IF NOT EXISTS merchants (
			merchant_key TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			primary_category TEXT NOT NULL,
			aliases TEXT NOT NULL DEFAULT '[]',
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS user_cards (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			catalog_card_id TEXT NOT NULL REFERENCES catalog_cards(id),
			rate_overrides TEXT NOT NULL DEFAULT '{}',
			current_balance REAL NOT NULL DEFAULT 0,
			credit_limit REAL NOT NULL DEFAULT 0,
			is_primary INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_cards_user_id ON user_cards(user_id)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			card_id TEXT NOT NULL REFERENCES catalog_cards(id),
			user_id TEXT NOT NULL,
			rating INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_card_id ON reviews(card_id)`,
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS thread_replies (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL REFERENCES threads(id),
			user_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_thread_replies_thread_id ON thread_replies(thread_id)`,
		`CREATE TABLE IF NOT EXISTS conversation_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			conversation_id INTEGER NOT NULL DEFAULT 0,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_log_user_id ON conversation_log(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// UpsertCatalogCard creates or updates a catalog card together with its
// reward rules in a single transaction. Existing rules for the card are
// replaced.
func (db *DB) UpsertCatalogCard(ctx context.Context, card models.CatalogCard, categoryRules []models.CategoryRule, merchantRules []models.MerchantRule) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO catalog_cards (
		id, bank, name, tier, network, joining_fee, annual_fee,
		rate_general, rate_dining, rate_groceries, rate_travel,
		rate_online, rate_fuel, rate_entertainment, is_active, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		bank = excluded.bank,
		name = excluded.name,
		tier = excluded.tier,
		network = excluded.network,
		joining_fee = excluded.joining_fee,
		annual_fee = excluded.annual_fee,
		rate_general = excluded.rate_general,
		rate_dining = excluded.rate_dining,
		rate_groceries = excluded.rate_groceries,
		rate_travel = excluded.rate_travel,
		rate_online = excluded.rate_online,
		rate_fuel = excluded.rate_fuel,
		rate_entertainment = excluded.rate_entertainment,
		is_active = excluded.is_active,
		updated_at = excluded.updated_at`,
		card.ID, card.Bank, card.Name, card.Tier, card.Network,
		card.JoiningFee, card.AnnualFee,
		card.BaseRates.General, card.BaseRates.Dining, card.BaseRates.Groceries,
		card.BaseRates.Travel, card.BaseRates.Online, card.BaseRates.Fuel,
		card.BaseRates.Entertainment, card.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog card: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_rules WHERE card_id = ?`, card.ID); err != nil {
		return fmt.Errorf("failed to clear category rules: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM merchant_rules WHERE card_id = ?`, card.ID); err != nil {
		return fmt.Errorf("failed to clear merchant rules: %w", err)
	}

	crStmt, err := tx.PrepareContext(ctx, `INSERT INTO category_rules (
		id, card_id, category, rate, cap_amount, cap_period, reward_kind, active
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer crStmt.Close()

	for _, rule := range categoryRules {
		_, err := crStmt.ExecContext(ctx,
			rule.ID, rule.CardID, rule.Category, rule.Rate,
			rule.CapAmount, rule.CapPeriod, rule.RewardKind, rule.Active,
		)
		if err != nil {
			return fmt.Errorf("failed to insert category rule %s: %w", rule.ID, err)
		}
	}

	mrStmt, err := tx.PrepareContext(ctx, `INSERT INTO merchant_rules (
		id, card_id, merchant_key, rate, cap_amount, cap_period, reward_kind, active
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer mrStmt.Close()

	for _, rule := range merchantRules {
		_, err := mrStmt.ExecContext(ctx,
			rule.ID, rule.CardID, rule.MerchantKey, rule.Rate,
			rule.CapAmount, rule.CapPeriod, rule.RewardKind, rule.Active,
		)
		if err != nil {
			return fmt.Errorf("failed to insert merchant rule %s: %w", rule.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpsertMerchant creates or updates a canonical merchant.
func (db *DB) UpsertMerchant(ctx context.Context, m models.Merchant) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO merchants (
		merchant_key, display_name, primary_category, aliases, active
	) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(merchant_key) DO UPDATE SET
		display_name = excluded.display_name,
		primary_category = excluded.primary_category,
		aliases = excluded.aliases,
		active = excluded.active`,
		m.MerchantKey, m.DisplayName, m.PrimaryCategory,
		serializeStrings(m.Aliases), m.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert merchant: %w", err)
	}
	return nil
}

const catalogCardColumns = `id, bank, name, tier, network, joining_fee, annual_fee,
	rate_general, rate_dining, rate_groceries, rate_travel,
	rate_online, rate_fuel, rate_entertainment, is_active`

func scanCatalogCard(row interface{ Scan(...any) error }) (models.CatalogCard, error) {
	var card models.CatalogCard
	err := row.Scan(
		&card.ID, &card.Bank, &card.Name, &card.Tier, &card.Network,
		&card.JoiningFee, &card.AnnualFee,
		&card.BaseRates.General, &card.BaseRates.Dining, &card.BaseRates.Groceries,
		&card.BaseRates.Travel, &card.BaseRates.Online, &card.BaseRates.Fuel,
		&card.BaseRates.Entertainment, &card.IsActive,
	)
	return card, err
}

// GetCatalogCards returns all catalog cards, active ones first, then by name.
func (db *DB) GetCatalogCards(ctx context.Context) ([]models.CatalogCard, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+catalogCardColumns+` FROM catalog_cards ORDER BY is_active DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog cards: %w", err)
	}
	defer rows.Close()

	var cards []models.CatalogCard
	for rows.Next() {
		card, err := scanCatalogCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog card: %w", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog cards: %w", err)
	}

	return cards, nil
}

// GetCatalogCard returns a single catalog card by id.
func (db *DB) GetCatalogCard(ctx context.Context, id string) (models.CatalogCard, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+catalogCardColumns+` FROM catalog_cards WHERE id = ?`, id)
	card, err := scanCatalogCard(row)
	if err == sql.ErrNoRows {
		return models.CatalogCard{}, ErrNotFound
	}
	if err != nil {
		return models.CatalogCard{}, fmt.Errorf("failed to scan catalog card: %w", err)
	}
	return card, nil
}

// GetCategoryRules returns the category rules for a card.
func (db *DB) GetCategoryRules(ctx context.Context, cardID string) ([]models.CategoryRule, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, card_id, category, rate,
		cap_amount, cap_period, reward_kind, active
		FROM category_rules WHERE card_id = ? ORDER BY category ASC`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category rules: %w", err)
	}
	defer rows.Close()

	var rules []models.CategoryRule
	for rows.Next() {
		var rule models.CategoryRule
		err := rows.Scan(&rule.ID, &rule.CardID, &rule.Category, &rule.Rate,
			&rule.CapAmount, &rule.CapPeriod, &rule.RewardKind, &rule.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// GetMerchantRules returns the merchant rules for a card.
func (db *DB) GetMerchantRules(ctx context.Context, cardID string) ([]models.MerchantRule, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, card_id, merchant_key, rate,
		cap_amount, cap_period, reward_kind, active
		FROM merchant_rules WHERE card_id = ? ORDER BY merchant_key ASC`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant rules: %w", err)
	}
	defer rows.Close()

	var rules []models.MerchantRule
	for rows.Next() {
		var rule models.MerchantRule
		err := rows.Scan(&rule.ID, &rule.CardID, &rule.MerchantKey, &rule.Rate,
			&rule.CapAmount, &rule.CapPeriod, &rule.RewardKind, &rule.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merchant rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// GetMerchants returns all canonical merchants.
func (db *DB) GetMerchants(ctx context.Context) ([]models.Merchant, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT merchant_key, display_name,
		primary_category, aliases, active FROM merchants ORDER BY merchant_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchants: %w", err)
	}
	defer rows.Close()

	var merchants []models.Merchant
	for rows.Next() {
		var m models.Merchant
		var aliasesJSON string
		err := rows.Scan(&m.MerchantKey, &m.DisplayName, &m.PrimaryCategory, &aliasesJSON, &m.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", err)
		}
		m.Aliases = deserializeStrings(aliasesJSON)
		merchants = append(merchants, m)
	}

	return merchants, rows.Err()
}

// AddUserCard stores a card in the user's registry.
func (db *DB) AddUserCard(ctx context.Context, uc models.UserCard) error {
	overridesJSON, err := json.Marshal(uc.RateOverrides)
	if err != nil {
		return fmt.Errorf("failed to serialize rate overrides: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO user_cards (
		id, user_id, catalog_card_id, rate_overrides, current_balance,
		credit_limit, is_primary, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uc.ID, uc.UserID, uc.CatalogCardID, string(overridesJSON),
		uc.CurrentBalance, uc.CreditLimit, uc.IsPrimary,
		uc.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user card: %w", err)
	}
	return nil
}

// GetUserCards returns the user's cards, primary first, then by creation time.
func (db *DB) GetUserCards(ctx context.Context, userID string) ([]models.UserCard, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, user_id, catalog_card_id,
		rate_overrides, current_balance, credit_limit, is_primary, created_at
		FROM user_cards WHERE user_id = ?
		ORDER BY is_primary DESC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user cards: %w", err)
	}
	defer rows.Close()

	var cards []models.UserCard
	for rows.Next() {
		var uc models.UserCard
		var overridesJSON, createdAtStr string
		err := rows.Scan(&uc.ID, &uc.UserID, &uc.CatalogCardID, &overridesJSON,
			&uc.CurrentBalance, &uc.CreditLimit, &uc.IsPrimary, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user card: %w", err)
		}
		if overridesJSON != "" && overridesJSON != "{}" {
			if err := json.Unmarshal([]byte(overridesJSON), &uc.RateOverrides); err != nil {
				return nil, fmt.Errorf("failed to parse rate overrides: %w", err)
			}
		}
		uc.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		cards = append(cards, uc)
	}

	return cards, rows.Err()
}

// DeleteUserCard removes a card from the user's registry.
func (db *DB) DeleteUserCard(ctx context.Context, userID, cardID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_cards WHERE user_id = ? AND id = ?`, userID, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete user card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user card: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertReview stores a card review.
func (db *DB) InsertReview(ctx context.Context, review models.Review) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO reviews (
		id, card_id, user_id, rating, title, body, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		review.ID, review.CardID, review.UserID, review.Rating,
		review.Title, review.Body, review.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// GetReviews returns the reviews of a card, newest first.
func (db *DB) GetReviews(ctx context.Context, cardID string) ([]models.Review, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, card_id, user_id, rating,
		title, body, created_at FROM reviews
		WHERE card_id = ? ORDER BY created_at DESC`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		var createdAtStr string
		err := rows.Scan(&r.ID, &r.CardID, &r.UserID, &r.Rating, &r.Title, &r.Body, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		reviews = append(reviews, r)
	}

	return reviews, rows.Err()
}

// InsertThread stores a discussion thread.
func (db *DB) InsertThread(ctx context.Context, thread models.Thread) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO threads (
		id, user_id, title, body, created_at
	) VALUES (?, ?, ?, ?, ?)`,
		thread.ID, thread.UserID, thread.Title, thread.Body,
		thread.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert thread: %w", err)
	}
	return nil
}

// GetThreads returns discussion threads, newest first.
func (db *DB) GetThreads(ctx context.Context) ([]models.Thread, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, user_id, title, body, created_at
		FROM threads ORDER BY created_at DESC LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		var t models.Thread
		var createdAtStr string
		err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Body, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		threads = append(threads, t)
	}

	return threads, rows.Err()
}

// InsertThreadReply stores a reply on a thread.
func (db *DB) InsertThreadReply(ctx context.Context, reply models.ThreadReply) error {
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM threads WHERE id = ?`, reply.ThreadID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check thread: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO thread_replies (
		id, thread_id, user_id, body, created_at
	) VALUES (?, ?, ?, ?, ?)`,
		reply.ID, reply.ThreadID, reply.UserID, reply.Body,
		reply.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert thread reply: %w", err)
	}
	return nil
}

// GetThreadReplies returns the replies on a thread, oldest first.
func (db *DB) GetThreadReplies(ctx context.Context, threadID string) ([]models.ThreadReply, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, thread_id, user_id, body, created_at
		FROM thread_replies WHERE thread_id = ? ORDER BY created_at ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread replies: %w", err)
	}
	defer rows.Close()

	var replies []models.ThreadReply
	for rows.Next() {
		var r models.ThreadReply
		var createdAtStr string
		err := rows.Scan(&r.ID, &r.ThreadID, &r.UserID, &r.Body, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread reply: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		replies = append(replies, r)
	}

	return replies, rows.Err()
}

// LogConversation appends a chat exchange to the conversation log.
func (db *DB) LogConversation(ctx context.Context, userID string, conversationID int64, message, response, source string) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO conversation_log (
		user_id, conversation_id, message, response, source, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, conversationID, message, response, source,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to log conversation: %w", err)
	}
	return nil
}

// serializeStrings converts a slice of strings to a JSON string.
func serializeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		// Fallback to comma-separated if JSON fails
		return strings.Join(values, ",")
	}
	return string(data)
}

// deserializeStrings converts a serialized string list back to a slice.
func deserializeStrings(serialized string) []string {
	if serialized == "" || serialized == "[]" {
		return []string{}
	}

	var result []string
	if err := json.Unmarshal([]byte(serialized), &result); err == nil {
		return result
	}

	// Fallback to comma-separated format for backward compatibility
	return strings.Split(serialized, ",")
}
