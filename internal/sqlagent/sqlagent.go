package sqlagent

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"card-advisor-api/internal/llm"
	"card-advisor-api/internal/models"
)

// Tables the agent is allowed to query. User data stays off-limits.
var allowedTables = map[string]bool{
	"catalog_cards":  true,
	"category_rules": true,
	"merchant_rules": true,
	"merchants":      true,
}

const maxRows = 100

// schemaPrompt describes the queryable tables to the model.
const schemaPrompt = `You translate questions about a credit card catalog into a single SQLite SELECT statement.

Schema:
  catalog_cards(id, bank, name, tier, network, joining_fee, annual_fee,
    rate_general, rate_dining, rate_groceries, rate_travel, rate_online,
    rate_fuel, rate_entertainment, is_active)
  category_rules(id, card_id, category, rate, cap_amount, cap_period, reward_kind, active)
  merchant_rules(id, card_id, merchant_key, rate, cap_amount, cap_period, reward_kind, active)
  merchants(merchant_key, display_name, primary_category, aliases, active)

Rules:
- Respond with exactly one SELECT statement and nothing else.
- Only the tables above may be referenced.
- Rates are percentages; tier is one of basic, premium, super-premium.

Question: %s`

var (
	tableRefRe = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	limitRe    = regexp.MustCompile(`(?i)\blimit\s+\d+`)
)

// Agent turns a natural-language question into a validated SELECT and
// runs it against the catalog.
type Agent struct {
	db     *sql.DB
	client llm.Client
}

// New creates an agent over the given database connection.
func New(db *sql.DB, client llm.Client) *Agent {
	return &Agent{db: db, client: client}
}

// Ask generates, validates, and executes a query for the question.
func (a *Agent) Ask(ctx context.Context, question string) (models.AskResponse, error) {
	completion, err := a.client.Complete(ctx, fmt.Sprintf(schemaPrompt, question))
	if err != nil {
		return models.AskResponse{}, fmt.Errorf("failed to generate query: %w", err)
	}

	query, err := ValidateQuery(ExtractSQL(completion.Text))
	if err != nil {
		return models.AskResponse{}, err
	}

	columns, rows, err := a.run(ctx, query)
	if err != nil {
		return models.AskResponse{}, fmt.Errorf("query failed: %w", err)
	}

	return models.AskResponse{
		Question: question,
		SQL:      query,
		Columns:  columns,
		Rows:     rows,
	}, nil
}

// ExtractSQL strips markdown code fences and surrounding prose from a
// model response, keeping the statement itself.
func ExtractSQL(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		text = strings.TrimPrefix(text, "sql")
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	return strings.TrimSpace(text)
}

// ValidateQuery enforces the read-only contract: a single SELECT
// touching only allow-listed tables. Returns the query with a row
// limit applied.
func ValidateQuery(query string) (string, error) {
	query = strings.TrimSuffix(strings.TrimSpace(query), ";")
	if query == "" {
		return "", fmt.Errorf("model returned no query")
	}

	if strings.Contains(query, ";") {
		return "", fmt.Errorf("multiple statements are not allowed")
	}

	upper := strings.ToUpper(query)
	if !strings.HasPrefix(upper, "SELECT") {
		return "", fmt.Errorf("only SELECT statements are allowed")
	}
	for _, keyword := range []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "PRAGMA", "ATTACH"} {
		if regexp.MustCompile(`\b` + keyword + `\b`).MatchString(upper) {
			return "", fmt.Errorf("statement contains forbidden keyword %s", keyword)
		}
	}

	for _, match := range tableRefRe.FindAllStringSubmatch(query, -1) {
		table := strings.ToLower(match[1])
		if !allowedTables[table] {
			return "", fmt.Errorf("table %s is not queryable", table)
		}
	}

	if !limitRe.MatchString(query) {
		query = fmt.Sprintf("%s LIMIT %d", query, maxRows)
	}

	return query, nil
}

func (a *Agent) run(ctx context.Context, query string) ([]string, []map[string]any, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		results = append(results, row)
	}

	return columns, results, rows.Err()
}
