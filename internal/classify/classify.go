package classify

import (
	"regexp"
	"sort"
	"strings"

	"card-advisor-api/internal/models"
)

// Intent is the structured outcome of pattern classification. A Type of
// models.QueryUnknown means the classifier declined; that is a normal
// fall-through, not an error.
type Intent struct {
	Type         string
	MerchantText string   // best-card: the raw merchant mention
	CardNames    []string // compare: the two detected card names
	Answer       string   // faq: the canned answer
	Confidence   float64
}

var (
	listCardsRe = regexp.MustCompile(`(?i)\b(?:my cards|show (?:my )?cards|list (?:my )?cards)\b`)

	bestCardRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwhich card\b.*?\b(?:for|at|on)\b\s+(.+)$`),
		regexp.MustCompile(`(?i)\bbest card\b.*?\b(?:for|at|on)\b\s+(.+)$`),
		regexp.MustCompile(`(?i)\bshould i use\b.*?\b(?:for|at|on)\b\s+(.+)$`),
	}

	trailingJunkRe = regexp.MustCompile(`[\s?.!,]+$`)
)

type faqEntry struct {
	pattern *regexp.Regexp
	answer  string
}

// The FAQ table is curated; patterns are whole-word and case-insensitive.
var faqTable = []faqEntry{
	{
		pattern: regexp.MustCompile(`(?i)\bwhat\b.*\bjoining fee\b`),
		answer:  "A joining fee is a one-time charge when a card is issued. Many cards waive it if you cross a spend milestone in the first 90 days; check the card's detail page for its fee and waiver terms.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bwhat\b.*\bannual fee\b`),
		answer:  "An annual fee is charged every card anniversary. Premium cards often waive it above an annual spend threshold; the card's detail page lists the exact amount.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bhow\b.*\breward points?\b.*\bwork\b`),
		answer:  "Reward points accrue per spend according to the card's category and merchant rules, subject to monthly or annual caps. Points can usually be redeemed for statement credit, vouchers, or transfers.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bwhat\b.*\bcredit utilization\b`),
		answer:  "Credit utilization is your balance divided by your credit limit. Keeping it under 30% is generally good for your credit score; we flag cards above 90% when ranking recommendations.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bhow\b.*\badd\b.*\bcard\b`),
		answer:  "You can add a card you own from the catalog: open the card's page and choose \"I have this card\". Recommendations only consider cards you have added.",
	},
}

// Classifier recognizes a small set of query intents by pattern
// matching. It knows the catalog card names so it can spot
// compare-style questions.
type Classifier struct {
	cardNames []string // sorted longest first for greedy detection
}

// New builds a classifier over the catalog's card names.
func New(cardNames []string) *Classifier {
	names := make([]string, 0, len(cardNames))
	for _, n := range cardNames {
		if strings.TrimSpace(n) != "" {
			names = append(names, n)
		}
	}
	// Longest first so "Platinum Travel Elite" wins over "Platinum".
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return &Classifier{cardNames: names}
}

// Classify maps a query to an intent, or declines with QueryUnknown.
func (c *Classifier) Classify(query string) Intent {
	query = strings.TrimSpace(query)
	if query == "" {
		return Intent{Type: models.QueryUnknown}
	}

	if listCardsRe.MatchString(query) {
		return Intent{Type: models.QueryListCards, Confidence: 1.0}
	}

	if names := c.detectCardNames(query); len(names) >= 2 {
		return Intent{Type: models.QueryCompare, CardNames: names[:2], Confidence: 1.0}
	}

	for _, re := range bestCardRes {
		if m := re.FindStringSubmatch(query); m != nil {
			mention := trailingJunkRe.ReplaceAllString(m[1], "")
			if mention != "" {
				return Intent{Type: models.QueryBestCard, MerchantText: mention, Confidence: 1.0}
			}
		}
	}

	for _, entry := range faqTable {
		if entry.pattern.MatchString(query) {
			return Intent{Type: models.QueryFAQ, Answer: entry.answer, Confidence: 1.0}
		}
	}

	return Intent{Type: models.QueryUnknown}
}

// detectCardNames finds catalog card names mentioned in the query, in
// order of appearance. Overlapping mentions are consumed greedily.
func (c *Classifier) detectCardNames(query string) []string {
	lower := strings.ToLower(query)

	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	claimed := make([]bool, len(lower))

	for _, name := range c.cardNames {
		idx := strings.Index(lower, strings.ToLower(name))
		if idx < 0 {
			continue
		}
		overlap := false
		for i := idx; i < idx+len(name) && i < len(claimed); i++ {
			if claimed[i] {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}
		for i := idx; i < idx+len(name) && i < len(claimed); i++ {
			claimed[i] = true
		}
		hits = append(hits, hit{pos: idx, name: name})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.name)
	}
	return names
}
