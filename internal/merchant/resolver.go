package merchant

import (
	"container/list"
	"sort"
	"strings"
	"sync"

	"card-advisor-api/internal/models"
)

const (
	// Resolutions are memoized for the process lifetime, bounded.
	maxCacheEntries = 10000
	// Minimum share of a display name's tokens that must appear in the
	// query before a substring match counts.
	minTokenCoverage = 0.6
)

// Resolution is a resolved canonical merchant.
type Resolution struct {
	MerchantKey     string
	DisplayName     string
	PrimaryCategory string
}

// Resolver maps a free-form merchant mention to a canonical merchant.
// The alias table is built once and treated as immutable; build a new
// Resolver to pick up merchant changes.
type Resolver struct {
	byKey   map[string]models.Merchant
	byAlias map[string]string // normalized alias -> merchant_key
	keys    []string          // sorted for deterministic iteration

	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List // front = most recently used
}

type cacheEntry struct {
	query string
	res   Resolution
	found bool
}

// NewResolver builds a resolver over the active merchants.
func NewResolver(merchants []models.Merchant) *Resolver {
	r := &Resolver{
		byKey:   make(map[string]models.Merchant),
		byAlias: make(map[string]string),
		cache:   make(map[string]*list.Element),
		order:   list.New(),
	}

	for _, m := range merchants {
		if !m.Active {
			continue
		}
		r.byKey[m.MerchantKey] = m
		r.keys = append(r.keys, m.MerchantKey)
		for _, alias := range m.Aliases {
			norm := Normalize(alias)
			if norm == "" {
				continue
			}
			// First registration wins so resolution stays deterministic.
			if _, taken := r.byAlias[norm]; !taken {
				r.byAlias[norm] = m.MerchantKey
			}
		}
	}
	sort.Strings(r.keys)

	return r
}

// Normalize lowercases a mention and strips punctuation, collapsing
// runs of separators into single spaces.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Resolve maps text containing a merchant mention to its canonical
// identity. The second return value is false when nothing matches.
func (r *Resolver) Resolve(text string) (Resolution, bool) {
	norm := Normalize(text)
	if norm == "" {
		return Resolution{}, false
	}

	r.mu.Lock()
	if el, ok := r.cache[norm]; ok {
		r.order.MoveToFront(el)
		entry := el.Value.(*cacheEntry)
		r.mu.Unlock()
		return entry.res, entry.found
	}
	r.mu.Unlock()

	res, found := r.resolve(norm)

	r.mu.Lock()
	if r.order.Len() >= maxCacheEntries {
		oldest := r.order.Back()
		if oldest != nil {
			r.order.Remove(oldest)
			delete(r.cache, oldest.Value.(*cacheEntry).query)
		}
	}
	r.cache[norm] = r.order.PushFront(&cacheEntry{query: norm, res: res, found: found})
	r.mu.Unlock()

	return res, found
}

func (r *Resolver) resolve(norm string) (Resolution, bool) {
	tokens := strings.Fields(norm)

	// (a) exact canonical-key match on the whole mention or any
	// token/bigram of it.
	if key, ok := r.matchExact(norm, tokens, func(c string) (string, bool) {
		_, ok := r.byKey[c]
		return c, ok
	}); ok {
		return r.resolution(key), true
	}

	// (b) exact alias match.
	if key, ok := r.matchExact(norm, tokens, func(c string) (string, bool) {
		key, ok := r.byAlias[c]
		return key, ok
	}); ok {
		return r.resolution(key), true
	}

	// (c) substring match against display names, preferring the longest
	// matched name, ties broken by alphabetical canonical key.
	bestKey := ""
	bestLen := -1
	for _, key := range r.keys {
		m := r.byKey[key]
		display := Normalize(m.DisplayName)
		if display == "" {
			continue
		}
		if !r.covers(norm, tokens, display) {
			continue
		}
		if len(display) > bestLen {
			bestKey, bestLen = key, len(display)
		}
	}
	if bestKey != "" {
		return r.resolution(bestKey), true
	}

	return Resolution{}, false
}

// matchExact tries the whole normalized mention, then every token and
// adjacent token pair, against a lookup. Candidates are tried in a
// fixed order so resolution is deterministic.
func (r *Resolver) matchExact(norm string, tokens []string, lookup func(string) (string, bool)) (string, bool) {
	if key, ok := lookup(norm); ok {
		return key, true
	}

	var matches []string
	for i, tok := range tokens {
		if key, ok := lookup(tok); ok {
			matches = append(matches, key)
		}
		if i+1 < len(tokens) {
			if key, ok := lookup(tok + " " + tokens[i+1]); ok {
				matches = append(matches, key)
			}
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// covers reports whether enough of the display name appears in the
// mention: either a direct substring hit or token coverage of at least
// minTokenCoverage.
func (r *Resolver) covers(norm string, tokens []string, display string) bool {
	if strings.Contains(norm, display) {
		return true
	}

	displayTokens := strings.Fields(display)
	if len(displayTokens) == 0 {
		return false
	}

	have := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		have[tok] = true
	}

	matched := 0
	for _, dt := range displayTokens {
		if have[dt] {
			matched++
		}
	}
	return float64(matched)/float64(len(displayTokens)) >= minTokenCoverage
}

func (r *Resolver) resolution(key string) Resolution {
	m := r.byKey[key]
	return Resolution{
		MerchantKey:     m.MerchantKey,
		DisplayName:     m.DisplayName,
		PrimaryCategory: m.PrimaryCategory,
	}
}

// CacheLen reports the number of memoized resolutions.
func (r *Resolver) CacheLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
