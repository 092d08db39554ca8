package memory

import (
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/agentplay/core"
)

// DefaultLimit is used when Search is called with k <= 0.
const DefaultLimit = 5

// storedMemory is the internal representation persisted by InMemoryStore.
type storedMemory struct {
	ID    string
	Text  string
	terms map[string]float64
	norm  float64
}

type collection struct {
	order   []string
	entries map[string]*storedMemory
}

// InMemoryStore is a process-local MemoryStore organized in named collections.
//
// Concurrency: protected by RWMutex.
// Search: linear scan scoring each entry by cosine similarity of term
// frequencies. Ties are broken by id so results are deterministic.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]*collection)}
}

// Add stores text under id in collection, replacing an existing entry.
func (m *InMemoryStore) Add(_ context.Context, coll, id, text string) error {
	if coll == "" {
		return &core.ValidationError{Field: "collection", Message: "must not be empty"}
	}

	if id == "" {
		return &core.ValidationError{Field: "id", Message: "must not be empty"}
	}

	terms, norm := vectorize(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[coll]
	if !ok {
		c = &collection{entries: make(map[string]*storedMemory)}
		m.collections[coll] = c
	}

	if _, exists := c.entries[id]; !exists {
		c.order = append(c.order, id)
	}

	c.entries[id] = &storedMemory{ID: id, Text: text, terms: terms, norm: norm}

	return nil
}

// Search returns up to k entries of collection ranked by relevance. An empty
// query lists entries in insertion order. Unknown collections yield no results.
func (m *InMemoryStore) Search(_ context.Context, coll, query string, k int) ([]core.SearchResult, error) {
	if k <= 0 {
		k = DefaultLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[coll]
	if !ok {
		return []core.SearchResult{}, nil
	}

	results := make([]core.SearchResult, 0, len(c.order))

	if strings.TrimSpace(query) == "" {
		for _, id := range c.order {
			if len(results) == k {
				break
			}

			e := c.entries[id]
			results = append(results, core.SearchResult{ID: e.ID, Text: e.Text, Relevance: 1})
		}

		return results, nil
	}

	qTerms, qNorm := vectorize(query)

	for _, id := range c.order {
		e := c.entries[id]

		score := cosine(qTerms, qNorm, e.terms, e.norm)
		if score <= 0 {
			continue
		}

		results = append(results, core.SearchResult{ID: e.ID, Text: e.Text, Relevance: math.Round(score*1000) / 1000})
	}

	slices.SortStableFunc(results, func(a, b core.SearchResult) int {
		switch {
		case a.Relevance > b.Relevance:
			return -1
		case a.Relevance < b.Relevance:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Collections returns the collection names in sorted order.
func (m *InMemoryStore) Collections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for n := range m.collections {
		names = append(names, n)
	}

	slices.Sort(names)

	return names, nil
}

// Delete removes a single entry. Deleting a missing entry is not an error.
func (m *InMemoryStore) Delete(_ context.Context, coll, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[coll]
	if !ok {
		return nil
	}

	if _, ok := c.entries[id]; !ok {
		return nil
	}

	delete(c.entries, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })

	return nil
}

// Clear removes every collection.
func (m *InMemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections = make(map[string]*collection)

	return nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func vectorize(s string) (map[string]float64, float64) {
	terms := make(map[string]float64)
	for _, tok := range tokenize(s) {
		if stopwords[tok] {
			continue
		}

		terms[tok]++
	}

	var sum float64
	for _, v := range terms {
		sum += v * v
	}

	return terms, math.Sqrt(sum)
}

func cosine(a map[string]float64, an float64, b map[string]float64, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}

	var dot float64
	for t, v := range a {
		dot += v * b[t]
	}

	return dot / (an * bn)
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"of": true, "in": true, "on": true, "to": true, "and": true, "or": true, "for": true,
	"my": true, "your": true, "what": true, "from": true, "with": true, "do": true, "i": true,
}
