package core

import "context"

// SearchResult is one recalled memory entry with its relevance in [0, 1].
type SearchResult struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}

// MemoryStore is the memory capability consumed by the orchestrator and the
// memory plugin. Implementations can back search with embeddings, keywords or
// any heuristic.
type MemoryStore interface {
	Search(ctx context.Context, collection, query string, k int) ([]SearchResult, error)
	Add(ctx context.Context, collection, id, text string) error
	Collections(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
