package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/agentplay/core"
)

// Entry is a seed record.
type Entry struct {
	ID   string
	Text string
}

// SampleData returns the demo collections loaded at start-up and after a
// memory-clearing reset.
func SampleData() map[string][]Entry {
	return map[string][]Entry{
		"finance": {
			{ID: "budget", Text: "Your budget for 2024 is $100,000"},
			{ID: "savings", Text: "Your savings from 2023 are $50,000"},
			{ID: "investments", Text: "Your investments are $80,000"},
		},
		"personal": {
			{ID: "fact1", Text: "John was born in Seattle in 1980"},
			{ID: "fact2", Text: "John graduated from University of Washington in 2002"},
			{ID: "fact3", Text: "John has two children named Alex and Sam"},
		},
		"weather": {
			{ID: "fact1", Text: "The weather in New York is typically hot and humid in summer"},
			{ID: "fact2", Text: "London often experiences rain throughout the year"},
			{ID: "fact3", Text: "Tokyo has a rainy season in June and July"},
		},
	}
}

// Seed adds data to store. Collections are seeded in sorted order.
func Seed(ctx context.Context, store core.MemoryStore, data map[string][]Entry) error {
	for _, coll := range slices.Sorted(maps.Keys(data)) {
		for _, e := range data[coll] {
			if err := store.Add(ctx, coll, e.ID, e.Text); err != nil {
				return fmt.Errorf("seed %s/%s: %w", coll, e.ID, err)
			}
		}
	}

	return nil
}
