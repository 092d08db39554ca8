package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
)

// Interface compliance (compile-time assertions)
var _ core.MemoryStore = (*InMemoryStore)(nil)

func seeded(t *testing.T) *InMemoryStore {
	t.Helper()

	s := NewInMemoryStore()
	require.NoError(t, Seed(context.Background(), s, SampleData()))

	return s
}

func TestInMemoryStore_SearchRanksByRelevance(t *testing.T) {
	s := seeded(t)

	res, err := s.Search(context.Background(), "finance", "What is my budget for 2024?", 2)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "budget", res[0].ID)
	assert.Equal(t, "Your budget for 2024 is $100,000", res[0].Text)
	assert.Greater(t, res[0].Relevance, 0.0)
	assert.LessOrEqual(t, res[0].Relevance, 1.0)
	assert.LessOrEqual(t, len(res), 2)
}

func TestInMemoryStore_SearchIsDeterministic(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	a, err := s.Search(ctx, "weather", "rain", 5)
	require.NoError(t, err)
	b, err := s.Search(ctx, "weather", "rain", 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 1)
	assert.Equal(t, "fact2", a[0].ID)
}

func TestInMemoryStore_EmptyQueryAndDefaults(t *testing.T) {
	s := seeded(t)

	res, err := s.Search(context.Background(), "personal", "", 0)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"fact1", "fact2", "fact3"}, []string{res[0].ID, res[1].ID, res[2].ID})

	none, err := s.Search(context.Background(), "unknown", "x", 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStore_AddReplacesAndValidates(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "notes", "n1", "first"))
	require.NoError(t, s.Add(ctx, "notes", "n1", "second"))

	res, _ := s.Search(ctx, "notes", "", 10)
	require.Len(t, res, 1)
	assert.Equal(t, "second", res[0].Text)

	err := s.Add(ctx, "", "x", "y")
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestInMemoryStore_DeleteClearCollections(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "personal", "weather"}, names)

	require.NoError(t, s.Delete(ctx, "finance", "budget"))
	require.NoError(t, s.Delete(ctx, "finance", "missing"))
	res, _ := s.Search(ctx, "finance", "", 10)
	assert.Len(t, res, 2)

	require.NoError(t, s.Clear(ctx))
	names, _ = s.Collections(ctx)
	assert.Empty(t, names)
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Add(ctx, "c", string(rune('a'+i)), "shared text")
			_, _ = s.Search(ctx, "c", "shared", 3)
		}(i)
	}
	wg.Wait()

	res, err := s.Search(ctx, "c", "shared", 20)
	require.NoError(t, err)
	assert.Len(t, res, 10)
}
