package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_AppendAssignsContiguousIndices(t *testing.T) {
	c := NewConversation("chat")

	for i := 0; i < 5; i++ {
		idx := c.Append(Turn{Role: RoleUser, Speaker: UserSpeaker, Content: "hi"})
		if idx != i {
			t.Fatalf("expected index %d, got %d", i, idx)
		}
	}

	for i, turn := range c.History(0) {
		assert.Equal(t, i, turn.Index)
		assert.False(t, turn.Timestamp.IsZero())
		assert.Equal(t, TurnOK, turn.Status)
	}
}

func TestConversation_HistoryIsIdempotentAndCopied(t *testing.T) {
	c := NewConversation("chat")
	c.Append(Turn{Role: RoleUser, Content: "a", References: []int{1}})
	c.Append(Turn{Role: RoleAgent, Content: "b"})

	first := c.History(0)
	second := c.History(0)
	assert.Equal(t, first, second)

	first[0].Content = "mutated"
	first[0].References[0] = 99
	assert.Equal(t, "a", c.History(0)[0].Content)
	assert.Equal(t, []int{1}, c.History(0)[0].References)
}

func TestConversation_HistoryLimit(t *testing.T) {
	c := NewConversation("chat")
	for _, s := range []string{"a", "b", "c", "d"} {
		c.Append(Turn{Role: RoleUser, Content: s})
	}

	last := c.History(2)
	require.Len(t, last, 2)
	assert.Equal(t, "c", last[0].Content)
	assert.Equal(t, 3, last[1].Index)
	assert.Len(t, c.History(10), 4)
}

func TestConversation_AllIsRestartable(t *testing.T) {
	c := NewConversation("chat")
	c.Append(Turn{Content: "a"})
	c.Append(Turn{Content: "b"})

	collect := func() []string {
		var out []string
		for turn := range c.All() {
			out = append(out, turn.Content)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b"}, collect())
	assert.Equal(t, []string{"a", "b"}, collect())

	for turn := range c.All() {
		assert.Equal(t, "a", turn.Content)
		break
	}
}

func TestConversation_IterationsAndStep(t *testing.T) {
	c := NewConversation("start")
	assert.Equal(t, 1, c.IncrementIteration())
	assert.Equal(t, 2, c.IncrementIteration())
	c.ResetIterations()
	assert.Equal(t, 0, c.Iterations())

	c.SetStep("chat")
	assert.Equal(t, "chat", c.Step())
}

func TestTx_StagesUntilCommit(t *testing.T) {
	c := NewConversation("chat")
	c.Append(Turn{Content: "committed"})

	tx := c.Begin()
	assert.Equal(t, 1, tx.Append(Turn{Content: "staged-1"}))
	assert.Equal(t, 2, tx.Append(Turn{Content: "staged-2"}))
	tx.IncrementIteration()
	tx.SetStep("end")

	assert.Equal(t, 1, c.Len(), "staged turns must not be visible")
	assert.Equal(t, "chat", c.Step())
	assert.Len(t, tx.History(0), 3)
	assert.Len(t, tx.Staged(), 2)

	require.NoError(t, tx.Commit())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "end", c.Step())
	assert.Equal(t, 1, c.Iterations())
}

func TestTx_DiscardLeavesStateUntouched(t *testing.T) {
	c := NewConversation("chat")

	tx := c.Begin()
	tx.Append(Turn{Content: "x"})
	tx.ResetIterations()
	tx.Discard()

	assert.NoError(t, tx.Commit())
	assert.Equal(t, 0, c.Len())
}

func TestTx_CommitDetectsConcurrentAppend(t *testing.T) {
	c := NewConversation("chat")

	tx := c.Begin()
	tx.Append(Turn{Content: "x"})
	c.Append(Turn{Content: "sneaky"})

	err := tx.Commit()
	assert.True(t, errors.Is(err, ErrConcurrentWrite))
	assert.Equal(t, 1, c.Len())
}

func TestConversation_ConcurrentReaders(t *testing.T) {
	c := NewConversation("chat")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.History(3)
			}
		}()
	}

	for i := 0; i < 50; i++ {
		c.Append(Turn{Content: "t"})
	}

	wg.Wait()

	for i, turn := range c.History(0) {
		assert.Equal(t, i, turn.Index)
	}
}
