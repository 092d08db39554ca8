package core

import (
	"iter"
	"sync"
	"time"
)

// Conversation is the append-only turn log of a session together with its
// mutable scalars: the current process step and the team iteration counter.
// It is safe for concurrent readers; writers are expected to be serialized
// per session and to go through Begin/Commit.
//
// Contract:
//   - Turn indices are contiguous from 0 and assigned on append
//   - History and All return copies; repeated reads are identical until the next append
//   - A Tx applies all of its staged changes at once or none of them
type Conversation struct {
	mu         sync.RWMutex
	turns      []Turn
	step       string
	iterations int
	created    time.Time
	updated    time.Time
}

// NewConversation creates an empty conversation positioned at step.
func NewConversation(step string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{step: step, created: now, updated: now}
}

// Append adds a turn and returns its index. Index and Timestamp are assigned here.
func (c *Conversation) Append(t Turn) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.appendLocked(t)
}

func (c *Conversation) appendLocked(t Turn) int {
	t = t.Clone()
	t.Index = len(c.turns)

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	if t.Status == "" {
		t.Status = TurnOK
	}

	c.turns = append(c.turns, t)
	c.updated = time.Now().UTC()

	return t.Index
}

// Len returns the number of committed turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.turns)
}

// History returns the last limit turns in order, or all turns when limit <= 0.
func (c *Conversation) History(limit int) []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return cloneTail(c.turns, limit)
}

// All returns a lazy iterator over the committed turns. Each iteration
// observes the turns present when it started.
func (c *Conversation) All() iter.Seq[Turn] {
	return func(yield func(Turn) bool) {
		n := c.Len()
		for i := 0; i < n; i++ {
			c.mu.RLock()
			t := c.turns[i].Clone()
			c.mu.RUnlock()

			if !yield(t) {
				return
			}
		}
	}
}

// Step returns the current process step.
func (c *Conversation) Step() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.step
}

// SetStep moves the current step pointer.
func (c *Conversation) SetStep(step string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.step = step
	c.updated = time.Now().UTC()
}

// Iterations returns the team iteration counter.
func (c *Conversation) Iterations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.iterations
}

// IncrementIteration bumps the iteration counter and returns the new value.
func (c *Conversation) IncrementIteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.iterations++

	return c.iterations
}

// ResetIterations zeroes the iteration counter.
func (c *Conversation) ResetIterations() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.iterations = 0
}

// Updated returns the time of the last mutation.
func (c *Conversation) Updated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.updated
}

// Created returns the creation time.
func (c *Conversation) Created() time.Time {
	return c.created
}

// Begin opens a transaction that stages changes until Commit.
func (c *Conversation) Begin() *Tx {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Tx{
		conv:       c,
		base:       len(c.turns),
		step:       c.step,
		iterations: c.iterations,
	}
}

// Tx stages turn appends and scalar changes of a single request. Nothing is
// visible to other readers until Commit succeeds. A Tx is not safe for
// concurrent use.
type Tx struct {
	conv       *Conversation
	base       int
	staged     []Turn
	step       string
	stepSet    bool
	iterations int
	iterSet    bool
	done       bool
}

// Append stages a turn and returns the index it will have once committed.
func (tx *Tx) Append(t Turn) int {
	t = t.Clone()
	t.Index = tx.base + len(tx.staged)

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	if t.Status == "" {
		t.Status = TurnOK
	}

	tx.staged = append(tx.staged, t)

	return t.Index
}

// Len returns the number of committed plus staged turns.
func (tx *Tx) Len() int { return tx.base + len(tx.staged) }

// History returns the last limit turns of the committed log followed by the
// staged turns, or everything when limit <= 0.
func (tx *Tx) History(limit int) []Turn {
	tx.conv.mu.RLock()
	all := make([]Turn, 0, tx.base+len(tx.staged))
	all = append(all, tx.conv.turns[:tx.base]...)
	tx.conv.mu.RUnlock()

	all = append(all, tx.staged...)

	return cloneTail(all, limit)
}

// Staged returns copies of the turns appended in this transaction.
func (tx *Tx) Staged() []Turn {
	return cloneTail(tx.staged, 0)
}

// Step returns the step as seen by this transaction.
func (tx *Tx) Step() string { return tx.step }

// SetStep stages a step change.
func (tx *Tx) SetStep(step string) {
	tx.step = step
	tx.stepSet = true
}

// Iterations returns the iteration counter as seen by this transaction.
func (tx *Tx) Iterations() int { return tx.iterations }

// IncrementIteration stages an increment and returns the new value.
func (tx *Tx) IncrementIteration() int {
	tx.iterations++
	tx.iterSet = true

	return tx.iterations
}

// ResetIterations stages a reset of the counter.
func (tx *Tx) ResetIterations() {
	tx.iterations = 0
	tx.iterSet = true
}

// Commit applies the staged changes. It fails with ErrConcurrentWrite if
// turns were appended to the conversation after Begin.
func (tx *Tx) Commit() error {
	if tx.done {
		return nil
	}

	c := tx.conv

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.turns) != tx.base {
		return ErrConcurrentWrite
	}

	for _, t := range tx.staged {
		c.turns = append(c.turns, t)
	}

	if tx.stepSet {
		c.step = tx.step
	}

	if tx.iterSet {
		c.iterations = tx.iterations
	}

	c.updated = time.Now().UTC()
	tx.done = true

	return nil
}

// Discard abandons the transaction.
func (tx *Tx) Discard() {
	tx.done = true
	tx.staged = nil
}

func cloneTail(turns []Turn, limit int) []Turn {
	start := 0
	if limit > 0 && limit < len(turns) {
		start = len(turns) - limit
	}

	out := make([]Turn, 0, len(turns)-start)
	for _, t := range turns[start:] {
		out = append(out, t.Clone())
	}

	return out
}
