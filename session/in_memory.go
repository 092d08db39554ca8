package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/agentplay/core"
)

// InMemoryArchive is a volatile core.Archive storing transcripts in a
// process local map. Transcripts are cloned on the way in and out.
type InMemoryArchive struct {
	mu          sync.RWMutex
	transcripts map[string]core.Transcript
	order       []string
}

// NewInMemoryArchive constructs an empty archive.
func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{transcripts: make(map[string]core.Transcript)}
}

// Save stores t, replacing an earlier transcript of the same session.
func (a *InMemoryArchive) Save(_ context.Context, t core.Transcript) error {
	if t.SessionID == "" {
		return &core.ValidationError{Field: "session_id", Message: "must not be empty"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.transcripts[t.SessionID]; !ok {
		a.order = append(a.order, t.SessionID)
	}

	a.transcripts[t.SessionID] = cloneTranscript(t)

	return nil
}

// Load returns the transcript of sessionID.
func (a *InMemoryArchive) Load(_ context.Context, sessionID string) (core.Transcript, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	t, ok := a.transcripts[sessionID]
	if !ok {
		return core.Transcript{}, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	return cloneTranscript(t), nil
}

// List returns archived session ids in archive order.
func (a *InMemoryArchive) List(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return slices.Clone(a.order), nil
}

func cloneTranscript(t core.Transcript) core.Transcript {
	c := t
	c.Agents = slices.Clone(t.Agents)
	c.Turns = make([]core.Turn, len(t.Turns))

	for i, turn := range t.Turns {
		c.Turns[i] = turn.Clone()
	}

	return c
}
