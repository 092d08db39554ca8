package engine

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/agentplay/agent"
	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/filter"
	"github.com/hupe1980/agentplay/flow"
	"github.com/hupe1980/agentplay/process"
)

// Session is the root aggregate of one conversation. All requests of a
// session are serialized through its lock.
type Session struct {
	id      string
	config  SessionConfig
	tools   []string
	conv    *core.Conversation
	graph   *process.Graph
	filters *filter.Pipeline
	flow    *flow.Flow
	sched   agent.Scheduler

	// lock is a 1-slot semaphore so waiting requests can be cancelled.
	lock    chan struct{}
	removed bool
}

func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() { <-s.lock }

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID         string       `json:"id"`
	Mode       Mode         `json:"mode"`
	Agents     []core.Agent `json:"agents"`
	Tools      []string     `json:"tools"`
	Filters    []string     `json:"filters"`
	Process    string       `json:"process"`
	Step       string       `json:"step"`
	Ended      bool         `json:"ended"`
	Iterations int          `json:"iterations"`
	Turns      []core.Turn  `json:"turns"`
	Created    time.Time    `json:"created"`
	Updated    time.Time    `json:"updated"`
}

func (s *Session) snapshot() Snapshot {
	step := s.conv.Step()

	return Snapshot{
		ID:         s.id,
		Mode:       s.config.Mode,
		Agents:     slices.Clone(s.config.Agents),
		Tools:      slices.Clone(s.tools),
		Filters:    s.filters.Names(),
		Process:    s.graph.Name(),
		Step:       step,
		Ended:      s.isTerminal(step),
		Iterations: s.conv.Iterations(),
		Turns:      s.conv.History(0),
		Created:    s.conv.Created(),
		Updated:    s.conv.Updated(),
	}
}

func (s *Session) isTerminal(step string) bool {
	st, ok := s.graph.Step(step)
	return ok && st.Terminal
}

func (s *Session) transcript() core.Transcript {
	return core.Transcript{
		SessionID:  s.id,
		Mode:       string(s.config.Mode),
		Agents:     s.config.AgentNames(),
		Step:       s.conv.Step(),
		Iterations: s.conv.Iterations(),
		Turns:      s.conv.History(0),
		Created:    s.conv.Created(),
		Archived:   time.Now().UTC(),
	}
}
