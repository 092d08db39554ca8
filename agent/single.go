package agent

import (
	"context"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/flow"
)

// Single lets one agent answer every request.
type Single struct {
	agent  core.Agent
	runner TurnRunner
}

// NewSingle creates a single-agent scheduler.
func NewSingle(a core.Agent, runner TurnRunner) (*Single, error) {
	if err := ValidateRoster([]core.Agent{a}); err != nil {
		return nil, err
	}

	return &Single{agent: a, runner: runner}, nil
}

// Roster implements Scheduler.
func (s *Single) Roster() []core.Agent { return []core.Agent{s.agent} }

// Run implements Scheduler.
func (s *Single) Run(ctx context.Context, tx *core.Tx, sessionID string) (Outcome, error) {
	res, err := s.runner.RunTurn(ctx, tx, sessionID, s.agent)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Results: []flow.Result{res}, Reason: StopAnswered}, nil
}
