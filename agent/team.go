package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
)

// Team defaults.
const (
	DefaultMaxIterations     = 8
	DefaultTerminationMarker = "FINAL:"
)

// TeamOptions configures a Team.
type TeamOptions struct {
	Logger logging.Logger
	// MaxIterations bounds the agent turns of one round (default 8).
	MaxIterations int
	// TerminationMarker ends a round early when an agent's output starts
	// with it (default "FINAL:").
	TerminationMarker string
}

// Team is a round-robin scheduler over a fixed roster.
type Team struct {
	roster []core.Agent
	runner TurnRunner
	opts   TeamOptions
}

// NewTeam creates a team. The roster must not be empty.
func NewTeam(roster []core.Agent, runner TurnRunner, optFns ...func(o *TeamOptions)) (*Team, error) {
	opts := TeamOptions{
		Logger:            logging.NoOpLogger{},
		MaxIterations:     DefaultMaxIterations,
		TerminationMarker: DefaultTerminationMarker,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	if len(roster) == 0 {
		return nil, &core.ValidationError{Field: "agents", Message: "team roster must not be empty"}
	}

	if err := ValidateRoster(roster); err != nil {
		return nil, err
	}

	if opts.MaxIterations <= 0 {
		return nil, &core.ValidationError{Field: "max_iterations", Value: opts.MaxIterations, Message: "must be positive"}
	}

	return &Team{roster: slices.Clone(roster), runner: runner, opts: opts}, nil
}

// Roster implements Scheduler.
func (t *Team) Roster() []core.Agent { return slices.Clone(t.roster) }

// MaxIterations returns the per-round bound.
func (t *Team) MaxIterations() int { return t.opts.MaxIterations }

// Run implements Scheduler. The shared iteration counter restarts at zero
// for every round and is incremented after each agent turn.
func (t *Team) Run(ctx context.Context, tx *core.Tx, sessionID string) (Outcome, error) {
	logger := logging.With(t.opts.Logger, "session_id", sessionID)
	tx.ResetIterations()

	var out Outcome

	for {
		next := t.roster[tx.Iterations()%len(t.roster)]

		res, err := t.runner.RunTurn(ctx, tx, sessionID, next)
		if err != nil {
			return Outcome{}, err
		}

		out.Results = append(out.Results, res)
		out.Iterations = tx.IncrementIteration()

		logger.Debug("agent.team.turn", "agent", next.Name, "iteration", out.Iterations, "status", res.Turn.Status)

		if out.Iterations >= t.opts.MaxIterations {
			closing := t.close(tx, res.Turn)
			out.Closing = &closing
			out.Reason = StopBound

			logger.Info("agent.team.bound_reached", "iterations", out.Iterations)

			return out, nil
		}

		if t.terminates(res.Turn, next) {
			out.Reason = StopMarker

			logger.Info("agent.team.terminated", "agent", next.Name, "iterations", out.Iterations)

			return out, nil
		}
	}
}

func (t *Team) terminates(turn core.Turn, speaker core.Agent) bool {
	if t.opts.TerminationMarker == "" || turn.Speaker != speaker.Name || turn.Status != core.TurnOK {
		return false
	}

	return strings.HasPrefix(strings.TrimSpace(turn.Content), t.opts.TerminationMarker)
}

// close stages the synthesized closing turn, summarizing the last contribution.
func (t *Team) close(tx *core.Tx, last core.Turn) core.Turn {
	content := fmt.Sprintf("The team reached the maximum of %d iterations.", t.opts.MaxIterations)
	if last.Speaker != "" && strings.TrimSpace(last.Content) != "" {
		content += fmt.Sprintf(" Last contribution from %s: %s", last.Speaker, strings.TrimSpace(last.Content))
	}

	tx.Append(core.Turn{
		Role:        core.RoleAgent,
		Speaker:     core.OrchestratorSpeaker,
		Content:     content,
		Status:      core.TurnOK,
		Synthesized: true,
	})

	staged := tx.Staged()

	return staged[len(staged)-1]
}
