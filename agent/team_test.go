package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/flow"
	"github.com/hupe1980/agentplay/model"
)

// scriptRunner answers each agent with the next scripted reply.
type scriptRunner struct {
	replies []string
	calls   []string
	err     error
}

func (r *scriptRunner) RunTurn(_ context.Context, tx *core.Tx, _ string, a core.Agent) (flow.Result, error) {
	if r.err != nil {
		return flow.Result{}, r.err
	}

	r.calls = append(r.calls, a.Name)

	reply := fmt.Sprintf("%s speaking", a.Name)
	if len(r.replies) > 0 {
		reply, r.replies = r.replies[0], r.replies[1:]
	}

	tx.Append(core.Turn{Role: core.RoleAgent, Speaker: a.Name, Content: reply, Status: core.TurnOK})
	staged := tx.Staged()

	return flow.Result{Turn: staged[len(staged)-1]}, nil
}

func roster(names ...string) []core.Agent {
	out := make([]core.Agent, len(names))
	for i, n := range names {
		out[i] = core.Agent{Name: n, Instructions: "You are " + n}
	}

	return out
}

func userConversation() *core.Conversation {
	conv := core.NewConversation("chat")
	conv.Append(core.Turn{Role: core.RoleUser, Speaker: core.UserSpeaker, Content: "Discuss"})

	return conv
}

func TestTeam_ABCWithBoundProducesClosingTurn(t *testing.T) {
	runner := &scriptRunner{}
	team, err := NewTeam(roster("A", "B", "C"), runner, func(o *TeamOptions) { o.MaxIterations = 3 })
	require.NoError(t, err)

	conv := userConversation()
	tx := conv.Begin()

	out, err := team.Run(context.Background(), tx, "s1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, []string{"A", "B", "C"}, runner.calls)
	assert.Equal(t, 3, out.Iterations)
	assert.Equal(t, 3, conv.Iterations())
	assert.Equal(t, StopBound, out.Reason)
	require.NotNil(t, out.Closing)
	assert.True(t, out.Closing.Synthesized)
	assert.Equal(t, core.OrchestratorSpeaker, out.Closing.Speaker)
	assert.Contains(t, out.Closing.Content, "Last contribution from C")

	turns := conv.History(0)
	require.Len(t, turns, 5)
	for i, turn := range turns {
		assert.Equal(t, i, turn.Index)
	}
	assert.Equal(t, out.Closing.Index, turns[4].Index)
}

func TestTeam_RoundRobinWrapsInRosterOrder(t *testing.T) {
	for _, bound := range []int{3, 4, 7, 9} {
		t.Run(fmt.Sprint(bound), func(t *testing.T) {
			runner := &scriptRunner{}
			team, err := NewTeam(roster("A", "B", "C"), runner, func(o *TeamOptions) { o.MaxIterations = bound })
			require.NoError(t, err)

			out, err := team.Run(context.Background(), userConversation().Begin(), "s1")
			require.NoError(t, err)

			require.Len(t, runner.calls, bound)
			for i, name := range runner.calls {
				assert.Equal(t, []string{"A", "B", "C"}[i%3], name)
			}

			assert.Equal(t, bound, out.Iterations)
			assert.LessOrEqual(t, out.Iterations, bound)
		})
	}
}

func TestTeam_TerminationMarkerStopsEarly(t *testing.T) {
	runner := &scriptRunner{replies: []string{"idea", "FINAL: ship it"}}
	team, err := NewTeam(roster("A", "B", "C"), runner, func(o *TeamOptions) { o.MaxIterations = 6 })
	require.NoError(t, err)

	out, err := team.Run(context.Background(), userConversation().Begin(), "s1")
	require.NoError(t, err)

	assert.Equal(t, StopMarker, out.Reason)
	assert.Equal(t, 2, out.Iterations)
	assert.Nil(t, out.Closing)
	assert.Equal(t, []string{"A", "B"}, runner.calls)
}

func TestTeam_CustomMarker(t *testing.T) {
	runner := &scriptRunner{replies: []string{"  DONE. agreed"}}
	team, err := NewTeam(roster("A", "B"), runner, func(o *TeamOptions) { o.TerminationMarker = "DONE." })
	require.NoError(t, err)

	out, err := team.Run(context.Background(), userConversation().Begin(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StopMarker, out.Reason)
	assert.Equal(t, 1, out.Iterations)
}

func TestTeam_IterationsResetEachRound(t *testing.T) {
	runner := &scriptRunner{}
	team, err := NewTeam(roster("A", "B"), runner, func(o *TeamOptions) { o.MaxIterations = 2 })
	require.NoError(t, err)

	conv := userConversation()
	for range 2 {
		tx := conv.Begin()
		out, err := team.Run(context.Background(), tx, "s1")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Equal(t, 2, out.Iterations)
	}

	assert.Equal(t, 2, conv.Iterations())
	assert.Equal(t, []string{"A", "B", "A", "B"}, runner.calls)
}

func TestTeam_RunnerErrorAborts(t *testing.T) {
	team, err := NewTeam(roster("A"), &scriptRunner{err: context.Canceled})
	require.NoError(t, err)

	tx := userConversation().Begin()
	_, err = team.Run(context.Background(), tx, "s1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewTeam_Validation(t *testing.T) {
	_, err := NewTeam(nil, &scriptRunner{})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = NewTeam(roster("A", "A"), &scriptRunner{})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = NewTeam(roster("orchestrator"), &scriptRunner{})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = NewTeam(roster("A"), &scriptRunner{}, func(o *TeamOptions) { o.MaxIterations = -1 })
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestTeam_WithFlowSeesTeammatesPrefixed(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("Rome"), model.Reply("FINAL: Rome in spring"))
	team, err := NewTeam(roster("Planner", "Critic"), flow.New(m, nil))
	require.NoError(t, err)

	out, err := team.Run(context.Background(), userConversation().Begin(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StopMarker, out.Reason)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "You are Critic", reqs[1].Instructions)
	assert.Equal(t, "Planner: Rome", reqs[1].Messages[len(reqs[1].Messages)-1].Content)
}

func TestSingle_RunsOneTurn(t *testing.T) {
	runner := &scriptRunner{}
	s, err := NewSingle(DefaultAssistant(), runner)
	require.NoError(t, err)

	out, err := s.Run(context.Background(), userConversation().Begin(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StopAnswered, out.Reason)
	assert.Equal(t, []string{DefaultAssistantName}, runner.calls)
	assert.Len(t, s.Roster(), 1)
}

func TestDefaultTeam(t *testing.T) {
	team := DefaultTeam()
	require.Len(t, team, 4)
	assert.NoError(t, ValidateRoster(team))
	assert.Equal(t, "Researcher", team[0].Name)
	assert.Equal(t, "Synthesizer", team[3].Name)
}
