package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/flow"
)

// TurnRunner produces one agent turn into tx.
type TurnRunner interface {
	RunTurn(ctx context.Context, tx *core.Tx, sessionID string, agent core.Agent) (flow.Result, error)
}

// StopReason says why a scheduler pass ended.
type StopReason string

const (
	// StopAnswered means a single agent produced its turn.
	StopAnswered StopReason = "answered"
	// StopMarker means an agent's output carried the termination marker.
	StopMarker StopReason = "marker"
	// StopBound means max iterations were reached.
	StopBound StopReason = "bound"
)

// Outcome summarizes a scheduler pass.
type Outcome struct {
	Results    []flow.Result
	Iterations int
	Reason     StopReason
	// Closing is the synthesized closing turn when Reason is StopBound.
	Closing *core.Turn
}

// ToolCalls returns every tool call of the pass in order.
func (o Outcome) ToolCalls() []core.ToolCall {
	var out []core.ToolCall
	for _, r := range o.Results {
		out = append(out, r.ToolCalls...)
	}

	return out
}

// Scheduler runs one pass of agent turns for a request.
type Scheduler interface {
	Run(ctx context.Context, tx *core.Tx, sessionID string) (Outcome, error)
	Roster() []core.Agent
}

// DefaultAssistantName names the agent of single sessions without a roster.
const DefaultAssistantName = "Assistant"

// DefaultAssistant returns the agent used by single sessions without a roster.
func DefaultAssistant() core.Agent {
	return core.Agent{Name: DefaultAssistantName, Instructions: core.DefaultInstructions}
}

// DefaultTeam returns the roster used by team sessions without a roster.
func DefaultTeam() []core.Agent {
	return []core.Agent{
		{
			Name:         "Researcher",
			Instructions: "You are a fact-based researcher who provides accurate and concise information. Always stick to verified facts and cite sources when possible. Keep your responses very concise, clear and straightforward.",
			Color:        "blue",
			Icon:         "search",
		},
		{
			Name:         "Innovator",
			Instructions: "You are a creative thinker who generates novel ideas and perspectives. Offer innovative approaches and unique ideas. Feel free to brainstorm and suggest creative solutions. Keep your responses very concise, imaginative and engaging.",
			Color:        "purple",
			Icon:         "lightbulb",
		},
		{
			Name:         "Critic",
			Instructions: "You are a thoughtful critic who evaluates ideas and identifies potential issues. Analyze the strengths and weaknesses of proposals and suggest improvements. Be constructive in your criticism. Keep your responses very concise, clear and straightforward.",
			Color:        "red",
			Icon:         "scale",
		},
		{
			Name:         "Synthesizer",
			Instructions: "You are a skilled synthesizer who integrates diverse perspectives into coherent conclusions. Identify common themes across different viewpoints and create a balanced, integrated perspective. Keep your responses very concise, clear and straightforward.",
			Color:        "green",
			Icon:         "merge",
		},
	}
}

// ValidateRoster checks that every agent has a unique, non-empty name.
func ValidateRoster(roster []core.Agent) error {
	seen := make(map[string]bool, len(roster))

	for i, a := range roster {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return &core.ValidationError{Field: fmt.Sprintf("agents[%d].name", i), Message: "must not be empty"}
		}

		if name == core.OrchestratorSpeaker || name == core.UserSpeaker {
			return &core.ValidationError{Field: fmt.Sprintf("agents[%d].name", i), Value: a.Name, Message: "name is reserved"}
		}

		if seen[name] {
			return &core.ValidationError{Field: fmt.Sprintf("agents[%d].name", i), Value: a.Name, Message: "duplicate agent name"}
		}

		seen[name] = true
	}

	return nil
}
