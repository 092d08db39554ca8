package testutil

import (
	"github.com/hupe1980/agentplay/core"
)

// TurnBuilder provides a fluent helper for constructing turns in tests.
// Example:
//
//	turn := NewTurnBuilder().Agent("Planner").Text("Rome").Build()
//
// Chain only the parts you need; the default is an ok user turn.
type TurnBuilder struct {
	turn core.Turn
}

// NewTurnBuilder creates a builder for a user turn.
func NewTurnBuilder() *TurnBuilder {
	return &TurnBuilder{turn: core.Turn{Role: core.RoleUser, Speaker: core.UserSpeaker, Status: core.TurnOK}}
}

// User makes the turn a user turn (chainable).
func (b *TurnBuilder) User() *TurnBuilder {
	b.turn.Role = core.RoleUser
	b.turn.Speaker = core.UserSpeaker

	return b
}

// Agent makes the turn an agent turn spoken by name (chainable).
func (b *TurnBuilder) Agent(name string) *TurnBuilder {
	b.turn.Role = core.RoleAgent
	b.turn.Speaker = name

	return b
}

// Orchestrator makes the turn a synthesized orchestrator turn (chainable).
func (b *TurnBuilder) Orchestrator() *TurnBuilder {
	b.turn.Role = core.RoleAgent
	b.turn.Speaker = core.OrchestratorSpeaker
	b.turn.Synthesized = true

	return b
}

// Tool makes the turn the result of a succeeded call requested by agent
// after turn requesting (chainable).
func (b *TurnBuilder) Tool(agent, callID, name string, params map[string]any, requesting int, result any) *TurnBuilder {
	call := core.NewToolCall(callID, name, params, requesting)
	_ = call.Resolve(core.ToolCallSucceeded, result, "")

	b.turn.Role = core.RoleTool
	b.turn.Speaker = agent
	b.turn.ToolCall = call

	return b
}

// Text sets the content (chainable).
func (b *TurnBuilder) Text(s string) *TurnBuilder { b.turn.Content = s; return b }

// Status overrides the status (chainable).
func (b *TurnBuilder) Status(s core.TurnStatus) *TurnBuilder { b.turn.Status = s; return b }

// References sets the consumed tool turn indices (chainable).
func (b *TurnBuilder) References(idx ...int) *TurnBuilder { b.turn.References = idx; return b }

// Build returns a copy of the turn.
func (b *TurnBuilder) Build() core.Turn { return b.turn.Clone() }
