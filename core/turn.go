package core

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Role identifies the origin of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"
)

// TurnStatus reports whether a turn completed normally.
type TurnStatus string

const (
	TurnOK      TurnStatus = "ok"
	TurnFailed  TurnStatus = "failed"
	TurnBlocked TurnStatus = "blocked"
)

// Turn is one immutable contribution to a conversation. Index defines the
// total order within a session and is assigned on append.
type Turn struct {
	Index     int        `json:"index"`
	Role      Role       `json:"role"`
	Speaker   string     `json:"speaker"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Status    TurnStatus `json:"status"`

	// Synthesized marks turns produced by the orchestrator rather than a
	// model: closing turns, bound notices and filter explanations.
	Synthesized bool `json:"synthesized,omitempty"`

	// ToolCall is set on role=tool turns.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// References lists the indices of tool turns an agent turn consumed.
	References []int `json:"references,omitempty"`

	// Decisions are the filter decisions that governed this turn's content.
	Decisions []FilterDecision `json:"decisions,omitempty"`
}

// Clone returns a deep copy so callers can never alias session state.
func (t Turn) Clone() Turn {
	c := t
	if t.ToolCall != nil {
		tc := t.ToolCall.Clone()
		c.ToolCall = &tc
	}

	c.References = slices.Clone(t.References)
	c.Decisions = cloneDecisions(t.Decisions)

	return c
}

// ToolCallStatus is the lifecycle state of a ToolCall. It only moves forward.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallSucceeded ToolCallStatus = "succeeded"
	ToolCallFailed    ToolCallStatus = "failed"
	ToolCallBlocked   ToolCallStatus = "blocked"
)

// IsTerminal reports whether no further transition is allowed.
func (s ToolCallStatus) IsTerminal() bool {
	return s == ToolCallSucceeded || s == ToolCallFailed || s == ToolCallBlocked
}

// ToolCall records a model-requested tool invocation.
type ToolCall struct {
	ID                  string           `json:"id"`
	ToolName            string           `json:"tool_name"`
	Parameters          map[string]any   `json:"parameters"`
	RequestingTurnIndex int              `json:"requesting_turn_index"`
	Result              any              `json:"result,omitempty"`
	Error               string           `json:"error,omitempty"`
	Status              ToolCallStatus   `json:"status"`
	Decisions           []FilterDecision `json:"decisions,omitempty"`
}

// NewToolCall creates a pending call.
func NewToolCall(id, name string, params map[string]any, requestingTurn int) *ToolCall {
	if id == "" {
		id = NewID()
	}

	if params == nil {
		params = map[string]any{}
	}

	return &ToolCall{
		ID:                  id,
		ToolName:            name,
		Parameters:          params,
		RequestingTurnIndex: requestingTurn,
		Status:              ToolCallPending,
	}
}

// Resolve moves a pending call to a terminal status. Resolving an already
// resolved call, or resolving to pending, is rejected.
func (tc *ToolCall) Resolve(status ToolCallStatus, result any, errMsg string) error {
	if tc.Status.IsTerminal() {
		return fmt.Errorf("tool call %s already %s", tc.ID, tc.Status)
	}

	if !status.IsTerminal() {
		return fmt.Errorf("tool call %s: invalid target status %q", tc.ID, status)
	}

	tc.Status = status
	tc.Result = result
	tc.Error = errMsg

	return nil
}

// Clone returns a deep copy of the call (parameters are copied one level deep).
func (tc ToolCall) Clone() ToolCall {
	c := tc
	c.Parameters = maps.Clone(tc.Parameters)
	c.Decisions = cloneDecisions(tc.Decisions)

	return c
}
