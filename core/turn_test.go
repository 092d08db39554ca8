package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCall_ResolveForwardOnly(t *testing.T) {
	tc := NewToolCall("", "get_current_weather", map[string]any{"location": "Paris"}, 0)
	require.NotEmpty(t, tc.ID)
	assert.Equal(t, ToolCallPending, tc.Status)

	require.NoError(t, tc.Resolve(ToolCallSucceeded, "sunny", ""))
	assert.Equal(t, "sunny", tc.Result)

	assert.Error(t, tc.Resolve(ToolCallFailed, nil, "late"))
	assert.Equal(t, ToolCallSucceeded, tc.Status)
}

func TestToolCall_ResolveRejectsPending(t *testing.T) {
	tc := NewToolCall("c1", "x", nil, 0)
	assert.Error(t, tc.Resolve(ToolCallPending, nil, ""))
	assert.NotNil(t, tc.Parameters)
}

func TestTurn_CloneIsDeep(t *testing.T) {
	orig := Turn{
		ToolCall:  NewToolCall("c1", "x", map[string]any{"a": 1}, 0),
		Decisions: []FilterDecision{{Filter: "pii_detection", Redactions: []Redaction{{Kind: "email"}}}},
	}

	c := orig.Clone()
	c.ToolCall.Parameters["a"] = 2
	c.Decisions[0].Redactions[0].Kind = "phone"

	assert.Equal(t, 1, orig.ToolCall.Parameters["a"])
	assert.Equal(t, "email", orig.Decisions[0].Redactions[0].Kind)
}
