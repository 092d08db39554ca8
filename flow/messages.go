package flow

import (
	"encoding/json"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/model"
)

// BuildMessages renders history as seen by self. The agent's own turns are
// assistant messages and its tool turns become assistant tool calls followed
// by their results. Teammates' turns are user messages prefixed with the
// speaker's name, and so are the results of their tool calls.
func BuildMessages(history []core.Turn, self string) []model.Message {
	msgs := make([]model.Message, 0, len(history))

	for i := 0; i < len(history); i++ {
		t := history[i]

		switch t.Role {
		case core.RoleUser:
			msgs = append(msgs, model.Message{Role: model.RoleUser, Content: t.Content})
		case core.RoleAgent:
			if t.Speaker == self {
				msgs = append(msgs, model.Message{Role: model.RoleAssistant, Name: self, Content: t.Content})
				continue
			}

			msgs = append(msgs, model.Message{Role: model.RoleUser, Content: t.Speaker + ": " + t.Content})
		case core.RoleTool:
			if t.Speaker != self || t.ToolCall == nil {
				msgs = append(msgs, model.Message{Role: model.RoleUser, Content: t.Speaker + ": " + t.Content})
				continue
			}

			// Consecutive calls from the same model response share one assistant message.
			j := i
			for j+1 < len(history) && sameRound(history[j+1], t, self) {
				j++
			}

			assistant := model.Message{Role: model.RoleAssistant, Name: self}
			results := make([]model.Message, 0, j-i+1)

			for _, tt := range history[i : j+1] {
				assistant.ToolCalls = append(assistant.ToolCalls, modelCall(*tt.ToolCall))
				results = append(results, model.Message{Role: model.RoleTool, ToolCallID: tt.ToolCall.ID, Content: tt.Content})
			}

			msgs = append(msgs, assistant)
			msgs = append(msgs, results...)
			i = j
		}
	}

	return msgs
}

func sameRound(t, first core.Turn, self string) bool {
	return t.Role == core.RoleTool && t.Speaker == self && t.ToolCall != nil &&
		t.ToolCall.RequestingTurnIndex == first.ToolCall.RequestingTurnIndex
}

func modelCall(tc core.ToolCall) model.ToolCall {
	raw, err := json.Marshal(tc.Parameters)
	if err != nil {
		raw = []byte("{}")
	}

	return model.ToolCall{
		ID:   tc.ID,
		Type: "function",
		Function: model.ToolCallFunction{
			Name:      tc.ToolName,
			Arguments: raw,
		},
	}
}
