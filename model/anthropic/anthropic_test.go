package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/model"
)

func TestBuildMessages_GroupsToolResultsIntoUserMessage(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleSystem, Content: "ignored here"},
		{Role: model.RoleUser, Content: "weather in Paris and Tokyo?"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{
			model.NewToolCall("c1", "get_current_weather", map[string]any{"location": "Paris"}),
			model.NewToolCall("c2", "get_current_weather", map[string]any{"location": "Tokyo"}),
		}},
		{Role: model.RoleTool, ToolCallID: "c1", Content: `{"temperature":70}`},
		{Role: model.RoleTool, ToolCallID: "c2", Content: `{"temperature":80}`},
		{Role: model.RoleAssistant, Content: "Both are warm."},
	}

	out := buildMessages(msgs)
	require.Len(t, out, 4)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
	assert.Len(t, out[1].Content, 2)
	assert.Equal(t, "user", string(out[2].Role))
	assert.Len(t, out[2].Content, 2)
	assert.Equal(t, "assistant", string(out[3].Role))
}

func TestSystemBlocks(t *testing.T) {
	blocks := systemBlocks(model.Request{
		Instructions: "be brief",
		Messages:     []model.Message{{Role: model.RoleSystem, Content: "extra"}},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "be brief", blocks[0].Text)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "get_forecast",
			Description: "Forecast",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"location": map[string]any{"type": "string"}},
				"required":   []any{"location"},
			},
		},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "get_forecast", tools[0].OfTool.Name)
	assert.Equal(t, []string{"location"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	assert.Equal(t, "anthropic", m.Info().Provider)
}
