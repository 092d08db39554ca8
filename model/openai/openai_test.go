package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/model"
)

func TestBuildMessages_MapsRolesInOrder(t *testing.T) {
	req := model.Request{
		Instructions: "be brief",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "weather in Paris?"},
			{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{
				model.NewToolCall("c1", "get_current_weather", map[string]any{"location": "Paris"}),
			}},
			{Role: model.RoleTool, ToolCallID: "c1", Content: `{"temperature":70}`},
			{Role: model.RoleAssistant, Content: "It is 70F."},
		},
	}

	out := buildMessages(req)
	require.Len(t, out, 5)
	assert.NotNil(t, out[0].OfSystem)
	assert.NotNil(t, out[1].OfUser)
	require.NotNil(t, out[2].OfAssistant)
	require.Len(t, out[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "get_current_weather", out[2].OfAssistant.ToolCalls[0].Function.Name)
	require.NotNil(t, out[3].OfTool)
	assert.Equal(t, "c1", out[3].OfTool.ToolCallID)
	assert.NotNil(t, out[4].OfAssistant)
}

func TestAggregatedCallsAreOrderedByIndex(t *testing.T) {
	calls := aggregatedCalls(map[int64]*aggCall{
		1: {id: "b", name: "second", args: `{"x":1}`},
		0: {id: "a", name: "first"},
	})
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Function.Name)
	assert.JSONEq(t, `{}`, string(calls[0].Function.Arguments))
	assert.Equal(t, "second", calls[1].Function.Name)
}

func TestBuildParams_RequestTemperatureOverrides(t *testing.T) {
	m := NewModel(func(o *Options) { o.Temperature = 0.2 })
	temp := 0.9

	params := m.buildParams(model.Request{
		Temperature: &temp,
		Tools:       []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{Name: "get_forecast"}}},
	}, nil)

	assert.Equal(t, 0.9, params.Temperature.Value)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "get_forecast", params.Tools[0].Function.Name)
	assert.Equal(t, "openai", m.Info().Provider)
}
