package util

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
)

type forecastArgs struct {
	Location string `json:"location" description:"City name"`
	Days     *int   `json:"days,omitempty"`
	Unit     string `json:"unit,omitempty" enum:"celsius,fahrenheit"`
}

func TestCreateSchema(t *testing.T) {
	s := CreateSchema(forecastArgs{})

	props := s["properties"].(map[string]any)
	assert.Equal(t, "string", props["location"].(map[string]any)["type"])
	assert.Equal(t, "integer", props["days"].(map[string]any)["type"])
	assert.Equal(t, []any{"celsius", "fahrenheit"}, props["unit"].(map[string]any)["enum"])
	assert.Equal(t, []string{"location"}, s["required"])
}

func TestValidateParameters_RequiredAsStringSlice(t *testing.T) {
	s := CreateSchema(forecastArgs{})

	err := ValidateParameters(map[string]any{}, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))

	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "location", ve.Field)
}

func TestValidateParameters_RequiredFromJSON(t *testing.T) {
	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`), &s))

	assert.Error(t, ValidateParameters(map[string]any{}, s))
	assert.NoError(t, ValidateParameters(map[string]any{"q": "x"}, s))
}

func TestValidateParameters_Types(t *testing.T) {
	s := CreateSchema(forecastArgs{})

	assert.NoError(t, ValidateParameters(map[string]any{"location": "Paris", "days": float64(3)}, s))
	assert.Error(t, ValidateParameters(map[string]any{"location": 42}, s))
	assert.Error(t, ValidateParameters(map[string]any{"location": "Paris", "days": 2.5}, s))
	assert.NoError(t, ValidateParameters(map[string]any{"location": "Paris", "extra": true}, s))
}

func TestValidateParameters_Enum(t *testing.T) {
	s := CreateSchema(forecastArgs{})

	assert.NoError(t, ValidateParameters(map[string]any{"location": "Paris", "unit": "celsius"}, s))
	assert.Error(t, ValidateParameters(map[string]any{"location": "Paris", "unit": "kelvin"}, s))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("You are {{.agent}} working with {{join \", \" .team}}.", map[string]any{
		"agent": "Critic",
		"team":  []string{"Researcher", "Innovator"},
	})
	require.NoError(t, err)
	assert.Equal(t, "You are Critic working with Researcher, Innovator.", out)

	plain, err := RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", plain)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
