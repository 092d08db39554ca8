package engine

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentplay/agent"
	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/filter"
	"github.com/hupe1980/agentplay/process"
)

// Config defines engine-wide tuning parameters.
//
// Per-session behavior (roster, plugins, filters, graph) lives in
// SessionConfig. Config only carries the defaults sessions fall back to and
// the limits shared by all of them.
type Config struct {
	// MaxConcurrentRequests caps requests running at the same time across
	// all sessions. Zero means unbounded.
	MaxConcurrentRequests int

	// DefaultTemperature is used when a session does not set one.
	DefaultTemperature float64

	// DefaultMaxIterations bounds team rounds of sessions that do not set
	// max_iterations.
	DefaultMaxIterations int

	// MaxToolRounds bounds the tool sub-loop of a single agent turn.
	MaxToolRounds int

	// Retry governs model and tool calls.
	Retry core.RetryPolicy
}

// DefaultConfig provides the defaults used by New.
//
// Configuration values:
//   - MaxConcurrentRequests: 10
//   - DefaultTemperature: 0.7
//   - DefaultMaxIterations: 8
//   - MaxToolRounds: 5
var DefaultConfig = Config{
	MaxConcurrentRequests: 10,
	DefaultTemperature:    0.7,
	DefaultMaxIterations:  agent.DefaultMaxIterations,
	MaxToolRounds:         5,
	Retry:                 core.DefaultRetryPolicy(),
}

// Mode selects the scheduler of a session.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeTeam   Mode = "team"
)

// DefaultExitKeyword ends chatbot sessions when posted as a message.
const DefaultExitKeyword = "exit"

// MaxTemperature is the upper bound accepted for SessionConfig.Temperature.
const MaxTemperature = 2.0

// SessionConfig describes a session at StartSession. The zero value starts
// a single-agent chat with the default assistant and no tools.
type SessionConfig struct {
	Mode Mode `json:"mode,omitempty"`

	// Agents is the roster in speaking order. Empty selects the default
	// assistant (single) or the default team.
	Agents []core.Agent `json:"agents,omitempty"`

	// MaxIterations bounds team rounds. Zero uses Config.DefaultMaxIterations.
	MaxIterations int `json:"max_iterations,omitempty"`

	// Plugins lists plugin names ("Weather", "Memory") or individual tool names.
	Plugins []string `json:"plugins,omitempty"`

	// Temperature in [0, 2]. Nil uses Config.DefaultTemperature.
	Temperature *float64 `json:"temperature,omitempty"`

	// Filters is the ordered filter chain.
	Filters []filter.Config `json:"filters,omitempty"`

	// Process names a built-in graph ("chat" or "chatbot").
	Process string `json:"process,omitempty"`

	// AutoStart sends StartProcess right after creation when the graph's
	// entry step handles it.
	AutoStart bool `json:"auto_start,omitempty"`

	TerminationMarker string `json:"termination_marker,omitempty"`

	// ExitKeyword turns a matching message into an Exit event. Chatbot
	// sessions default to "exit".
	ExitKeyword string `json:"exit_keyword,omitempty"`

	// HistoryLimit caps the turns sent to the model (0 = all).
	HistoryLimit int `json:"history_limit,omitempty"`
}

// normalize validates c and fills in defaults.
func (c SessionConfig) normalize(cfg Config) (SessionConfig, error) {
	if c.Mode == "" {
		c.Mode = ModeSingle
	}

	switch c.Mode {
	case ModeSingle:
		if len(c.Agents) > 1 {
			return c, &core.ValidationError{Field: "agents", Value: len(c.Agents), Message: "single mode takes at most one agent"}
		}

		if len(c.Agents) == 0 {
			c.Agents = []core.Agent{agent.DefaultAssistant()}
		}
	case ModeTeam:
		if len(c.Agents) == 0 {
			c.Agents = agent.DefaultTeam()
		}
	default:
		return c, &core.ValidationError{Field: "mode", Value: c.Mode, Message: fmt.Sprintf("unknown mode %q", c.Mode)}
	}

	if err := agent.ValidateRoster(c.Agents); err != nil {
		return c, err
	}

	if c.MaxIterations < 0 {
		return c, &core.ValidationError{Field: "max_iterations", Value: c.MaxIterations, Message: "must not be negative"}
	}

	if c.MaxIterations == 0 {
		c.MaxIterations = cfg.DefaultMaxIterations
	}

	if c.Temperature == nil {
		t := cfg.DefaultTemperature
		c.Temperature = &t
	} else if *c.Temperature < 0 || *c.Temperature > MaxTemperature {
		return c, &core.ValidationError{Field: "temperature", Value: *c.Temperature, Message: "must be between 0 and 2"}
	}

	for _, f := range c.Filters {
		if err := f.Validate(); err != nil {
			return c, err
		}
	}

	if c.Process == "" {
		c.Process = process.ChatGraphName
	}

	if c.TerminationMarker == "" {
		c.TerminationMarker = agent.DefaultTerminationMarker
	}

	c.ExitKeyword = strings.TrimSpace(c.ExitKeyword)
	if c.ExitKeyword == "" && c.Process == process.ChatBotGraphName {
		c.ExitKeyword = DefaultExitKeyword
	}

	if c.HistoryLimit < 0 {
		return c, &core.ValidationError{Field: "history_limit", Value: c.HistoryLimit, Message: "must not be negative"}
	}

	return c, nil
}

// AgentNames returns the roster names in order.
func (c SessionConfig) AgentNames() []string {
	names := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		names[i] = a.Name
	}

	return names
}
