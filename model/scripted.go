package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ScriptStep produces one response for a request.
type ScriptStep func(req Request) (Response, error)

// ErrScriptExhausted is returned when a ScriptedModel runs out of steps and has no fallback.
var ErrScriptExhausted = errors.New("scripted model: script exhausted")

// ScriptedModel replays a fixed sequence of steps and records every request.
// It is deterministic and safe for concurrent use, which makes it the
// default double for scheduler and engine tests.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	steps    []ScriptStep
	fallback ScriptStep
	requests []Request
}

// NewScriptedModel creates a model that answers with steps in order.
func NewScriptedModel(steps ...ScriptStep) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// WithFallback sets the step used once the script is exhausted.
func (m *ScriptedModel) WithFallback(step ScriptStep) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fallback = step

	return m
}

// Then appends steps to the script.
func (m *ScriptedModel) Then(steps ...ScriptStep) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, steps...)

	return m
}

// Requests returns a copy of all recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Calls returns the number of Generate calls so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

func (m *ScriptedModel) next(req Request) (Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)

	var step ScriptStep
	if len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
	} else {
		step = m.fallback
	}
	m.mu.Unlock()

	if step == nil {
		return Response{}, ErrScriptExhausted
	}

	return step(req)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		resp, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}

		respCh <- resp
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// Reply answers with a plain text completion.
func Reply(text string) ScriptStep {
	return func(Request) (Response, error) {
		return Response{Text: text, FinishReason: "stop"}, nil
	}
}

// ReplyFunc answers with text computed from the request.
func ReplyFunc(fn func(req Request) string) ScriptStep {
	return func(req Request) (Response, error) {
		return Response{Text: fn(req), FinishReason: "stop"}, nil
	}
}

// CallTools requests the given tool calls in order.
func CallTools(calls ...ToolCall) ScriptStep {
	return func(Request) (Response, error) {
		return Response{ToolCalls: calls, FinishReason: "tool_calls"}, nil
	}
}

// CallTool requests a single tool call with JSON encoded args.
func CallTool(id, name string, args map[string]any) ScriptStep {
	return CallTools(NewToolCall(id, name, args))
}

// Fail answers with err.
func Fail(err error) ScriptStep {
	return func(Request) (Response, error) {
		return Response{}, err
	}
}

// NewToolCall builds a function ToolCall, encoding args as JSON.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte(fmt.Sprintf("%q", err.Error()))
	}

	return ToolCall{
		ID:   id,
		Type: "function",
		Function: ToolCallFunction{
			Name:      name,
			Arguments: raw,
		},
	}
}
