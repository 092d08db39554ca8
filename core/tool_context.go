package core

import (
	"context"

	"github.com/hupe1980/agentplay/logging"
)

// ToolContext provides the constrained surface a tool implementation sees:
// the request context, correlation identifiers, the memory capability and a
// logger. Tools never touch conversation state directly.
type ToolContext struct {
	ctx       context.Context
	sessionID string
	callID    string
	agentName string
	memory    MemoryStore

	*loggerAdapter
}

// NewToolContext binds a tool invocation to its session, call and agent.
func NewToolContext(ctx context.Context, sessionID, callID, agentName string, memory MemoryStore, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}

	return &ToolContext{
		ctx:           ctx,
		sessionID:     sessionID,
		callID:        callID,
		agentName:     agentName,
		memory:        memory,
		loggerAdapter: newLoggerAdapter(logging.With(logger, "session_id", sessionID, "call_id", callID)),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// WithContext returns a copy bound to ctx (used for per-attempt deadlines).
func (tc *ToolContext) WithContext(ctx context.Context) *ToolContext {
	c := *tc
	c.ctx = ctx

	return &c
}

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// CallID returns the tool call ID.
func (tc *ToolContext) CallID() string { return tc.callID }

// AgentName returns the name of the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// Memory returns the memory capability, or nil when none is configured.
func (tc *ToolContext) Memory() MemoryStore { return tc.memory }
