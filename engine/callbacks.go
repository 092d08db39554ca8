package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
)

// CallbackType identifies the lifecycle point a callback is attached to.
type CallbackType string

const (
	// CallbackSessionStarted fires once a new session is registered.
	CallbackSessionStarted CallbackType = "session_started"

	// CallbackBeforeRequest fires after the session lock is taken and before
	// the process graph advances.
	CallbackBeforeRequest CallbackType = "before_request"

	// CallbackAfterRequest fires with the staged turns before they are
	// committed. Returning an error discards the request.
	CallbackAfterRequest CallbackType = "after_request"

	// CallbackOnError fires when a request fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackSessionReset fires after a session was archived and removed.
	CallbackSessionReset CallbackType = "session_reset"
)

// CallbackContext is passed to every callback.
type CallbackContext struct {
	SessionID string

	// Event is the event that drove the request, if any.
	Event *core.Event

	// Turns are the turns produced by the request (after_request) or the
	// initial turns (session_started).
	Turns []core.Turn

	Type CallbackType

	// Metadata carries type specific values such as "error" or "step".
	Metadata map[string]any
}

// Callback is a hook executed at one lifecycle point.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cc *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cc *CallbackContext) error
}

// NewFunctionCallback creates a callback from fn.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, cc *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager holds callbacks by type. Callbacks of one type run in
// registration order and the first error stops the chain.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// RegisterCallback adds callback to its type's chain.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.callbacks[callback.Type()] = append(cm.callbacks[callback.Type()], callback)
}

// ExecuteCallbacks runs the chain registered for callbackType. A nil
// manager runs nothing.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, callbackType CallbackType, cc *CallbackContext) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	cc.Type = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, cc); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback writes one log line per execution.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logging.OrNoOp(logger)}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"session_id", cc.SessionID, "turns", len(cc.Turns)}
	if cc.Event != nil {
		args = append(args, "event", string(cc.Event.ID))
	}

	c.logger.Info("engine.callback."+string(c.callbackType), args...)

	return nil
}
