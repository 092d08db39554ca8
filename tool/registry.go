package tool

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/internal/util"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/model"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// Registry maps tool names to tools. Registration is idempotent by name
// (last registration wins). A Registry is safe for concurrent use and is
// shared read-only by sessions once populated.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		tools:  make(map[string]Tool),
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		r.logger.Debug("tool.registry.replaced", "tool", t.Name())
	}

	r.tools[t.Name()] = t

	return nil
}

// RegisterFunc registers fn under name with the given schema.
func (r *Registry) RegisterFunc(name, description string, schema map[string]any, fn Func) error {
	if fn == nil {
		return fmt.Errorf("tool %s: nil function", name)
	}

	return r.Register(NewFunctionTool(name, description, schema, fn))
}

// Resolve returns the tool registered under name, or an error wrapping ErrNotFound.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return t, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]

	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

// Tools resolves names in order. It fails on the first unknown name.
func (r *Registry) Tools(names []string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		t, err := r.Resolve(n)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, nil
}

// Definitions returns the model-facing function definitions of names in order.
func (r *Registry) Definitions(names []string) ([]model.ToolDefinition, error) {
	tools, err := r.Tools(names)
	if err != nil {
		return nil, err
	}

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs, nil
}

// Invoke validates args against the tool's schema and calls it. On
// validation failure the tool is never called.
func (r *Registry) Invoke(toolCtx *core.ToolContext, name string, args map[string]any) (any, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeNotFound, Err: err}
	}

	if args == nil {
		args = map[string]any{}
	}

	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		r.logger.Warn("tool.registry.validation_failed", "tool", name, "error", err.Error())

		return nil, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			Err:     err,
		}
	}

	res, err := t.Call(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}

		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution, Err: err}
	}

	return res, nil
}
