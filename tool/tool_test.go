package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
)

func testToolContext() *core.ToolContext {
	return core.NewToolContext(context.Background(), "sess-1", "fc-1", "Assistant", nil, logging.NoOpLogger{})
}

var sumSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"a": map[string]any{"type": "number"},
		"b": map[string]any{"type": "number"},
	},
	"required": []string{"a", "b"},
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumSchema, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(testToolContext(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	tTool := NewFunctionTool("test", "Test", sumSchema, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(testToolContext(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool := NewFunctionTool("fail", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(testToolContext(), map[string]any{})
	require.Error(t, err)

	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, CodeExecution, toolErr.Code)
}

func TestFunctionTool_TransientCausePreserved(t *testing.T) {
	flaky := NewFunctionTool("flaky", "Flaky", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, core.Transient(errors.New("upstream busy"))
	})

	_, err := flaky.Call(testToolContext(), nil)
	assert.True(t, core.IsTransient(err))
}

// -------------------- Registry Tests --------------------

type spyFunc struct {
	mock.Mock
}

func (s *spyFunc) call(_ *core.ToolContext, args map[string]any) (any, error) {
	ret := s.Called(args)
	return ret.Get(0), ret.Error(1)
}

func TestRegistry_InvokeValidatesBeforeCalling(t *testing.T) {
	spy := &spyFunc{}
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("sum", "Add numbers", sumSchema, spy.call))

	_, err := r.Invoke(testToolContext(), "sum", map[string]any{"a": "not-a-number", "b": 1.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))

	spy.AssertNotCalled(t, "call", mock.Anything)
	assert.Empty(t, spy.Calls)
}

func TestRegistry_InvokeCallsFunction(t *testing.T) {
	spy := &spyFunc{}
	spy.On("call", map[string]any{"a": 1.0, "b": 2.0}).Return(3.0, nil).Once()

	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("sum", "Add numbers", sumSchema, spy.call))

	res, err := r.Invoke(testToolContext(), "sum", map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res)
	spy.AssertExpectations(t)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Invoke(testToolContext(), "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeNotFound, toolErr.Code)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	first := NewFunctionTool("echo", "first", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) { return "first", nil })
	second := NewFunctionTool("echo", "second", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) { return "second", nil })

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	res, err := r.Invoke(testToolContext(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", res)
	assert.Equal(t, []string{"echo"}, r.Names())
}

func TestRegistry_RegisterRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(NewFunctionTool("", "x", nil, nil)), ErrEmptyName)
	assert.Error(t, r.RegisterFunc("x", "x", nil, nil))
}

func TestRegistry_ToolsPreservesOrder(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"b", "a", "c"} {
		require.NoError(t, r.RegisterFunc(n, n, nil, func(_ *core.ToolContext, _ map[string]any) (any, error) { return nil, nil }))
	}

	tools, err := r.Tools([]string{"c", "a"})
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "c", tools[0].Name())
	assert.Equal(t, "a", tools[1].Name())

	_, err = r.Tools([]string{"a", "zzz"})
	assert.ErrorIs(t, err, ErrNotFound)

	defs, err := r.Definitions([]string{"c", "a"})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "c", defs[0].Function.Name)
	assert.Equal(t, "a", defs[1].Function.Name)
	assert.Equal(t, "object", defs[1].Function.Parameters["type"])
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RegisterFunc("noop", "noop", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) { return nil, nil })
			_, _ = r.Invoke(testToolContext(), "noop", nil)
		}()
	}

	wg.Wait()
	assert.True(t, r.Has("noop"))
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
