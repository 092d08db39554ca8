package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/filter"
	"github.com/hupe1980/agentplay/internal/util"
	"github.com/hupe1980/agentplay/model"
)

// executeCall runs one requested tool call through the filters and the
// registry and stages the resulting tool turn. Only cancellation is returned
// as an error.
func (f *Flow) executeCall(ctx context.Context, tx *core.Tx, sessionID string, agent core.Agent, call model.ToolCall, requesting int) (core.Turn, error) {
	name := call.Function.Name
	tc := core.NewToolCall(call.ID, name, nil, requesting)
	logger := f.opts.Logger

	turn := core.Turn{Role: core.RoleTool, Speaker: agent.Name}

	settle := func(status core.ToolCallStatus, result any, errMsg, content string) (core.Turn, error) {
		if err := tc.Resolve(status, result, errMsg); err != nil {
			return core.Turn{}, err
		}

		switch status {
		case core.ToolCallBlocked:
			turn.Status = core.TurnBlocked
			turn.Synthesized = true
		case core.ToolCallFailed:
			turn.Status = core.TurnFailed
		default:
			turn.Status = core.TurnOK
		}

		turn.Content = content
		turn.ToolCall = tc
		turn.Decisions = tc.Decisions

		return f.stage(tx, turn), nil
	}

	args, err := parseArguments(call.Function.Arguments)
	if err != nil {
		msg := fmt.Sprintf("invalid arguments for %s: %v", name, err)
		return settle(core.ToolCallFailed, nil, msg, "Error: "+msg)
	}

	tc.Parameters = args

	if !f.enabled[name] {
		msg := fmt.Sprintf("tool %q is not available", name)
		logger.Warn("flow.tool.unavailable", "session_id", sessionID, "agent", agent.Name, "tool", name)

		return settle(core.ToolCallFailed, nil, msg, "Error: "+msg)
	}

	fctx := filter.Context{SessionID: sessionID, Target: core.TargetTool, Subject: name}

	params, err := util.CanonicalJSON(args)
	if err != nil {
		msg := fmt.Sprintf("encode arguments for %s: %v", name, err)
		return settle(core.ToolCallFailed, nil, msg, "Error: "+msg)
	}

	pre := f.opts.Filters.RunPre(ctx, fctx, params)
	defer f.opts.Filters.Abandon(fctx)

	tc.Decisions = append(tc.Decisions, pre.Decisions...)

	if d, blocked := pre.BlockedBy(); blocked {
		logger.Info("flow.tool.blocked", "session_id", sessionID, "tool", name, "filter", d.Filter, "phase", core.PhasePre)

		return settle(core.ToolCallBlocked, nil, fmt.Sprintf("%v: %s", core.ErrFilterBlocked, d.Filter),
			fmt.Sprintf("The call to %s was blocked by the %s filter and was not executed.", name, d.Filter))
	}

	if pre.Content != params {
		redacted, err := parseArguments(json.RawMessage(pre.Content))
		if err != nil {
			tc.Parameters = map[string]any{}
			msg := fmt.Sprintf("filtered arguments for %s are not valid JSON", name)

			return settle(core.ToolCallFailed, nil, msg, "Error: "+msg)
		}

		args = redacted
		tc.Parameters = redacted
	}

	toolCtx := core.NewToolContext(ctx, sessionID, tc.ID, agent.Name, f.opts.Memory, f.opts.Logger)
	start := time.Now()

	result, err := core.Retry(ctx, f.opts.Retry, nil, "tool."+name, func(ctx context.Context) (any, error) {
		return f.invoke(toolCtx.WithContext(ctx), name, args)
	})

	logger.Info("flow.tool.executed", "session_id", sessionID, "agent", agent.Name, "tool", name, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)

	if err != nil {
		if ctx.Err() != nil {
			return core.Turn{}, ctx.Err()
		}

		return settle(core.ToolCallFailed, nil, err.Error(), "Error: "+err.Error())
	}

	encoded, err := util.CanonicalJSON(result)
	if err != nil {
		encoded = fmt.Sprint(result)
	}

	post := f.opts.Filters.RunPost(ctx, fctx, encoded)
	tc.Decisions = append(tc.Decisions, post.Decisions...)

	if d, blocked := post.BlockedBy(); blocked {
		logger.Info("flow.tool.blocked", "session_id", sessionID, "tool", name, "filter", d.Filter, "phase", core.PhasePost)

		return settle(core.ToolCallBlocked, nil, fmt.Sprintf("%v: %s", core.ErrFilterBlocked, d.Filter),
			fmt.Sprintf("The result of %s was withheld by the %s filter.", name, d.Filter))
	}

	if post.Content != encoded {
		var folded any
		if err := json.Unmarshal([]byte(post.Content), &folded); err != nil {
			folded = post.Content
		}

		result = folded
	}

	return settle(core.ToolCallSucceeded, result, "", post.Content)
}

// invoke calls the registry and converts a panic into an error.
func (f *Flow) invoke(toolCtx *core.ToolContext, name string, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			f.opts.Logger.Error("flow.tool.panic", "tool", name, "recover", r)
			err = panicError(r)
		}
	}()

	return f.registry.Invoke(toolCtx, name, args)
}

func parseArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}

	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
