// Package flow runs a single agent turn: one or more model calls with the
// tool sub-loop in between, every tool call and the final text passing
// through the session's filter pipeline.
//
// All state changes go to a core.Tx so the caller decides whether the turn
// is committed.
package flow

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/filter"
	"github.com/hupe1980/agentplay/internal/util"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/model"
	"github.com/hupe1980/agentplay/tool"
)

// DefaultMaxToolRounds bounds the tool sub-loop of a single turn.
const DefaultMaxToolRounds = 5

// ErrorReplyPrefix starts the content of an agent turn whose model call failed.
const ErrorReplyPrefix = "Sorry, I encountered an error: "

// Options configures a Flow.
type Options struct {
	Logger logging.Logger

	// Filters guard tool calls and agent output. Nil allows everything.
	Filters *filter.Pipeline

	// Memory is handed to tools through their ToolContext.
	Memory core.MemoryStore

	// Tools lists the enabled tool names in the order offered to the model.
	Tools []string

	// MaxToolRounds bounds the model → tools → model cycles (default 5).
	MaxToolRounds int

	// Retry governs model and tool calls.
	Retry core.RetryPolicy

	// Limiter paces model calls. Nil means unpaced.
	Limiter *rate.Limiter

	Temperature *float64
	MaxTokens   int

	// HistoryLimit caps the turns sent to the model (0 = all).
	HistoryLimit int

	// Vars are available to instruction templates.
	Vars map[string]any
}

// Flow drives single agent turns against one model and tool registry.
// A Flow holds no per-turn state and may be shared by sequential turns of
// a session.
type Flow struct {
	model    model.Model
	registry *tool.Registry
	enabled  map[string]bool
	opts     Options
}

// New creates a Flow.
func New(m model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Flow {
	opts := Options{
		Logger:        logging.NoOpLogger{},
		MaxToolRounds: DefaultMaxToolRounds,
		Retry:         core.DefaultRetryPolicy(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}

	if registry == nil {
		registry = tool.NewRegistry()
	}

	enabled := make(map[string]bool, len(opts.Tools))
	for _, n := range opts.Tools {
		enabled[n] = true
	}

	return &Flow{model: m, registry: registry, enabled: enabled, opts: opts}
}

// Result summarizes one turn.
type Result struct {
	// Turn is the agent's final (or failed / bound) turn.
	Turn core.Turn
	// ToolCalls are the calls made during the turn in request order.
	ToolCalls []core.ToolCall
	// Rounds is the number of tool rounds executed.
	Rounds int
}

// Failed reports whether the turn did not produce a normal answer.
func (r Result) Failed() bool { return r.Turn.Status != core.TurnOK }

// RunTurn lets agent answer the conversation staged in tx. Model failures,
// blocked calls and the tool round bound are recorded as turns; only
// cancellation and configuration problems are returned as errors.
func (f *Flow) RunTurn(ctx context.Context, tx *core.Tx, sessionID string, agent core.Agent) (Result, error) {
	defs, err := f.registry.Definitions(f.opts.Tools)
	if err != nil {
		return Result{}, &core.ValidationError{Field: "tools", Message: err.Error()}
	}

	instructions := f.instructions(sessionID, agent)
	logger := logging.With(f.opts.Logger, "session_id", sessionID, "agent", agent.Name)

	var (
		res  Result
		refs []int
	)

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		req := model.Request{
			Agent:        agent.Name,
			Instructions: instructions,
			Messages:     BuildMessages(tx.History(f.opts.HistoryLimit), agent.Name),
			Tools:        defs,
			Temperature:  f.opts.Temperature,
			MaxTokens:    f.opts.MaxTokens,
		}

		resp, err := core.Retry(ctx, f.opts.Retry, f.opts.Limiter, "model.generate", func(ctx context.Context) (model.Response, error) {
			return model.Collect(ctx, f.model, req)
		})
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}

			logger.Error("flow.model.failed", "error", err.Error())

			res.Turn = f.stage(tx, core.Turn{
				Role:       core.RoleAgent,
				Speaker:    agent.Name,
				Content:    ErrorReplyPrefix + err.Error(),
				Status:     core.TurnFailed,
				References: refs,
			})

			return res, nil
		}

		if len(resp.ToolCalls) == 0 {
			res.Turn = f.finish(ctx, tx, sessionID, agent, resp.Text, refs)
			logger.Debug("flow.turn.completed", "rounds", res.Rounds, "status", res.Turn.Status)

			return res, nil
		}

		if f.opts.MaxToolRounds > 0 && res.Rounds >= f.opts.MaxToolRounds {
			logger.Warn("flow.tool.bound_reached", "max_rounds", f.opts.MaxToolRounds)

			res.Turn = f.stage(tx, core.Turn{
				Role:        core.RoleAgent,
				Speaker:     core.OrchestratorSpeaker,
				Content:     fmt.Sprintf("%s reached the limit of %d tool rounds without a final answer.", agent.Name, f.opts.MaxToolRounds),
				Status:      core.TurnFailed,
				Synthesized: true,
				References:  refs,
			})

			return res, nil
		}

		res.Rounds++
		requesting := tx.Len() - 1

		for _, call := range resp.ToolCalls {
			turn, err := f.executeCall(ctx, tx, sessionID, agent, call, requesting)
			if err != nil {
				return Result{}, err
			}

			refs = append(refs, turn.Index)
			res.ToolCalls = append(res.ToolCalls, *turn.ToolCall)
		}
	}
}

func (f *Flow) instructions(sessionID string, agent core.Agent) string {
	text := agent.Instructions
	if strings.TrimSpace(text) == "" {
		text = core.DefaultInstructions
	}

	vars := maps.Clone(f.opts.Vars)
	if vars == nil {
		vars = map[string]any{}
	}

	vars["agent"] = agent.Name
	vars["session_id"] = sessionID

	out, err := util.RenderTemplate(text, vars)
	if err != nil {
		f.opts.Logger.Warn("flow.instructions.render_failed", "agent", agent.Name, "error", err.Error())
		return text
	}

	return out
}

// finish post-filters the model's text and appends the agent turn.
func (f *Flow) finish(ctx context.Context, tx *core.Tx, sessionID string, agent core.Agent, text string, refs []int) core.Turn {
	out := f.opts.Filters.RunPost(ctx, filter.Context{
		SessionID: sessionID,
		Target:    core.TargetAgentOutput,
		Subject:   agent.Name,
	}, text)

	turn := core.Turn{
		Role:       core.RoleAgent,
		Speaker:    agent.Name,
		Content:    out.Content,
		Status:     core.TurnOK,
		References: refs,
		Decisions:  out.Decisions,
	}

	if d, blocked := out.BlockedBy(); blocked {
		turn.Content = fmt.Sprintf("The response from %s was withheld by the %s filter.", agent.Name, d.Filter)
		turn.Status = core.TurnBlocked
		turn.Synthesized = true
	}

	return f.stage(tx, turn)
}

func (f *Flow) stage(tx *core.Tx, t core.Turn) core.Turn {
	t.Index = tx.Append(t)
	staged := tx.Staged()

	return staged[len(staged)-1]
}
