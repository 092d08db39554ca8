package filter

import (
	"context"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
)

// Context describes what a filter is looking at.
type Context struct {
	SessionID string
	Phase     core.FilterPhase
	Target    core.FilterTarget
	// Subject is the tool name for tool targets, the agent name for agent output.
	Subject string
}

// Filter inspects and optionally rewrites content. Implementations must be
// safe for concurrent use by different sessions.
type Filter interface {
	Name() string
	Apply(ctx context.Context, fc Context, content string) (string, core.FilterDecision)
}

// Outcome is the result of running a pipeline phase.
type Outcome struct {
	Content   string
	Decisions []core.FilterDecision
	Blocked   bool
}

// BlockedBy returns the decision that blocked the content, if any.
func (o Outcome) BlockedBy() (core.FilterDecision, bool) {
	if !o.Blocked || len(o.Decisions) == 0 {
		return core.FilterDecision{}, false
	}

	return o.Decisions[len(o.Decisions)-1], true
}

// Options configures a Pipeline.
type Options struct {
	Logger logging.Logger
}

// Pipeline runs filters in their configured order.
type Pipeline struct {
	filters []Filter
	logger  logging.Logger
}

// NewPipeline creates a pipeline. A pipeline without filters allows everything.
func NewPipeline(filters []Filter, optFns ...func(o *Options)) *Pipeline {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Pipeline{
		filters: append([]Filter(nil), filters...),
		logger:  logging.OrNoOp(opts.Logger),
	}
}

// Names returns the filter names in execution order.
func (p *Pipeline) Names() []string {
	if p == nil {
		return nil
	}

	names := make([]string, len(p.filters))
	for i, f := range p.filters {
		names[i] = f.Name()
	}

	return names
}

// RunPre runs the pre phase over content (tool parameters or user input).
func (p *Pipeline) RunPre(ctx context.Context, fc Context, content string) Outcome {
	fc.Phase = core.PhasePre
	return p.run(ctx, fc, content)
}

// RunPost runs the post phase over a draft (tool result or agent text).
func (p *Pipeline) RunPost(ctx context.Context, fc Context, draft string) Outcome {
	fc.Phase = core.PhasePost
	return p.run(ctx, fc, draft)
}

// Abandon tells stateful filters that no post phase will follow the pre phase
// of fc. Calling it after a completed post phase is harmless.
func (p *Pipeline) Abandon(fc Context) {
	if p == nil {
		return
	}

	for _, f := range p.filters {
		if a, ok := f.(interface{ Abandon(fc Context) }); ok {
			a.Abandon(fc)
		}
	}
}

func (p *Pipeline) run(ctx context.Context, fc Context, content string) Outcome {
	out := Outcome{Content: content}
	if p == nil {
		return out
	}

	for _, f := range p.filters {
		next, d := f.Apply(ctx, fc, out.Content)

		d.Filter = f.Name()
		d.Phase = fc.Phase
		d.Target = fc.Target

		if d.Verdict == "" {
			d.Verdict = core.VerdictAllow
		}

		out.Decisions = append(out.Decisions, d)

		switch d.Verdict {
		case core.VerdictBlock:
			p.logger.Info("filter.blocked", "filter", d.Filter, "session_id", fc.SessionID, "phase", fc.Phase, "target", fc.Target, "subject", fc.Subject)
			out.Blocked = true
			return out
		case core.VerdictModify:
			p.logger.Debug("filter.modified", "filter", d.Filter, "session_id", fc.SessionID, "redactions", len(d.Redactions))
			out.Content = next
		}
	}

	return out
}
