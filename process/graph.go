package process

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/agentplay/core"
)

// Kind selects how a step behaves when entered.
type Kind string

const (
	// SingleAction steps run their action once and emit their event.
	SingleAction Kind = "single_action"
	// LoopUntilEvent steps run their action for each external event that
	// enters them and then wait for the next one.
	LoopUntilEvent Kind = "loop_until_event"
)

// DefaultMaxCascade bounds the number of automatic transitions in one Advance.
const DefaultMaxCascade = 16

// Step is a node of the graph.
type Step struct {
	ID       string                  `json:"id"`
	Kind     Kind                    `json:"kind"`
	Action   string                  `json:"action,omitempty"`
	Emits    core.EventID            `json:"emits,omitempty"`
	OnEvent  map[core.EventID]string `json:"on_event,omitempty"`
	Terminal bool                    `json:"terminal,omitempty"`
}

// Handles reports whether the step has a transition for ev.
func (s Step) Handles(ev core.EventID) bool {
	_, ok := s.OnEvent[ev]
	return ok
}

// Runner executes step actions on behalf of the graph.
type Runner interface {
	RunStep(ctx context.Context, step Step, ev core.Event) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, step Step, ev core.Event) error

// RunStep implements Runner.
func (f RunnerFunc) RunStep(ctx context.Context, step Step, ev core.Event) error {
	return f(ctx, step, ev)
}

// Result describes one Advance call.
type Result struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Path    []string       `json:"path"`
	Emitted []core.EventID `json:"emitted,omitempty"`
	Ended   bool           `json:"ended"`
}

// Graph is an immutable step graph with a single entry step.
type Graph struct {
	name       string
	entry      string
	steps      map[string]Step
	order      []string
	maxCascade int
}

// NewGraph builds and validates a graph.
func NewGraph(name, entry string, steps ...Step) (*Graph, error) {
	g := &Graph{
		name:       name,
		entry:      entry,
		steps:      make(map[string]Step, len(steps)),
		maxCascade: DefaultMaxCascade,
	}

	for _, s := range steps {
		if s.ID == "" {
			return nil, &core.ValidationError{Field: "step.id", Message: "must not be empty"}
		}

		if _, dup := g.steps[s.ID]; dup {
			return nil, &core.ValidationError{Field: "step.id", Value: s.ID, Message: "duplicate step"}
		}

		if s.Kind == "" {
			s.Kind = LoopUntilEvent
		}

		s.OnEvent = maps.Clone(s.OnEvent)
		g.steps[s.ID] = s
		g.order = append(g.order, s.ID)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Entry returns the entry step id.
func (g *Graph) Entry() string { return g.entry }

// Step returns the step with id.
func (g *Graph) Step(id string) (Step, bool) {
	s, ok := g.steps[id]
	if ok {
		s.OnEvent = maps.Clone(s.OnEvent)
	}

	return s, ok
}

// Steps returns the step ids in declaration order.
func (g *Graph) Steps() []string { return slices.Clone(g.order) }

// Validate checks the structural rules: known entry and targets, no
// unreachable steps, transitions on every non-terminal step, none on
// terminal steps, and a handler for every emitted event.
func (g *Graph) Validate() error {
	if _, ok := g.steps[g.entry]; !ok {
		return &core.ValidationError{Field: "entry", Value: g.entry, Message: "unknown step"}
	}

	for _, id := range g.order {
		s := g.steps[id]

		switch s.Kind {
		case SingleAction, LoopUntilEvent:
		default:
			return &core.ValidationError{Field: "step.kind", Value: s.Kind, Message: fmt.Sprintf("step %q has unknown kind", id)}
		}

		if s.Terminal {
			if len(s.OnEvent) > 0 {
				return &core.ValidationError{Field: "step.on_event", Value: id, Message: "terminal step must not have transitions"}
			}

			continue
		}

		if len(s.OnEvent) == 0 {
			return &core.ValidationError{Field: "step.on_event", Value: id, Message: "non-terminal step has no transitions"}
		}

		for ev, target := range s.OnEvent {
			if _, ok := g.steps[target]; !ok {
				return &core.ValidationError{Field: "step.on_event", Value: target, Message: fmt.Sprintf("step %q routes %s to unknown step", id, ev)}
			}
		}

		if s.Kind == SingleAction && s.Emits == "" {
			return &core.ValidationError{Field: "step.emits", Value: id, Message: "single_action step must emit an event"}
		}

		if s.Emits != "" && !s.Handles(s.Emits) {
			return &core.ValidationError{Field: "step.emits", Value: id, Message: fmt.Sprintf("emitted event %s is not handled", s.Emits)}
		}
	}

	reached := map[string]bool{g.entry: true}
	queue := []string{g.entry}

	for len(queue) > 0 {
		s := g.steps[queue[0]]
		queue = queue[1:]

		for _, ev := range slices.Sorted(maps.Keys(s.OnEvent)) {
			if t := s.OnEvent[ev]; !reached[t] {
				reached[t] = true
				queue = append(queue, t)
			}
		}
	}

	for _, id := range g.order {
		if !reached[id] {
			return &core.ValidationError{Field: "steps", Value: id, Message: "step is unreachable from entry"}
		}
	}

	return nil
}

// Advance feeds an external event to the step from and follows the
// resulting transitions. An unhandled event returns *core.UnhandledEventError
// and runs nothing. Advancing from a terminal step returns core.ErrSessionEnded.
// If a step action fails the error is returned and the caller's state should
// be left unchanged.
func (g *Graph) Advance(ctx context.Context, from string, ev core.Event, runner Runner) (Result, error) {
	cur, ok := g.steps[from]
	if !ok {
		return Result{}, &core.ValidationError{Field: "step", Value: from, Message: "unknown step"}
	}

	if cur.Terminal {
		return Result{}, fmt.Errorf("%w: step %q is terminal", core.ErrSessionEnded, from)
	}

	target, ok := cur.OnEvent[ev.ID]
	if !ok {
		return Result{}, &core.UnhandledEventError{Step: from, Event: ev.ID}
	}

	res := Result{From: from, To: from}
	external := true

	for depth := 0; ; depth++ {
		if depth >= g.maxCascade {
			return Result{}, fmt.Errorf("%w: process cascade exceeded %d transitions", core.ErrLimitExceeded, g.maxCascade)
		}

		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		next := g.steps[target]

		// Emitted events settle on loop steps; only external input drives them.
		if !external && next.Kind == LoopUntilEvent {
			if next.ID != cur.ID {
				res.Path = append(res.Path, next.ID)
			}

			res.To = next.ID

			return res, nil
		}

		res.Path = append(res.Path, next.ID)
		res.To = next.ID

		if next.Action != "" && runner != nil {
			if err := runner.RunStep(ctx, next, ev); err != nil {
				return Result{}, fmt.Errorf("step %s action %s: %w", next.ID, next.Action, err)
			}
		}

		if next.Terminal {
			res.Ended = true
			return res, nil
		}

		if next.Emits == "" {
			return res, nil
		}

		res.Emitted = append(res.Emitted, next.Emits)

		cur = next
		ev = core.Event{ID: next.Emits}
		target = next.OnEvent[next.Emits]
		external = false
	}
}

// IsEnded reports whether err means the session already ended.
func IsEnded(err error) bool { return errors.Is(err, core.ErrSessionEnded) }
