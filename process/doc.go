// Package process implements the event-driven step graph that governs how a
// session progresses.
//
// A Graph is immutable once built. Sessions only keep a pointer to their
// current step and call Advance with external events; single_action steps
// and emitted events cascade automatically until the graph settles on a step
// that waits for the next external event, or reaches a terminal step.
//
//	g := process.ChatBotGraph()
//	res, err := g.Advance(ctx, g.Entry(), core.Event{ID: core.EventStartProcess}, runner)
//	// res.Path == []string{"intro", "chat"}
package process
