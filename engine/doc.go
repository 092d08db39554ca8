// Package engine hosts sessions and routes every request through a
// session's process graph.
//
// A request acquires the session lock, resolves the incoming message or
// event against the current step and advances the graph. Step actions
// append synthesized orchestrator turns (intro, farewell) or record the user
// input and run the session's scheduler, which is either a single agent or a
// round-robin team. Everything is staged in a core.Tx and committed only
// when the request completes:
//
//	e, _ := engine.New()
//	id, _, _ := e.StartSession(ctx, engine.SessionConfig{Plugins: []string{"Weather"}})
//	res, _ := e.PostMessage(ctx, id, "What's the weather in Paris?")
//	for _, t := range res.NewTurns {
//	    fmt.Println(t.Speaker, t.Content)
//	}
//
// Callbacks observe the session lifecycle. An after_request callback that
// returns an error discards the request.
package engine
